// Package config loads service settings from connection profiles, .env files
// and environment variables.
//
// Precedence, lowest first: defaults, YAML profile (db_config.yaml and
// ssh_config.yaml under Options.Dir), .env, environment. Command-line flags
// are applied by the caller on top of the returned Config.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"dairy-market-lab/internal/storage/mysql"
)

// Default values.
const (
	DefaultConfigDir       = "config"
	DefaultEnvFile         = ".env"
	DefaultConnectionName  = EnvConnection
	DefaultHTTPAddr        = ":8000"
	DefaultLogLevel        = "info"
	DefaultSSHKeyPath      = "~/.ssh/id_rsa"
	DefaultSummaryCacheTTL = 6 * time.Hour
	DefaultKafkaTopic      = "dairy_market_events"
	DefaultNegotiationMode = "escalate"
	DefaultMaxSteps        = 10
	DefaultStepDelay       = time.Second

	// EnvConnection selects credentials from the environment instead of a profile.
	EnvConnection = "env"

	dbConfigFile  = "db_config.yaml"
	sshConfigFile = "ssh_config.yaml"
)

// MySQL holds warehouse credentials. The YAML keys follow db_config.yaml.
type MySQL struct {
	Host           string `yaml:"mysql_host"`
	User           string `yaml:"mysql_user"`
	Database       string `yaml:"mysql_db"`
	Port           int    `yaml:"mysql_port"`
	Password       string `yaml:"mysql_password"`
	Tunnel         bool   `yaml:"ssh_tunnel"`
	TunnelHost     string `yaml:"ssh_tunnel_host"`
	TunnelUser     string `yaml:"ssh_tunnel_user"`
	TunnelPort     int    `yaml:"ssh_tunnel_port"`
	KnownHostsPath string `yaml:"ssh_known_hosts"`
}

// SSH holds the private key used for the tunnel.
type SSH struct {
	KeyPath string `yaml:"ssh_private_key_path"`
	KeyPass string `yaml:"ssh_private_key_pass"`
}

// Redis configures the summary cache.
type Redis struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Kafka configures outcome events.
type Kafka struct {
	Broker string
	Topic  string
}

// LLM configures the summarization model.
type LLM struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Recommend configures the recommendation service.
type Recommend struct {
	BaseURL string
	APIKey  string
}

// Counterpart configures the live negotiation counterpart.
type Counterpart struct {
	HTTPURL string
	WSURL   string
	APIKey  string
}

// Negotiation configures the bounded loop.
type Negotiation struct {
	Mode      string
	MaxSteps  int
	StepDelay time.Duration
}

// Config is the resolved service configuration.
type Config struct {
	ConnectionName string

	MySQL MySQL
	SSH   SSH

	PostgresDSN   string
	ClickHouseDSN string

	Redis       Redis
	Kafka       Kafka
	LLM         LLM
	Recommend   Recommend
	Counterpart Counterpart
	Negotiation Negotiation

	HTTPAddr  string
	LogLevel  string
	UseMemory bool
}

// Options controls where Load looks for files.
type Options struct {
	Dir            string // directory holding db_config.yaml and ssh_config.yaml
	EnvFile        string // optional .env file, missing is not an error
	ConnectionName string // profile in db_config.yaml, or "env"
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		ConnectionName: DefaultConnectionName,
		MySQL: MySQL{
			Port:       mysql.DefaultPort,
			TunnelPort: mysql.DefaultSSHPort,
		},
		SSH:   SSH{KeyPath: DefaultSSHKeyPath},
		Redis: Redis{TTL: DefaultSummaryCacheTTL},
		Kafka: Kafka{Topic: DefaultKafkaTopic},
		Negotiation: Negotiation{
			Mode:      DefaultNegotiationMode,
			MaxSteps:  DefaultMaxSteps,
			StepDelay: DefaultStepDelay,
		},
		HTTPAddr: DefaultHTTPAddr,
		LogLevel: DefaultLogLevel,
	}
}

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	if opts.Dir == "" {
		opts.Dir = DefaultConfigDir
	}
	if opts.EnvFile == "" {
		opts.EnvFile = DefaultEnvFile
	}

	// .env never overrides variables already set in the process.
	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", opts.EnvFile, err)
	}

	cfg := Default()

	cfg.ConnectionName = opts.ConnectionName
	if cfg.ConnectionName == "" {
		cfg.ConnectionName = lookupEnv("DB_CONNECTION", DefaultConnectionName)
	}

	if cfg.ConnectionName != EnvConnection {
		profile, err := loadProfile(filepath.Join(opts.Dir, dbConfigFile), cfg.ConnectionName)
		if err != nil {
			return nil, err
		}
		cfg.MySQL = mergeMySQL(cfg.MySQL, profile)
	}

	sshCfg, found, err := loadSSH(filepath.Join(opts.Dir, sshConfigFile))
	if err != nil {
		return nil, err
	}
	if found {
		if sshCfg.KeyPath != "" {
			cfg.SSH.KeyPath = sshCfg.KeyPath
		}
		cfg.SSH.KeyPass = sshCfg.KeyPass
	}

	if err := applyEnv(cfg, !found); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadProfile reads one named connection from db_config.yaml.
func loadProfile(path, name string) (MySQL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MySQL{}, fmt.Errorf("read connection profiles: %w", err)
	}

	var profiles map[string]MySQL
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return MySQL{}, fmt.Errorf("parse %s: %w", path, err)
	}

	p, ok := profiles[name]
	if !ok {
		names := make([]string, 0, len(profiles))
		for n := range profiles {
			names = append(names, n)
		}
		sort.Strings(names)
		return MySQL{}, fmt.Errorf("connection %q not found in %s, available: %v", name, path, names)
	}
	return p, nil
}

// loadSSH reads ssh_config.yaml. A missing file is reported as found=false.
func loadSSH(path string) (SSH, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return SSH{}, false, nil
	}
	if err != nil {
		return SSH{}, false, fmt.Errorf("read ssh config: %w", err)
	}

	var s SSH
	if err := yaml.Unmarshal(data, &s); err != nil {
		return SSH{}, false, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, true, nil
}

func mergeMySQL(base, p MySQL) MySQL {
	if p.Port == 0 {
		p.Port = base.Port
	}
	if p.TunnelPort == 0 {
		p.TunnelPort = base.TunnelPort
	}
	return p
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	if !c.UseMemory && c.MySQL.Host != "" {
		if c.MySQL.User == "" || c.MySQL.Database == "" {
			return errors.New("mysql_user and mysql_db are required when mysql_host is set")
		}
		if c.MySQL.Tunnel && (c.MySQL.TunnelHost == "" || c.MySQL.TunnelUser == "") {
			return errors.New("ssh_tunnel_host and ssh_tunnel_user are required when ssh_tunnel is enabled")
		}
	}
	switch c.Negotiation.Mode {
	case "escalate", "concede":
	default:
		return fmt.Errorf("unknown negotiation mode %q", c.Negotiation.Mode)
	}
	if c.Negotiation.MaxSteps <= 0 {
		return errors.New("negotiation max steps must be positive")
	}
	if c.Negotiation.StepDelay < 0 {
		return errors.New("negotiation step delay must not be negative")
	}
	if c.Redis.TTL <= 0 {
		return errors.New("summary cache ttl must be positive")
	}
	return nil
}

// WarehouseConfig returns the MySQL connection settings. ok is false when no
// warehouse host is configured.
func (c *Config) WarehouseConfig() (cfg mysql.Config, ok bool) {
	if c.MySQL.Host == "" {
		return mysql.Config{}, false
	}

	cfg = mysql.Config{
		Host:     c.MySQL.Host,
		Port:     c.MySQL.Port,
		User:     c.MySQL.User,
		Password: c.MySQL.Password,
		Database: c.MySQL.Database,
	}
	if c.MySQL.Tunnel {
		cfg.Tunnel = &mysql.TunnelConfig{
			Host:           c.MySQL.TunnelHost,
			Port:           c.MySQL.TunnelPort,
			User:           c.MySQL.TunnelUser,
			KeyPath:        c.SSH.KeyPath,
			KeyPassphrase:  c.SSH.KeyPass,
			KnownHostsPath: c.MySQL.KnownHostsPath,
		}
	}
	return cfg, true
}

// LogFields describes the configuration without secrets.
func (c *Config) LogFields() logrus.Fields {
	return logrus.Fields{
		"connection":        c.ConnectionName,
		"mysql_host":        c.MySQL.Host,
		"mysql_user":        c.MySQL.User,
		"mysql_db":          c.MySQL.Database,
		"mysql_port":        c.MySQL.Port,
		"mysql_password":    setOrNot(c.MySQL.Password),
		"ssh_tunnel":        c.MySQL.Tunnel,
		"ssh_tunnel_host":   c.MySQL.TunnelHost,
		"ssh_tunnel_user":   c.MySQL.TunnelUser,
		"ssh_tunnel_port":   c.MySQL.TunnelPort,
		"ssh_key_path":      c.SSH.KeyPath,
		"ssh_key_pass":      setOrNot(c.SSH.KeyPass),
		"postgres":          setOrNot(c.PostgresDSN),
		"clickhouse":        setOrNot(c.ClickHouseDSN),
		"redis_addr":        c.Redis.Addr,
		"kafka_broker":      c.Kafka.Broker,
		"llm_api_key":       setOrNot(c.LLM.APIKey),
		"recommend_api_key": setOrNot(c.Recommend.APIKey),
		"negotiation_mode":  c.Negotiation.Mode,
		"use_memory":        c.UseMemory,
	}
}

func setOrNot(s string) string {
	if s == "" {
		return "not set"
	}
	return "set"
}

// NewLogger builds the process logger.
func NewLogger(level string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stdout)

	if level == "" {
		level = DefaultLogLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(lvl)
	return logger, nil
}
