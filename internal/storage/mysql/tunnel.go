package mysql

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultSSHPort is the default bastion port.
const DefaultSSHPort = 22

// TunnelConfig holds SSH bastion settings.
type TunnelConfig struct {
	Host           string
	Port           int
	User           string
	KeyPath        string // "~" is expanded
	KeyPassphrase  string
	KnownHostsPath string // empty skips host key verification
	Timeout        time.Duration
	Logger         logrus.FieldLogger // nil uses the standard logger
}

// Tunnel is an SSH client used to dial the database host.
type Tunnel struct {
	client *ssh.Client
}

// OpenTunnel connects to the bastion with public key auth.
func OpenTunnel(ctx context.Context, cfg TunnelConfig) (*Tunnel, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultSSHPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	signer, err := loadSigner(cfg.KeyPath, cfg.KeyPassphrase)
	if err != nil {
		return nil, err
	}

	hostKeys, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         cfg.Timeout,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial ssh bastion %s: %w", addr, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	return &Tunnel{client: ssh.NewClient(c, chans, reqs)}, nil
}

// DialContext opens a forwarded TCP connection to addr on the far side.
func (t *Tunnel) DialContext(ctx context.Context, addr string) (net.Conn, error) {
	return t.client.DialContext(ctx, "tcp", addr)
}

// Close closes the SSH connection.
func (t *Tunnel) Close() error {
	return t.client.Close()
}

func hostKeyCallback(cfg TunnelConfig) (ssh.HostKeyCallback, error) {
	if cfg.KnownHostsPath == "" {
		logger := cfg.Logger
		if logger == nil {
			logger = logrus.StandardLogger()
		}
		logger.WithField("bastion", cfg.Host).Warn("ssh known_hosts not set, bastion host key is not verified")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(expandHome(cfg.KnownHostsPath))
	if err != nil {
		return nil, fmt.Errorf("load known hosts: %w", err)
	}
	return cb, nil
}

func loadSigner(keyPath, passphrase string) (ssh.Signer, error) {
	if keyPath == "" {
		keyPath = "~/.ssh/id_rsa"
	}

	pem, err := os.ReadFile(expandHome(keyPath))
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(pem)
	}
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}
	return signer, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
