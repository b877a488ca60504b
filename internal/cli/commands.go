// Package cli implements dairyctl, the operator command line for price
// suggestions, negotiations, trade signals and schema migrations.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"dairy-market-lab/internal/advisor"
	"dairy-market-lab/internal/app"
	"dairy-market-lab/internal/config"
	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/market"
)

// rootOptions carries the global flags and the configuration they resolve to.
type rootOptions struct {
	configDir  string
	envFile    string
	connection string
	logLevel   string
	useMemory  bool
	seed       int64

	cfg    *config.Config
	logger *logrus.Logger
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "dairyctl",
		Short: "dairyctl - dairy market pricing and negotiation tool",
		Long: `dairyctl suggests selling prices from warehouse market data, runs the
negotiation bot against a counterpart and evaluates trade signals.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
	}

	rootCmd.AddCommand(newSuggestCmd(opts))
	rootCmd.AddCommand(newNegotiateCmd(opts))
	rootCmd.AddCommand(newOfferCmd(opts))
	rootCmd.AddCommand(newAdviseCmd(opts))
	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configDir, "config-dir", config.DefaultConfigDir, "Directory holding db_config.yaml and ssh_config.yaml")
	pf.StringVar(&opts.envFile, "env-file", config.DefaultEnvFile, "Optional .env file")
	pf.StringVar(&opts.connection, "connection", "", "Warehouse profile from db_config.yaml")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level (default LOG_LEVEL or info)")
	pf.BoolVar(&opts.useMemory, "use-memory", false, "Use fixture data and in-memory stores")
	pf.Int64Var(&opts.seed, "seed", 0, "Jitter and simulated counterpart seed (0 seeds from time)")

	return rootCmd
}

// load resolves configuration and the logger. Logs go to w so stdout stays
// machine readable.
func (o *rootOptions) load(w io.Writer) error {
	cfg, err := config.Load(config.Options{
		Dir:            o.configDir,
		EnvFile:        o.envFile,
		ConnectionName: o.connection,
	})
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.useMemory {
		cfg.UseMemory = true
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetOutput(w)

	o.cfg = cfg
	o.logger = logger
	return nil
}

func (o *rootOptions) newApp(ctx context.Context) (*app.App, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return app.New(ctx, o.cfg, o.logger, app.Options{Seed: o.seed})
}

// newSuggestCmd creates the suggest command
func newSuggestCmd(opts *rootOptions) *cobra.Command {
	var (
		productID    int64
		dataSourceID int64
		input        string
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest a selling price",
		Long: `Suggest a selling price for a product from warehouse data, or from explicit
aggregates and reference prices in a YAML or JSON file.
Example: dairyctl suggest --product-id=2 --data-source-id=52`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" && productID == 0 {
				return fmt.Errorf("either --product-id or --input is required")
			}

			ctx := cmd.Context()
			a, err := opts.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var rec *domain.SuggestionRecord
			if input != "" {
				var req suggestInput
				if err := readInput(input, &req); err != nil {
					return err
				}
				rec, err = a.Market.Suggest(ctx, req.aggregates(), req.reference())
			} else {
				rec, err = a.Market.SuggestForProduct(ctx, productID, dataSourceID)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}

	cmd.Flags().Int64Var(&productID, "product-id", 0, "Product ID")
	cmd.Flags().Int64Var(&dataSourceID, "data-source-id", 0, "Quotation data source ID")
	cmd.Flags().StringVar(&input, "input", "", "YAML or JSON file with aggregates and reference prices")

	return cmd
}

// newNegotiateCmd creates the negotiate command
func newNegotiateCmd(opts *rootOptions) *cobra.Command {
	var (
		price     float64
		minPrice  float64
		strategy  string
		productID int64
	)

	cmd := &cobra.Command{
		Use:   "negotiate",
		Short: "Run the negotiation bot against the configured counterpart",
		Long: `Run a full negotiation session. The counterpart is the WebSocket or HTTP
endpoint from the configuration, or a simulated seller when none is set.
Example: dairyctl negotiate --price=7500 --min-price=7300 --strategy=neutral`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("min-price") {
				minPrice = price
			}
			if cmd.Flags().Changed("max-steps") {
				opts.cfg.Negotiation.MaxSteps, _ = cmd.Flags().GetInt("max-steps")
			}
			if cmd.Flags().Changed("step-delay") {
				opts.cfg.Negotiation.StepDelay, _ = cmd.Flags().GetDuration("step-delay")
			}
			if cmd.Flags().Changed("mode") {
				opts.cfg.Negotiation.Mode, _ = cmd.Flags().GetString("mode")
			}

			ctx := cmd.Context()
			a, err := opts.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.Negotiation.Negotiate(ctx, market.NegotiationRequest{
				SuggestedPrice: price,
				MinPrice:       minPrice,
				Strategy:       strategy,
				ProductID:      productID,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}

	cmd.Flags().Float64Var(&price, "price", 0, "Suggested price the bot opens from")
	cmd.Flags().Float64Var(&minPrice, "min-price", 0, "Lowest acceptable price (default --price)")
	cmd.Flags().StringVar(&strategy, "strategy", string(domain.StrategyNeutral), "aggressive, neutral or conservative")
	cmd.Flags().Int64Var(&productID, "product-id", 0, "Product whose history sets the price step")
	cmd.Flags().Int("max-steps", config.DefaultMaxSteps, "Rounds before giving up")
	cmd.Flags().Duration("step-delay", config.DefaultStepDelay, "Pause between rounds")
	cmd.Flags().String("mode", config.DefaultNegotiationMode, "escalate or concede")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

// newOfferCmd creates the offer command
func newOfferCmd(opts *rootOptions) *cobra.Command {
	var (
		price        float64
		minPrice     float64
		strategy     string
		productID    int64
		counterOffer float64
	)

	cmd := &cobra.Command{
		Use:   "offer",
		Short: "Compute the bot's reply to a single counter-offer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("min-price") {
				minPrice = price
			}

			ctx := cmd.Context()
			a, err := opts.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Negotiation.Offer(ctx, market.OfferRequest{
				SuggestedPrice: price,
				MinPrice:       minPrice,
				Strategy:       strategy,
				ProductID:      productID,
				CounterOffer:   counterOffer,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().Float64Var(&price, "price", 0, "Suggested price")
	cmd.Flags().Float64Var(&minPrice, "min-price", 0, "Lowest acceptable price (default --price)")
	cmd.Flags().StringVar(&strategy, "strategy", string(domain.StrategyNeutral), "aggressive, neutral or conservative")
	cmd.Flags().Int64Var(&productID, "product-id", 0, "Product whose history sets the price step")
	cmd.Flags().Float64Var(&counterOffer, "counter-offer", 0, "Counterpart's latest offer")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("counter-offer")

	return cmd
}

// newAdviseCmd creates the advise command
func newAdviseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "advise FILE",
		Short: "Evaluate the Buy/Sell/Hold rules on a market state file",
		Long: `Evaluate the trade signal rules on a market state given as YAML or JSON.
Example: dairyctl advise state.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in adviseInput
			if err := readInput(args[0], &in); err != nil {
				return err
			}
			ai := in.toAdvisor()
			if err := ai.Validate(); err != nil {
				return err
			}

			d := advisor.Decide(ai)
			opts.logger.WithFields(logrus.Fields{"action": d.Action, "rule": d.Rule}).Debug("signal evaluated")

			out := struct {
				Action *string `json:"action"`
				Rule   string  `json:"rule,omitempty"`
			}{Rule: d.Rule}
			if d.Action != domain.ActionNone {
				action := string(d.Action)
				out.Action = &action
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

// newConfigCmd creates the config command
func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration without secrets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), opts.cfg.LogFields())
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	})

	return configCmd
}

func readInput(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
