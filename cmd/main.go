// Command xrpdesk runs the XRPL market console.
//
// Usage:
//
//	xrpdesk serve --config config.yaml
//	xrpdesk setup
//	xrpdesk fills --pair XRP_USD.rhub8VRN55s94qWKDv6jmDy1pUykJzF3wq --account r...
//	xrpdesk trades --pair XRP_USD.rhub8VRN55s94qWKDv6jmDy1pUykJzF3wq
//	xrpdesk pool --pair XRP_USD.rhub8VRN55s94qWKDv6jmDy1pUykJzF3wq
//
// XRPL_NODE_URL and XRPL_ACCOUNT are read from the environment or a .env file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vadiminshakov/xrpdesk/config"
	"github.com/vadiminshakov/xrpdesk/internal"
	"github.com/vadiminshakov/xrpdesk/internal/domain"
	"github.com/vadiminshakov/xrpdesk/internal/setup"
)

var (
	flags  config.Flags
	debug  bool
	output string
	issuer string
)

var rootCmd = &cobra.Command{
	Use:          "xrpdesk",
	Short:        "XRPL DEX and AMM market console",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web console",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConsole(cmd.Context(), func(ctx context.Context, c *internal.Console) error {
			return c.Serve(ctx)
		})
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write a config file interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setup.RunTUI(output)
	},
}

var fillsCmd = &cobra.Command{
	Use:   "fills",
	Short: "Print the account's recent fills for a pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConsole(cmd.Context(), func(ctx context.Context, c *internal.Console) error {
			pair, err := requirePair(c.Config)
			if err != nil {
				return err
			}
			result, err := c.Fills(ctx, c.Config.Account, pair)
			if err != nil {
				return err
			}
			return printJSON(result)
		})
	},
}

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "Print recent trades of every trader found in the issuer's history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConsole(cmd.Context(), func(ctx context.Context, c *internal.Console) error {
			pair, err := requirePair(c.Config)
			if err != nil {
				return err
			}
			account := issuer
			if account == "" {
				account = pair.Quote.Issuer
			}
			if account == "" {
				account = pair.Base.Issuer
			}
			result, err := c.Fetcher.MarketTrades(ctx, account, pair)
			if err != nil {
				return err
			}
			return printJSON(result)
		})
	},
}

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Print the AMM pool of a pair oriented to its base",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConsole(cmd.Context(), func(ctx context.Context, c *internal.Console) error {
			pair, err := requirePair(c.Config)
			if err != nil {
				return err
			}
			snapshot, err := c.Pools.Pool(ctx, pair)
			if err != nil {
				return err
			}
			return printJSON(snapshot)
		})
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "path to yaml config")
	pf.StringVar(&flags.EnvFile, "env-file", ".env", "dotenv file with XRPL_NODE_URL and XRPL_ACCOUNT")
	pf.StringVar(&flags.NodeURL, "node", "", "ledger node websocket url")
	pf.StringVar(&flags.Account, "account", "", "account whose offers and fills are tracked")
	pf.StringVar(&flags.Pair, "pair", "", "pair, example: XRP_USD.rhub8VRN55s94qWKDv6jmDy1pUykJzF3wq")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")

	serveCmd.Flags().StringVar(&flags.WebAddr, "addr", "", "web console listen address")
	setupCmd.Flags().StringVarP(&output, "output", "o", setup.DefaultOutput, "config file to write")
	tradesCmd.Flags().StringVar(&issuer, "issuer", "", "account whose history is scanned (default: quote issuer)")

	rootCmd.AddCommand(serveCmd, setupCmd, fillsCmd, tradesCmd, poolCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// withConsole loads the config, builds the console and runs fn with it.
func withConsole(ctx context.Context, fn func(ctx context.Context, c *internal.Console) error) error {
	cfg, err := config.Load(flags)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	console, err := internal.NewConsole(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := console.Close(); err != nil {
			logger.Warn("failed to close console", zap.Error(err))
		}
	}()

	return fn(ctx, console)
}

func requirePair(cfg config.Config) (domain.Pair, error) {
	if cfg.Pair == nil {
		return domain.Pair{}, errors.New("--pair is required")
	}
	return *cfg.Pair, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
