package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	configPath string
	cfg        *Config
	logger     *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	defaultConfig := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultConfig = v
	}

	root := &cobra.Command{
		Use:           "twstock",
		Short:         "Taiwan stock price gateway",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve("")
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfig, "YAML config file (optional)")

	root.AddCommand(
		a.serveCmd(),
		a.fetchCmd(),
		a.quoteCmd(),
		a.searchCmd(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	logger, err := newLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) serveCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(port)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides config and PORT)")
	return cmd
}

func (a *app) serve(port string) error {
	if port != "" {
		a.cfg.Server.Port = port
	}

	a.logger.Info("twstock gateway",
		zap.String("port", a.cfg.Server.Port),
		zap.Strings("providers", a.cfg.Upstream.Providers),
		zap.String("database", a.cfg.Database.Path))

	server, err := NewWebServer(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize web server: %w", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx, ":"+a.cfg.Server.Port)
}

func (a *app) fetchCmd() *cobra.Command {
	var months int
	var table bool
	cmd := &cobra.Command{
		Use:   "fetch [code]",
		Short: "Fetch a daily series and print it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := codeArg(args)
			if err != nil {
				return err
			}
			service, _, err := newStockStack(a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			series, err := service.ResolveSeries(cmd.Context(), code, months)
			if err != nil {
				return err
			}
			if table {
				fmt.Fprintln(cmd.OutOrStdout(), renderSeriesTable(series))
				return nil
			}
			return printJSON(cmd.OutOrStdout(), series)
		},
	}
	cmd.Flags().IntVarP(&months, "months", "m", 1, "calendar months to fetch")
	cmd.Flags().BoolVarP(&table, "table", "t", false, "print a table instead of JSON")
	return cmd
}

func (a *app) quoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quote [code]",
		Short: "Fetch a real-time quote",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := codeArg(args)
			if err != nil {
				return err
			}
			service, _, err := newStockStack(a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			quote, err := service.ResolveQuote(cmd.Context(), code)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), quote)
		},
	}
}

func (a *app) searchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the stock directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			directory := NewStockDirectory(a.logger)
			if err := directory.LoadCSV(a.cfg.Directory.CSVPath); err != nil {
				return err
			}
			results := directory.Search(args[0], limit)
			fmt.Fprintln(cmd.OutOrStdout(), renderSearchResults(results))
			fmt.Fprintln(cmd.OutOrStdout(), strconv.Itoa(len(results))+" result(s)")
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", searchLimit, "maximum results")
	return cmd
}
