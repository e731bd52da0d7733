package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"IP-Echo/pkg/config"
	"IP-Echo/pkg/diag"
	"IP-Echo/pkg/echostack"
)

var (
	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	// Set during PersistentPreRun
	cfg     *config.Config
	logger  diag.Sink
	sink    diag.Sink
	history *diag.Recorder
)

var rootCmd = &cobra.Command{
	Use:   "echoctl",
	Short: "TCP and UDP echo servers and clients",
	Long: `echoctl runs one echo exchange per invocation: a TCP server that echoes a
single client until it disconnects, a UDP server that answers one datagram,
and the matching clients.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}

		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		lvl, err := cfg.Level()
		if err != nil {
			return err
		}

		logger = diag.NewZerologWriter(cmd.ErrOrStderr(), strings.ToLower(cfg.Log.Format), lvl)
		if cfg.History == 0 {
			history, sink = nil, logger
			return nil
		}
		history = diag.NewRecorder(cfg.History)
		sink = diag.Tee(logger, history)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// serverOptions maps config onto echostack options.
func serverOptions() []echostack.Option {
	return []echostack.Option{echostack.WithBacklog(cfg.Backlog)}
}

// endpointFlags registers --addr/--port on a client or server command.
func endpointFlags(cmd *cobra.Command, withAddr bool) {
	cmd.Flags().Int("port", -1, "port (default from config; 0 picks a free port for servers)")
	if withAddr {
		cmd.Flags().String("addr", "", "destination IPv4 address (default from config)")
	}
}

func portFlag(cmd *cobra.Command) int {
	if p, _ := cmd.Flags().GetInt("port"); p >= 0 {
		return p
	}
	return cfg.Port
}

func addrFlag(cmd *cobra.Command) string {
	if a, _ := cmd.Flags().GetString("addr"); a != "" {
		return a
	}
	return cfg.Address
}

func printReply(cmd *cobra.Command, reply []byte) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", diag.Printable(reply))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.ipecho/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console, json")
}
