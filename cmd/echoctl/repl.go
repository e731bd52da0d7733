package main

import (
	"github.com/spf13/cobra"

	"IP-Echo/pkg/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive console for echo servers and clients",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		console := &repl.Console{
			In:      cmd.InOrStdin(),
			Out:     cmd.OutOrStdout(),
			Sink:    logger,
			History: history,
			Options: serverOptions(),
		}
		console.Start()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
