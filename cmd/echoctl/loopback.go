package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"IP-Echo/pkg/echostack"
)

var loopbackCmd = &cobra.Command{
	Use:       "loopback {tcp|udp} MESSAGE",
	Short:     "Run a server and a client against each other on 127.0.0.1",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"tcp", "udp"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			reply []byte
			err   error
		)
		switch args[0] {
		case "tcp":
			reply, err = echostack.RunStreamLoopback(sink, []byte(args[1]))
		case "udp":
			reply, err = echostack.RunDatagramLoopback(sink, []byte(args[1]))
		default:
			return errors.Errorf("unknown transport %q (want tcp or udp)", args[0])
		}
		if err != nil {
			return err
		}
		printReply(cmd, reply)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loopbackCmd)
}
