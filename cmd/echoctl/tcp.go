package main

import (
	"github.com/spf13/cobra"

	"IP-Echo/pkg/echostack"
)

var tcpCmd = &cobra.Command{
	Use:   "tcp",
	Short: "TCP echo server and client",
}

var tcpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Echo one TCP client until it disconnects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return echostack.StartStreamServer(sink, portFlag(cmd), serverOptions()...)
	},
}

var tcpClientCmd = &cobra.Command{
	Use:   "client MESSAGE",
	Short: "Send MESSAGE to a TCP echo server and print the reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := echostack.StartStreamClient(sink, addrFlag(cmd), portFlag(cmd), []byte(args[0]))
		if err != nil {
			return err
		}
		printReply(cmd, reply)
		return nil
	},
}

func init() {
	endpointFlags(tcpServerCmd, false)
	endpointFlags(tcpClientCmd, true)
	tcpCmd.AddCommand(tcpServerCmd, tcpClientCmd)
	rootCmd.AddCommand(tcpCmd)
}
