package main

import (
	"github.com/spf13/cobra"

	"IP-Echo/pkg/echostack"
)

var udpCmd = &cobra.Command{
	Use:   "udp",
	Short: "UDP echo server and client",
}

var udpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Answer one UDP datagram and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return echostack.StartDatagramServer(sink, portFlag(cmd))
	},
}

var udpClientCmd = &cobra.Command{
	Use:   "client MESSAGE",
	Short: "Send MESSAGE as one datagram and print the reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := echostack.StartDatagramClient(sink, addrFlag(cmd), portFlag(cmd), []byte(args[0]))
		if err != nil {
			return err
		}
		printReply(cmd, reply)
		return nil
	},
}

func init() {
	endpointFlags(udpServerCmd, false)
	endpointFlags(udpClientCmd, true)
	udpCmd.AddCommand(udpServerCmd, udpClientCmd)
	rootCmd.AddCommand(udpCmd)
}
