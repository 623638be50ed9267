package main

import (
	"fmt"

	"github.com/matst80/wslink/internal/endpoint"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <http-url>",
	Short: "Print the WebSocket endpoint derived from a server address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := endpoint.Resolve(args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), ws)
		return err
	},
}
