/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/flatwithoutbrokerage/flatapi/internal/server"
	"github.com/spf13/cobra"
)

var serverStore string

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the flatapi backend server",
	Long: `Starts the flatapi backend server. Usage:

	flatapi server
	flatapi server --store=memory
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := setup()

		srv, err := server.New(cmd.Context(), cfg, serverStore, log)
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		if err := srv.Run(cmd.Context()); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverStore, "store", server.StorePostgres, "record store: postgres or memory")
}
