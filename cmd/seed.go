/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"math/rand/v2"

	"github.com/flatwithoutbrokerage/flatapi/internal/seed"
	"github.com/flatwithoutbrokerage/flatapi/internal/server"
	"github.com/spf13/cobra"
)

var (
	seedOwners   int
	seedPerOwner int
	seedValue    uint64
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo owners and listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedOwners < 1 || seedPerOwner < 1 {
			return errors.New("--owners and --per-owner must be positive")
		}
		cfg, log := setup()

		app, err := server.NewApp(cmd.Context(), cfg, server.StorePostgres, log)
		if err != nil {
			return err
		}
		defer app.Close()

		owners := seed.Generate(rand.New(rand.NewPCG(seedValue, seedValue)), seedOwners, seedPerOwner)
		res, err := seed.Run(cmd.Context(), app.Services.Users, app.Services.Properties, owners, log)
		if err != nil {
			return err
		}
		log.Info("seed complete", "owners", res.Owners, "properties", res.Properties)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().IntVar(&seedOwners, "owners", 5, "number of owner accounts")
	seedCmd.Flags().IntVar(&seedPerOwner, "per-owner", 4, "listings per owner")
	seedCmd.Flags().Uint64Var(&seedValue, "seed", 1, "random seed; the same seed produces the same data")
}
