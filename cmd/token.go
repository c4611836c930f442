/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flatwithoutbrokerage/flatapi/config"
	"github.com/flatwithoutbrokerage/flatapi/internal/auth"
	"github.com/flatwithoutbrokerage/flatapi/types"
	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenEmail   string
	tokenName    string
	tokenAvatar  string
	tokenTTL     time.Duration
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed identity token for local testing",
	Long: `Signs a token with AUTH_JWT_SECRET in the same shape the identity
provider issues. Usage:

	flatapi token --sub=user-1 --email=asha@example.com --name=Asha
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(tokenSubject) == "" {
			return errors.New("--sub is required")
		}
		cfg := config.LoadConfig()

		verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			return err
		}
		token, err := verifier.Issue(types.Principal{
			Subject: tokenSubject,
			Email:   tokenEmail,
			Name:    tokenName,
			Avatar:  tokenAvatar,
		}, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenSubject, "sub", "", "user id (subject claim)")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name")
	tokenCmd.Flags().StringVar(&tokenAvatar, "avatar", "", "avatar url")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", auth.DefaultTokenTTL, "token lifetime")
}
