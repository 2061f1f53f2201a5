package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/easy-apply-agent/internal/config"
	"github.com/jonathan/easy-apply-agent/internal/server"
)

var tokenCaller string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API token for a caller",
	Long:  `Prints a bearer token signed with JWT_SECRET whose user_id claim is the caller.`,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenCaller, "caller", "", "Caller identity (required)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	if tokenCaller == "" {
		return errors.New("--caller is required")
	}
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to create JWT config: %w", err)
	}
	token, err := server.NewJWTService(jwtCfg).GenerateToken(tokenCaller)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
