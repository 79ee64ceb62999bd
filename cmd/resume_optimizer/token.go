package main

import (
	"fmt"

	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/server"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var tenantID, userID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for a tenant",
		Long:  `Prints a signed HS256 token for the REST API. Requires JWT_SECRET.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jwtCfg, err := config.NewJWTConfig()
			if err != nil {
				return err
			}
			token, err := server.NewJWTService(jwtCfg).GenerateToken(tenantID, userID)
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID carried by the token")
	cmd.Flags().StringVar(&userID, "user", "", "User ID carried by the token")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
