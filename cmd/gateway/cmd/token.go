package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gallery-gateway/config"
	"gallery-gateway/session"
)

var (
	tokenPermission string
	tokenHours      int
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a session token (for the auth-token cookie)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFiles...)
		if err != nil {
			return err
		}
		hours := cfg.SessionDuration
		if tokenHours > 0 {
			hours = tokenHours
		}

		svc, err := session.NewService(cfg.JWTSecret, time.Duration(hours)*time.Hour)
		if err != nil {
			return err
		}
		tok, err := svc.CreateToken(session.Permission(tokenPermission))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenPermission, "permission", string(session.PermissionView), "permission tier: view or upload")
	tokenCmd.Flags().IntVar(&tokenHours, "hours", 0, "session lifetime in hours (defaults to SESSION_DURATION)")
}
