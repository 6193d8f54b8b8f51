package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/idcheck/mrzscan/pkg/auth"
	"github.com/spf13/cobra"
)

var (
	tokenTTL    time.Duration
	tokenScopes []string
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue an API bearer token",
	Long: `Issue an HS256 bearer token for the scan API, signed with the configured
auth secret (MRZSCAN_AUTH_SECRET). The subject identifies the calling
kiosk or operator in logs, events and the audit trail.

Scopes: scans:write (parse and start scans), scans:read (read own jobs),
audit:read (audit trail). "scans:*" and "*" grant by wildcard.

Examples:
  MRZSCAN_AUTH_SECRET=... mrzscan token kiosk-7 --ttl 720h --scope scans:*`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	tokenCmd.Flags().StringSliceVar(&tokenScopes, "scope", nil, "Scopes to grant (repeatable)")
}

func runToken(cmd *cobra.Command, args []string) error {
	manager := auth.NewManager(&cfg.Auth, log)
	if !manager.Enabled() {
		return errors.New("auth secret not configured (set MRZSCAN_AUTH_SECRET)")
	}
	if tokenTTL <= 0 {
		return errors.New("--ttl must be positive")
	}

	token, err := manager.GenerateToken(args[0], tokenTTL, tokenScopes...)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
			"token":      token,
			"subject":    args[0],
			"expires_at": time.Now().Add(tokenTTL).UTC().Format(time.RFC3339),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
