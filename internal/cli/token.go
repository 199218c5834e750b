package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"smartattendance/internal/auth"
)

// NewTokenCommand creates the token command.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a camera or the recognizer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				ttl = opts.cfg.AccessTTL
			}
			tok, err := auth.Issue(subject, role, opts.cfg.JWTIssuer, opts.cfg.JWTSigningKey, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "recognizer", "token subject, e.g. a camera id")
	cmd.Flags().StringVar(&role, "role", auth.RoleRecognizer, "role claim (recognizer|operator)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "lifetime; defaults to ACCESS_TTL")
	return cmd
}
