package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
)

func newTokenCommand() *cobra.Command {
	var (
		companyID int64
		userID    int64
		role      string
		ttl       time.Duration
		secret    string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			actor := domain.Actor{CompanyID: companyID, UserID: userID, Role: domain.Role(role)}
			if actor.CompanyID <= 0 || actor.UserID <= 0 {
				return fmt.Errorf("--company and --user must be positive")
			}
			switch actor.Role {
			case domain.RoleAdmin, domain.RoleAgent, domain.RoleContact:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			if secret == "" {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				secret = cfg.Auth.JWTSecret
				if ttl <= 0 {
					ttl = cfg.Auth.TokenTTL()
				}
			}
			if ttl <= 0 {
				ttl = time.Hour
			}

			token, expiresAt, err := auth.NewTokenManager(secret, ttl).GenerateToken(actor)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().Int64Var(&companyID, "company", 0, "company id")
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleAgent), "role: admin, agent or contact")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to AUTH_JWT_SECRET)")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
