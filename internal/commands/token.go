package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"evalgo.org/playground/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token [subject]",
	Short: "Generate an API token",
	Long: `Generate a JWT for the optional API guard (security.auth_enabled).

The token is signed with security.jwt_secret. Operators may change the
playground; viewers may only read resources and open WebSocket sessions.

Examples:
  # Operator token with the configured expiration
  playground token ci

  # Read-only token valid for one week
  playground token dashboard --role viewer --expiration 168h`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerateToken,
}

var (
	tokenRole       string
	tokenExpiration time.Duration
	tokenSecret     string
)

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleOperator), "token role (operator, viewer)")
	tokenCmd.Flags().DurationVar(&tokenExpiration, "expiration", 0, "token lifetime (default: security.jwt_expiration)")
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "signing secret (default: security.jwt_secret)")
}

func runGenerateToken(cmd *cobra.Command, args []string) error {
	role := auth.Role(tokenRole)
	if role != auth.RoleOperator && role != auth.RoleViewer {
		return fmt.Errorf("unknown role %q", tokenRole)
	}

	tokenCfg := *cfg
	if tokenSecret != "" {
		tokenCfg.Security.JWTSecret = tokenSecret
	}
	if tokenExpiration > 0 {
		tokenCfg.Security.JWTExpiration = tokenExpiration
	}

	token, err := auth.NewJWTService(&tokenCfg).GenerateToken(args[0], role)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	fmt.Printf("Subject:    %s\n", args[0])
	fmt.Printf("Role:       %s\n", role)
	fmt.Printf("Expiration: %s\n", tokenCfg.Security.JWTExpiration)
	fmt.Printf("\nToken:\n%s\n\n", token)
	fmt.Printf("Send it as 'Authorization: Bearer <token>' or as ?token=<token> on /ws.\n")

	return nil
}
