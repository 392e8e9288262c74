// cmd/keys.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/markb/logwatch/internal/auth"
)

const defaultJWTSecret = "super-secret-jwt-key-please-change-in-production"

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
	Long:  `Commands for managing admin API keys for logwatch.`,
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate anon and service_role API keys",
	Long:  `Generates both anon (read) and service_role (read/write) API keys using the configured JWT secret.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := auth.NewService(jwtSecretFromEnv())

		anonKey, err := keys.GenerateAPIKey(auth.APIKeyAnon)
		if err != nil {
			return fmt.Errorf("failed to generate anon key: %w", err)
		}

		serviceKey, err := keys.GenerateAPIKey(auth.APIKeyServiceRole)
		if err != nil {
			return fmt.Errorf("failed to generate service key: %w", err)
		}

		fmt.Printf("LOGWATCH_ANON_KEY=%s\n", anonKey)
		fmt.Printf("LOGWATCH_SERVICE_KEY=%s\n", serviceKey)

		return nil
	},
}

var keysSecretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a random JWT secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := auth.GenerateSecret()
		if err != nil {
			return err
		}
		fmt.Printf("LOGWATCH_JWT_SECRET=%s\n", secret)
		return nil
	},
}

// jwtSecretFromEnv returns LOGWATCH_JWT_SECRET, falling back to the
// development default with a warning.
func jwtSecretFromEnv() string {
	jwtSecret := os.Getenv("LOGWATCH_JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = defaultJWTSecret
		fmt.Fprintln(os.Stderr, "Warning: Using default JWT secret. Set LOGWATCH_JWT_SECRET in production.")
	}
	return jwtSecret
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd)
	keysCmd.AddCommand(keysSecretCmd)
}
