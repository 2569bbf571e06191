package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/nlu-hermes/internal/api"
	"github.com/nerrad567/nlu-hermes/internal/infrastructure/config"
)

// errNoJWTSecret is returned by the token command when no secret is set.
var errNoJWTSecret = errors.New("http.jwt_secret is not set (env " + config.EnvPrefix + "HTTP_JWT_SECRET)")

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		subject    string
		role       string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for POST /api/v1/train",
		Long: `token signs an HS256 JWT with http.jwt_secret from the configuration.
Send it as "Authorization: Bearer <token>" when training over HTTP.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = os.Getenv(configEnv)
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.HTTP.JWTSecret == "" {
				return errNoJWTSecret
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			token, err := api.GenerateToken(subject, role, cfg.HTTP.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML config file (env "+configEnv+")")
	f.StringVar(&subject, "subject", "operator", "token subject")
	f.StringVar(&role, "role", api.RoleTrainer, "token role: trainer or admin")
	f.DurationVar(&ttl, "ttl", api.DefaultTokenTTL, "token lifetime")

	return cmd
}
