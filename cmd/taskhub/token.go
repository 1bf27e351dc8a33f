package main

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"taskhub/internal/api"
	"taskhub/pkg/user"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user-id|username>",
	Short: "Mint a bearer token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		be, err := openBackend(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer be.Close()

		u, err := lookupUser(cmd.Context(), be.repos.Users, args[0])
		if err != nil {
			return err
		}
		token, err := api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Mint(u, tokenTTL)
		if err != nil {
			return err
		}
		cmd.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

// lookupUser resolves a numeric id first, then a username.
func lookupUser(ctx context.Context, users user.Store, ref string) (*user.User, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return users.Get(ctx, id)
	}
	return users.ByUsername(ctx, ref)
}
