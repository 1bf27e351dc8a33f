package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"taskhub/pkg/tracker"
	"taskhub/pkg/user"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var (
	userAdmin       bool
	userDisplayName string
	userEmail       string
)

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a user",
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

		role := user.RoleMember
		if userAdmin {
			role = user.RoleAdmin
		}
		svc := tracker.New(be.uow, be.repos, nil, nil, tracker.WithLogger(logger))
		u, err := svc.RegisterUser(cmd.Context(), tracker.NewUser{
			Username:    args[0],
			DisplayName: userDisplayName,
			Email:       userEmail,
			Role:        role,
		})
		if err != nil {
			return err
		}
		cmd.Printf("created user %d (%s, %s)\n", u.ID, u.Username, u.Role)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		be, err := openBackend(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer be.Close()

		users, err := be.repos.Users.List(cmd.Context())
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(users))
		for _, u := range users {
			rows = append(rows, []string{strconv.FormatInt(u.ID, 10), u.Username, u.Role, u.DisplayName, formatTime(u.CreatedAt)})
		}
		printTable(cmd.OutOrStdout(), []string{"ID", "USERNAME", "ROLE", "NAME", "CREATED"}, rows)
		return nil
	},
}

func init() {
	userAddCmd.Flags().BoolVar(&userAdmin, "admin", false, "grant the admin role")
	userAddCmd.Flags().StringVar(&userDisplayName, "name", "", "display name")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "email address")
	userCmd.AddCommand(userAddCmd, userListCmd)
	rootCmd.AddCommand(userCmd)
}
