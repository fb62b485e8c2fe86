/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"

	"github.com/aegisalert/aegis/client/restapi"
	"github.com/spf13/cobra"
)

func init() {
	usersCmd := createUsersCmd()
	usersCmd.AddCommand(createUserDeleteCmd())

	rootCmd.AddCommand(usersCmd)
}

func createUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List platform accounts (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			if _, err := app.requireSession(); err != nil {
				return err
			}

			users, err := app.api.Users(commandContext())
			if err != nil {
				return formattedError("%v", restapi.Message(err))
			}

			for _, user := range users {
				fmt.Fprintf(cmd.OutOrStdout(), "%v  %v  %v  %v\n", user.ID, user.Name, user.Email, user.Role)
			}
			return nil
		},
	}
}

func createUserDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [user-id]",
		Short: "Delete an account (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			if _, err := app.requireSession(); err != nil {
				return err
			}

			if err := app.api.DeleteUser(commandContext(), args[0]); err != nil {
				return formattedError("%v", restapi.Message(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "User %v deleted\n", args[0])
			return nil
		},
	}
}
