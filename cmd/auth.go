/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"

	"github.com/aegisalert/aegis/client/restapi"
	"github.com/aegisalert/aegis/colors"
	"github.com/spf13/cobra"
)

var (
	emailArg    string
	passwordArg string
	nameArg     string
	phoneArg    string
	roleArg     string
)

func init() {
	rootCmd.AddCommand(createLoginCmd())
	rootCmd.AddCommand(createRegisterCmd())
	rootCmd.AddCommand(createLogoutCmd())
	rootCmd.AddCommand(createWhoamiCmd())
}

func createLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the alert platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			sess, err := app.flow.Login(commandContext(), emailArg, passwordArg)
			if err != nil {
				return formattedError("%v", restapi.Message(err))
			}
			defer app.channel.Disconnect()

			fmt.Fprintf(cmd.OutOrStdout(), "%v Signed in as %v (%v)\n",
				colors.Green("✓"), sess.DisplayName, sess.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&emailArg, "email", "", "account email")
	cmd.Flags().StringVar(&passwordArg, "password", "", "account password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")

	return cmd
}

func createRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the alert platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			sess, err := app.flow.Register(commandContext(), restapi.RegisterParams{
				Name:     nameArg,
				Email:    emailArg,
				Password: passwordArg,
				Phone:    phoneArg,
				Role:     roleArg,
			})
			if err != nil {
				return formattedError("%v", restapi.Message(err))
			}
			defer app.channel.Disconnect()

			fmt.Fprintf(cmd.OutOrStdout(), "%v Welcome %v, you are signed in as a(n) %v\n",
				colors.Green("✓"), sess.DisplayName, sess.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&nameArg, "name", "", "full name")
	cmd.Flags().StringVar(&emailArg, "email", "", "account email")
	cmd.Flags().StringVar(&passwordArg, "password", "", "account password")
	cmd.Flags().StringVar(&phoneArg, "phone", "", "phone number, E.164 format")
	cmd.Flags().StringVar(&roleArg, "role", "enduser", "account role: admin, responder or enduser")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")

	return cmd
}

func createLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and discard the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			if err := app.flow.Logout(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func createWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			sess, err := app.requireSession()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%v (%v)\n", sess.DisplayName, sess.Role)
			return nil
		},
	}
}
