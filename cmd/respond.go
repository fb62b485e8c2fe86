/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"

	"github.com/aegisalert/aegis/client/alerts"
	"github.com/aegisalert/aegis/client/lifecycle"
	"github.com/aegisalert/aegis/client/restapi"
	"github.com/aegisalert/aegis/colors"
	"github.com/spf13/cobra"
)

var notesArg string

func init() {
	rootCmd.AddCommand(createAlertsCmd())
	rootCmd.AddCommand(createAcceptCmd())
	rootCmd.AddCommand(createAdvanceCmd())
	rootCmd.AddCommand(createResponsesCmd())
}

func createAlertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "List alerts awaiting resolution",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			if _, err := app.requireSession(); err != nil {
				return err
			}

			triggers, err := app.alertService().Active(commandContext())
			if err != nil {
				return formattedError("%v", restapi.Message(err))
			}

			if len(triggers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), colors.Green("No active alerts"))
				return nil
			}

			for _, trigger := range triggers {
				fmt.Fprintf(cmd.OutOrStdout(), "%v  (raised by %v)\n", triggerLine(trigger), trigger.TriggeredBy.Name)
			}
			return nil
		},
	}
}

func createAcceptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept [trigger-id]",
		Short: "Accept an active alert as a responder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			if _, err := app.requireSession(); err != nil {
				return err
			}

			response, err := app.alertService().Accept(commandContext(), args[0], notesArg)
			if err != nil {
				return formattedError("%v", restapi.Message(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%v Alert %v accepted - update your progress with 'aegis advance %v'\n",
				colors.Green("✓"), response.TriggerID, response.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&notesArg, "notes", "", "note for the alert owner")

	return cmd
}

func createAdvanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advance [response-id]",
		Short: "Move your response to its next status",
		Long: `Move your response one step forward along
accepted -> en_route -> arrived -> completed.

The argument may be the response id or the alert's trigger id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			if _, err := app.requireSession(); err != nil {
				return err
			}

			service := app.alertService()
			response, err := findResponse(service, args[0])
			if err != nil {
				return err
			}

			updated, err := service.Advance(commandContext(), *response, notesArg)
			if err != nil {
				return formattedError("%v", restapi.Message(err))
			}

			line := fmt.Sprintf("Response %v is now %v", updated.ID, colors.Cyan(updated.Status))
			if updated.Status == lifecycle.COMPLETED_RESPONSE {
				line += " - " + colors.Green("nice work")
			}

			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}

	cmd.Flags().StringVar(&notesArg, "notes", "", "note for the alert owner")

	return cmd
}

func createResponsesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "responses [trigger-id]",
		Short: "List responses for an alert, or your own with no argument",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			if _, err := app.requireSession(); err != nil {
				return err
			}

			service := app.alertService()

			var responses []restapi.Response
			var err2 error
			if len(args) == 1 {
				responses, err2 = service.ResponsesFor(commandContext(), args[0])
			} else {
				responses, err2 = service.MyResponses(commandContext())
			}
			if err2 != nil {
				return formattedError("%v", restapi.Message(err2))
			}

			if len(responses) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No responses")
				return nil
			}

			for _, response := range responses {
				fmt.Fprintf(cmd.OutOrStdout(), "%v  alert=%v  %v  %v\n",
					response.ID, response.TriggerID, colors.Cyan(response.Status),
					response.AcceptedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

// findResponse resolves the caller's response by its own id, or by the id of
// the alert it belongs to.
func findResponse(service *alerts.Service, id string) (*restapi.Response, error) {
	responses, err := service.MyResponses(commandContext())
	if err != nil {
		return nil, formattedError("%v", restapi.Message(err))
	}

	for i := range responses {
		if responses[i].ID == id || responses[i].TriggerID == id {
			return &responses[i], nil
		}
	}

	return nil, formattedError("no response of yours matches %v", id)
}
