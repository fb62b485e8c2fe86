/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"

	"github.com/aegisalert/aegis/client/alerts"
	"github.com/aegisalert/aegis/client/restapi"
	"github.com/aegisalert/aegis/colors"
	"github.com/spf13/cobra"
)

var (
	deviceArg      string
	descriptionArg string
	priorityArg    string
	triggerTypeArg string
)

func init() {
	rootCmd.AddCommand(createTriggerCmd())
	rootCmd.AddCommand(createCancelCmd())
	rootCmd.AddCommand(createHistoryCmd())
}

func createTriggerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Raise an emergency alert from one of your devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			if _, err := app.requireSession(); err != nil {
				return err
			}

			trigger, err := app.alertService().Create(commandContext(), alerts.CreateParams{
				DeviceID:    deviceArg,
				Description: descriptionArg,
				Priority:    priorityArg,
				TriggerType: triggerTypeArg,
			})
			if err != nil {
				return formattedError("%v", restapi.Message(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%v Alert %v raised from %v - %v responder(s) notified\n",
				colors.BoldRed("●"), trigger.ID, trigger.Location.DisplayAddress(), len(trigger.RespondersNotified))
			return nil
		},
	}

	cmd.Flags().StringVar(&deviceArg, "device", "", "device raising the alert")
	cmd.Flags().StringVar(&descriptionArg, "description", "", "what is happening")
	cmd.Flags().StringVar(&priorityArg, "priority", restapi.HIGH_PRIORITY, "low, medium, high or critical")
	cmd.Flags().StringVar(&triggerTypeArg, "type", restapi.MANUAL_TRIGGER, "manual or automatic")
	cmd.MarkFlagRequired("device")

	return cmd
}

func createCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [trigger-id]",
		Short: "Cancel an alert you raised",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			sess, err := app.requireSession()
			if err != nil {
				return err
			}

			service := app.alertService()
			trigger, err := findTrigger(service, args[0])
			if err != nil {
				return err
			}

			cancelled, err := service.Cancel(commandContext(), *trigger, sess.UserID)
			if err != nil {
				return formattedError("%v", restapi.Message(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Alert %v cancelled\n", cancelled.ID)
			return nil
		},
	}
}

func createHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List the alerts you raised",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			if _, err := app.requireSession(); err != nil {
				return err
			}

			triggers, err := app.alertService().Mine(commandContext())
			if err != nil {
				return formattedError("%v", restapi.Message(err))
			}

			if len(triggers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "You have not raised any alerts")
				return nil
			}

			for _, trigger := range triggers {
				fmt.Fprintln(cmd.OutOrStdout(), triggerLine(trigger))
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

// findTrigger locates one of the caller's alerts by id, so ownership &
// status checks can run locally before the cancel round trip.
func findTrigger(service *alerts.Service, triggerID string) (*restapi.Trigger, error) {
	triggers, err := service.Mine(commandContext())
	if err != nil {
		return nil, formattedError("%v", restapi.Message(err))
	}

	for i := range triggers {
		if triggers[i].ID == triggerID {
			return &triggers[i], nil
		}
	}

	return nil, formattedError("no alert of yours matches %v", triggerID)
}

func triggerLine(trigger restapi.Trigger) string {
	return fmt.Sprintf("%v  %v  %v  %v  %v",
		trigger.ID,
		colors.Cyan(trigger.Status),
		trigger.Priority,
		trigger.CreatedAt.Format("2006-01-02 15:04"),
		trigger.Location.DisplayAddress(),
	)
}
