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
	allDevicesArg bool

	deviceIDArg   string
	deviceTypeArg string
	statusArg     string
	batteryArg    int
)

func init() {
	devicesCmd := createDevicesCmd()
	devicesCmd.AddCommand(createDeviceAddCmd())
	devicesCmd.AddCommand(createDeviceAssignCmd())
	devicesCmd.AddCommand(createDeviceUnassignCmd())

	rootCmd.AddCommand(devicesCmd)
}

func createDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List your safety devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			if _, err := app.requireSession(); err != nil {
				return err
			}

			var devices []restapi.Device
			if allDevicesArg {
				devices, err = app.api.Devices(commandContext())
			} else {
				devices, err = app.api.MyDevices(commandContext())
			}
			if err != nil {
				return formattedError("%v", restapi.Message(err))
			}

			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No devices")
				return nil
			}

			for _, device := range devices {
				fmt.Fprintln(cmd.OutOrStdout(), deviceLine(device))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&allDevicesArg, "all", false, "list every registered device (admin)")

	return cmd
}

func createDeviceAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new device (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			if _, err := app.requireSession(); err != nil {
				return err
			}

			device, err := app.api.CreateDevice(commandContext(), restapi.CreateDeviceParams{
				DeviceID:     deviceIDArg,
				Type:         deviceTypeArg,
				Status:       statusArg,
				BatteryLevel: batteryArg,
			})
			if err != nil {
				return formattedError("%v", restapi.Message(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%v Device %v registered as %v\n", colors.Green("✓"), device.DeviceID, device.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&deviceIDArg, "id", "", "hardware device id")
	cmd.Flags().StringVar(&deviceTypeArg, "type", "button", "button, wearable, mobile or sensor")
	cmd.Flags().StringVar(&statusArg, "status", restapi.ACTIVE_DEVICE, "active, inactive or maintenance")
	cmd.Flags().IntVar(&batteryArg, "battery", 100, "battery level, 0-100")
	cmd.MarkFlagRequired("id")

	return cmd
}

func createDeviceAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign [device-id] [user-id]",
		Short: "Assign a device to a user (admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			if _, err := app.requireSession(); err != nil {
				return err
			}

			if err := app.api.AssignDevice(commandContext(), args[0], args[1]); err != nil {
				return formattedError("%v", restapi.Message(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Device %v assigned to %v\n", args[0], args[1])
			return nil
		},
	}
}

func createDeviceUnassignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unassign [device-id]",
		Short: "Release a device from its user (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			if _, err := app.requireSession(); err != nil {
				return err
			}

			if err := app.api.UnassignDevice(commandContext(), args[0]); err != nil {
				return formattedError("%v", restapi.Message(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Device %v unassigned\n", args[0])
			return nil
		},
	}
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func deviceLine(device restapi.Device) string {
	status := colors.Green(device.Status)
	if device.Status != restapi.ACTIVE_DEVICE {
		status = colors.Yellow(device.Status)
	}

	battery := fmt.Sprintf("%v%%", device.BatteryLevel)
	if device.BatteryLevel <= 20 {
		battery = colors.Red(battery)
	}

	return fmt.Sprintf("%v  %v  %v  %v  %v", device.ID, device.DeviceID, device.Type, status, battery)
}
