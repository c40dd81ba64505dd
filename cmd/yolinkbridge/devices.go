package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/yolink-bridge/internal/device"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/yolink-bridge/internal/yolink"
)

// newDevicesCmd lists the home id and every device on the account, which
// is what the sensors section of the config needs.
func newDevicesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the home id and devices on the YoLink account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log := logging.New(cfg.Logging, version)
			defer log.Close() //nolint:errcheck // best-effort flush at exit

			ctx := cmd.Context()
			tokens := yolink.NewTokenManager(cfg.YoLink.TokenURL, cfg.YoLink.ClientID, cfg.YoLink.ClientSecret,
				yolink.WithLogger(log))
			api := yolink.NewAPIClient(cfg.YoLink.APIURL, tokens, nil)

			homeID, records, err := enumerate(ctx, api)
			if err != nil {
				return fmt.Errorf("enumerating devices: %w", err)
			}
			return printDevices(cmd.OutOrStdout(), homeID, records)
		},
	}
}

// printDevices writes a table of records. Types the bridge does not
// handle are marked.
func printDevices(w io.Writer, homeID string, records []yolink.DeviceRecord) error {
	if _, err := fmt.Fprintf(w, "Home ID: %s\n\n", homeID); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE ID\tNAME\tTYPE\tHANDLED")
	for _, rec := range records {
		handled := "yes"
		if _, err := device.KindOf(rec.Type); err != nil {
			handled = "no"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.DeviceID, rec.Name, rec.Type, handled)
	}
	return tw.Flush()
}
