package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/bridge"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show bridge firmware information",
	Long: `Query the bridge selected by --driver (usb or loopback) for its firmware
version, serial number and the targets it serves.`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	if driverName == "sim" {
		return fmt.Errorf("info needs a bridge driver (usb or loopback)")
	}
	c, err := loadCatalog()
	if err != nil {
		return err
	}
	d, release, err := openDriver(c)
	if err != nil {
		return err
	}
	defer release()

	b, ok := d.(*bridge.Driver)
	if !ok {
		return fmt.Errorf("driver %s is not a bridge", driverName)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	info, err := b.Info(ctx)
	if err != nil {
		return fmt.Errorf("query bridge: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Firmware: %s\n", info.Firmware)
	fmt.Fprintf(out, "Serial:   %s\n", info.Serial)
	fmt.Fprintf(out, "Targets:  %s\n", strings.Join(info.Targets, ", "))
	return nil
}
