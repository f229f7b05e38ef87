package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/bridge"
)

var targetsJSON bool

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List reachable RIO targets",
	Long: `Scan the host for RIO USB bridges and print a summary of the targets they
expose. The simulator is always listed last so the tools can be tried without
hardware.`,
	Args: cobra.NoArgs,
	RunE: runTargets,
}

func init() {
	targetsCmd.Flags().BoolVar(&targetsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(targetsCmd)
}

// targetJSON is the --json form of a discovered target.
type targetJSON struct {
	Kind        string `json:"kind"`
	Resource    string `json:"resource"`
	Description string `json:"description,omitempty"`
	VendorID    string `json:"vendor_id,omitempty"`
	ProductID   string `json:"product_id,omitempty"`
	Serial      string `json:"serial,omitempty"`
}

func runTargets(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	infos, err := bridge.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover targets: %w", err)
	}
	out := cmd.OutOrStdout()

	if targetsJSON {
		list := make([]targetJSON, 0, len(infos))
		for _, info := range infos {
			t := targetJSON{
				Kind:        string(info.Kind),
				Resource:    info.Resource,
				Description: info.Description,
				Serial:      info.Serial,
			}
			if info.Kind == bridge.TargetKindUSB {
				t.VendorID = fmt.Sprintf("%04X", info.VendorID)
				t.ProductID = fmt.Sprintf("%04X", info.ProductID)
			}
			list = append(list, t)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	fmt.Fprintln(out, "Detected RIO targets:")
	for _, info := range infos {
		if info.Kind == bridge.TargetKindUSB {
			fmt.Fprintf(out, "  - %s [%s] (VID:PID %04X:%04X)\n", info.Label(), info.Kind, info.VendorID, info.ProductID)
			continue
		}
		fmt.Fprintf(out, "  - %s [%s]\n", info.Label(), info.Kind)
	}
	return nil
}
