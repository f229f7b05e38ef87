package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
)

var resourcesJSON bool

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "List the registers and FIFOs of the bitfile",
	Long: `Print the resource map of the bitfile described by --header (or of the
simulator's demo bitfile). No target is contacted.`,
	Args: cobra.NoArgs,
	RunE: runResources,
}

func init() {
	resourcesCmd.Flags().BoolVar(&resourcesJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(resourcesCmd)
}

// resourceJSON is the --json form of a resource.
type resourceJSON struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Direction string `json:"direction"`
	Address   uint32 `json:"address"`
	Type      string `json:"type"`
	Bytes     int    `json:"bytes"`
}

// catalogJSON is the --json form of a catalog.
type catalogJSON struct {
	Name      string         `json:"name"`
	Bitfile   string         `json:"bitfile"`
	Signature string         `json:"signature"`
	Resources []resourceJSON `json:"resources"`
}

func runResources(cmd *cobra.Command, args []string) error {
	c, err := loadCatalog()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if resourcesJSON {
		doc := catalogJSON{Name: c.Name, Bitfile: c.Bitfile, Signature: c.Signature}
		for _, r := range c.Resources() {
			doc.Resources = append(doc.Resources, resourceJSON{
				Name:      r.Name(),
				Kind:      r.Kind().String(),
				Direction: r.Direction().String(),
				Address:   r.Address(),
				Type:      r.Descriptor().String(),
				Bytes:     r.Descriptor().PackedSize(),
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	fmt.Fprintf(out, "Bitfile:   %s\n", c.Bitfile)
	fmt.Fprintf(out, "Signature: %s\n\n", c.Signature)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tDIRECTION\tADDRESS\tTYPE")
	for _, r := range c.Resources() {
		addr := fmt.Sprintf("0x%05X", r.Address())
		if r.Kind() == rio.KindFifo {
			addr = fmt.Sprintf("%d", r.Address())
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Name(), r.Kind(), r.Direction(), addr, r.Descriptor())
	}
	return w.Flush()
}
