package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceRIO/internal/logging"
	"github.com/OpenTraceLab/OpenTraceRIO/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
)

var (
	fifoCount   int
	fifoTimeout time.Duration
	fifoDepth   int
)

var fifoCmd = &cobra.Command{
	Use:   "fifo",
	Short: "Stream elements through a DMA FIFO",
	Long: `Read from a target-to-host FIFO or write to a host-to-target FIFO.

A timeout with some elements transferred is a partial transfer and is not an
error. A negative --timeout waits forever.`,
}

var fifoReadCmd = &cobra.Command{
	Use:   "read NAME",
	Short: "Read elements from a target-to-host FIFO",
	Args:  cobra.ExactArgs(1),
	RunE:  runFifoRead,
}

var fifoWriteCmd = &cobra.Command{
	Use:   "write NAME VALUE...",
	Short: "Write elements to a host-to-target FIFO",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runFifoWrite,
}

func init() {
	fifoCmd.PersistentFlags().DurationVar(&fifoTimeout, "timeout", time.Second, "how long to wait for data or space (negative waits forever)")
	fifoCmd.PersistentFlags().IntVar(&fifoDepth, "depth", 0, "configure the host buffer depth before transferring (0 keeps the default)")
	fifoReadCmd.Flags().IntVarP(&fifoCount, "count", "n", 1, "number of elements to read")

	fifoCmd.AddCommand(fifoReadCmd)
	fifoCmd.AddCommand(fifoWriteCmd)
	rootCmd.AddCommand(fifoCmd)
}

// openFifo opens a session and binds the FIFO name on it.
func openFifo(name string) (*rio.FifoChannel, func(), error) {
	s, cleanup, err := openSession()
	if err != nil {
		return nil, nil, err
	}
	res, err := lookup(s, name)
	if err == nil && res.Kind() != rio.KindFifo {
		err = fmt.Errorf("%s is a register; use read or write", name)
	}
	var fifo *rio.FifoChannel
	if err == nil {
		fifo, err = s.Fifo(res)
	}
	if err == nil && fifoDepth > 0 {
		var actual int
		actual, err = fifo.Configure(fifoDepth)
		if err == nil && actual != fifoDepth {
			logging.For(logging.ComponentCLI).Info("fifo depth adjusted", "fifo", name, "requested", fifoDepth, "actual", actual)
		}
	}
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return fifo, cleanup, nil
}

func runFifoRead(cmd *cobra.Command, args []string) error {
	if fifoCount < 0 {
		return fmt.Errorf("--count must not be negative")
	}
	fifo, cleanup, err := openFifo(args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	values, remaining, err := fifo.Read(fifoCount, waitTimeout(fifoTimeout))
	if errors.Is(err, rio.ErrTimeoutExceeded) {
		return fmt.Errorf("no elements arrived within %s: %w", fifoTimeout, err)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	desc := fifo.Resource().Descriptor()
	for _, v := range values {
		fmt.Fprintln(out, codec.FormatValue(desc, v))
	}
	fmt.Fprintf(out, "Read %d of %d element(s), %d remaining\n", len(values), fifoCount, remaining)
	return nil
}

func runFifoWrite(cmd *cobra.Command, args []string) error {
	fifo, cleanup, err := openFifo(args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	desc := fifo.Resource().Descriptor()
	values := make([]codec.Value, 0, len(args)-1)
	for i, text := range args[1:] {
		v, err := codec.ParseValue(desc, text)
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		values = append(values, v)
	}

	remaining, err := fifo.Write(values, waitTimeout(fifoTimeout))
	if errors.Is(err, rio.ErrTimeoutExceeded) {
		return fmt.Errorf("no space within %s: %w", fifoTimeout, err)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d of %d element(s), %d not accepted\n",
		len(values)-remaining, len(values), remaining)
	return nil
}
