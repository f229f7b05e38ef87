package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
)

var (
	irqMask    string
	irqTimeout time.Duration
	irqAck     bool
)

var irqCmd = &cobra.Command{
	Use:   "irq",
	Short: "Wait on and acknowledge interrupts",
}

var irqWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait until any line in --mask is asserted",
	Long: `Block until one of the interrupt lines in --mask fires or --timeout elapses.
A timeout is reported, not treated as an error. A negative --timeout waits
forever.

  rio irq wait --mask 0,2 --timeout 5s --ack`,
	Args: cobra.NoArgs,
	RunE: runIrqWait,
}

var irqAckCmd = &cobra.Command{
	Use:   "ack",
	Short: "Acknowledge the lines in --mask",
	Args:  cobra.NoArgs,
	RunE:  runIrqAck,
}

func init() {
	irqCmd.PersistentFlags().StringVarP(&irqMask, "mask", "m", "0", "interrupt lines, e.g. 0,2,5")
	irqWaitCmd.Flags().DurationVar(&irqTimeout, "timeout", 10*time.Second, "how long to wait (negative waits forever)")
	irqWaitCmd.Flags().BoolVar(&irqAck, "ack", false, "acknowledge the lines that fired")

	irqCmd.AddCommand(irqWaitCmd)
	irqCmd.AddCommand(irqAckCmd)
	rootCmd.AddCommand(irqCmd)
}

func runIrqWait(cmd *cobra.Command, args []string) error {
	mask, err := rio.ParseIrqSet(irqMask)
	if err != nil {
		return err
	}
	s, cleanup, err := openSession()
	if err != nil {
		return err
	}
	defer cleanup()

	waiter, err := s.IrqWaiter()
	if err != nil {
		return err
	}
	defer waiter.Close()

	out := cmd.OutOrStdout()
	fired, timedOut, err := waiter.Wait(mask, waitTimeout(irqTimeout))
	if err != nil {
		return err
	}
	if timedOut {
		fmt.Fprintf(out, "Timed out after %s waiting for %s\n", irqTimeout, mask)
		return nil
	}
	fmt.Fprintf(out, "Fired: %s\n", fired)
	if irqAck {
		if err := waiter.Acknowledge(fired); err != nil {
			return err
		}
		fmt.Fprintf(out, "Acknowledged: %s\n", fired)
	}
	return nil
}

func runIrqAck(cmd *cobra.Command, args []string) error {
	mask, err := rio.ParseIrqSet(irqMask)
	if err != nil {
		return err
	}
	s, cleanup, err := openSession()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := s.AcknowledgeIrqs(mask); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Acknowledged: %s\n", mask)
	return nil
}
