package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceRIO/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceRIO/pkg/rio"
)

var readCmd = &cobra.Command{
	Use:   "read NAME",
	Short: "Read a control or indicator",
	Long: `Read a register by name and print its decoded value. Arrays print as
[a, b, c], clusters as {field: value, ...} and fixed-point values as decimals.`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

var writeCmd = &cobra.Command{
	Use:   "write NAME VALUE",
	Short: "Write a control",
	Long: `Write VALUE to the control NAME. VALUE uses the same syntax read prints:

  rio write U8Control 5
  rio write Gain -- -1.25
  rio write Points "[{X: 1, Y: 2}, {X: -3, Y: 4}]"`,
	Args: cobra.ExactArgs(2),
	RunE: runWrite,
}

func init() {
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
}

func register(s *rio.Session, name string) (*rio.Resource, error) {
	res, err := lookup(s, name)
	if err != nil {
		return nil, err
	}
	if res.Kind() != rio.KindRegister {
		return nil, fmt.Errorf("%s is a fifo; use the fifo commands", name)
	}
	return res, nil
}

func runRead(cmd *cobra.Command, args []string) error {
	s, cleanup, err := openSession()
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := register(s, args[0])
	if err != nil {
		return err
	}
	v, err := s.Read(res)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", res.Name(), codec.FormatValue(res.Descriptor(), v))
	return nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	s, cleanup, err := openSession()
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := register(s, args[0])
	if err != nil {
		return err
	}
	v, err := codec.ParseValue(res.Descriptor(), args[1])
	if err != nil {
		return fmt.Errorf("parse %s value: %w", res.Name(), err)
	}
	if err := s.Write(res, v); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s <- %s\n", res.Name(), codec.FormatValue(res.Descriptor(), v))
	return nil
}
