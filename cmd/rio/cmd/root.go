package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"

	"github.com/OpenTraceLab/OpenTraceRIO/internal/logging"
)

var (
	// Global flags
	verbose    bool
	logFormat  string
	driverName string
	target     string
	serial     string
	headerPath string
	bitfile    string
	noRun      bool
	force      bool
	tracePath  string
)

// envFlags lists the persistent flags that fall back to RIO_* variables.
var envFlags = map[string]string{
	"driver":  "RIO_DRIVER",
	"target":  "RIO_TARGET",
	"serial":  "RIO_SERIAL",
	"header":  "RIO_HEADER",
	"bitfile": "RIO_BITFILE",
	"trace":   "RIO_TRACE",
}

var rootCmd = &cobra.Command{
	Use:   "rio",
	Short: "OpenTraceRIO - register, FIFO and interrupt access to RIO FPGA targets",
	Long: `OpenTraceRIO (rio) opens a session on an FPGA target running a known bitfile
and reads or writes its registers, streams its DMA FIFOs and waits on its
interrupts. Resource names and types come from the generated NiFpga_<Name>.h
header.

Defaults for the global flags can be set with RIO_DRIVER, RIO_TARGET,
RIO_SERIAL, RIO_HEADER, RIO_BITFILE and RIO_TRACE, either in
the environment or in a .env file in the working directory.

Examples:
  rio targets                                   # List bridges and the simulator
  rio resources --header NiFpga_Main.h          # Show the register map
  rio write U8Control 5                         # Write a control
  rio read U8Result                             # Read an indicator
  rio fifo read Samples --count 512 --timeout 1s
  rio irq wait --mask 0,2 --timeout 5s --ack`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	go func() {
		<-interrupts
		atexit.Exit(130)
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	flags.StringVarP(&driverName, "driver", "d", "sim",
		"driver (sim, usb, loopback)")
	flags.StringVarP(&target, "target", "t", "RIO0", "target resource name")
	flags.StringVar(&serial, "serial", "", "USB bridge serial number (if multiple bridges)")
	flags.StringVarP(&headerPath, "header", "H", "",
		"generated NiFpga_<Name>.h describing the bitfile")
	flags.StringVar(&bitfile, "bitfile", "", "bitfile path on the target (default from header)")
	flags.BoolVar(&noRun, "no-run", false, "do not start the image when opening")
	flags.BoolVar(&force, "force", false, "download the bitfile even if another image is running")
	flags.StringVar(&tracePath, "trace", "",
		"record operations to a SQLite database (--trace=PATH, or --trace alone for a generated name)")
	flags.Lookup("trace").NoOptDefVal = autoTrace
}

// setup applies environment defaults and configures logging.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	var envErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		env, ok := envFlags[f.Name]
		if !ok || f.Changed {
			return
		}
		if v, set := os.LookupEnv(env); set && envErr == nil {
			if err := f.Value.Set(v); err != nil {
				envErr = fmt.Errorf("%s: %w", env, err)
			}
		}
	})
	if envErr != nil {
		return envErr
	}

	format, err := logging.ParseFormat(logFormat)
	if err != nil {
		return err
	}
	logging.SetFormat(format)
	if verbose {
		logging.SetLevel(slog.LevelDebug)
	} else {
		logging.SetLevel(slog.LevelWarn)
	}
	return nil
}
