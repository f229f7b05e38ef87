package rio

import (
	"fmt"
	"log/slog"
	"time"
)

// Options controls how a session treats the target image.
type Options struct {
	// RunOnOpen starts the image when the session opens.
	RunOnOpen bool
	// ResetOnClose resets the image when the last session closes.
	ResetOnClose bool
	// ForceReload downloads the bitfile even if another image is running.
	ForceReload bool
}

// DefaultOptions returns RunOnOpen and ResetOnClose enabled.
func DefaultOptions() Options {
	return Options{RunOnOpen: true, ResetOnClose: true}
}

func (o Options) openAttribute() OpenAttribute {
	var attr OpenAttribute
	if !o.RunOnOpen {
		attr |= OpenNoRun
	}
	if o.ForceReload {
		attr |= OpenForceDownload
	}
	return attr
}

func (o Options) closeAttribute() CloseAttribute {
	if o.ResetOnClose {
		return 0
	}
	return CloseNoReset
}

// Config describes the session to open.
type Config struct {
	// Bitfile is the bitfile path on the target filesystem.
	Bitfile string
	// Signature must match the signature of the image on the target.
	Signature string
	// Target is a resource name such as "RIO0" or "rio://host/RIO0".
	Target string

	Options Options

	// Catalog, when set, lets the session reject addresses that are not part
	// of the bitfile before touching hardware.
	Catalog *Catalog
	Logger  *slog.Logger
	Tracer  Tracer
}

// ConfigFor returns a config for the bitfile described by c.
func ConfigFor(c *Catalog, target string) Config {
	return Config{
		Bitfile:   c.Bitfile,
		Signature: c.Signature,
		Target:    target,
		Options:   DefaultOptions(),
		Catalog:   c,
	}
}

// Validate checks that the required identity fields are present.
func (c Config) Validate() error {
	if c.Bitfile == "" {
		return fmt.Errorf("rio: config: bitfile is required")
	}
	if c.Signature == "" {
		return fmt.Errorf("rio: config: signature is required")
	}
	if c.Target == "" {
		return fmt.Errorf("rio: config: target is required")
	}
	if c.Catalog != nil && c.Catalog.Signature != "" && c.Catalog.Signature != c.Signature {
		return fmt.Errorf("rio: config: catalog %s is for signature %s, not %s",
			c.Catalog.Name, c.Catalog.Signature, c.Signature)
	}
	return nil
}

// TraceEvent records one operation performed through a session.
type TraceEvent struct {
	Session  string
	Op       string
	Resource string
	Address  uint32
	Bytes    int
	Elements int
	Start    time.Time
	Duration time.Duration
	Err      error
}

// Tracer receives a TraceEvent after every register, FIFO and IRQ operation.
// Implementations must be safe for concurrent use.
type Tracer interface {
	Trace(TraceEvent)
}
