package copa

import (
	"errors"
	"fmt"
)

// ErrConfigRange is returned at construction when a Config field is out
// of its allowed range (spec.md §7, error kind 3). It is fatal: the
// flow is never created.
var ErrConfigRange = errors.New("copa: default_delta must be in (0, 1]")

// Config is the per-flow configuration accepted by New.
type Config struct {
	// InitCWND is the initial congestion window in bytes. Zero means
	// "use the datapath-provided default".
	InitCWND Bytes
	// DefaultDelta is Copa's aggressiveness parameter floor, in (0, 1].
	DefaultDelta float32
	// DeltaMode selects whether the controller may enter TCP-cooperative
	// mode automatically.
	DeltaMode DeltaModeConfig
}

// Validate checks the configuration range, returning ErrConfigRange if
// DefaultDelta is out of (0, 1].
func (c Config) Validate() error {
	if c.DefaultDelta <= 0 || c.DefaultDelta > 1 {
		return fmt.Errorf("%w: got %v", ErrConfigRange, c.DefaultDelta)
	}
	return nil
}
