// Package copaconfig resolves and validates the CLI-facing configuration
// surface described in spec.md §6: the IPC transport selection and the
// per-flow Copa parameters, before they are handed to copa.New.
package copaconfig

import (
	"fmt"
	"runtime"

	"github.com/ccp-copa/copa/internal/copa"
)

// IPCKind selects the transport the host runtime uses to talk to the
// datapath. The transport itself is out of scope for this module; only
// the validated selection is part of the core's configuration surface.
type IPCKind string

const (
	IPCUnix    IPCKind = "unix"
	IPCNetlink IPCKind = "netlink"
)

// Valid reports whether k is a recognized IPC kind for the current
// platform. netlink is Linux-only, mirroring portus::algs::ipc_valid in
// the original CLI.
func (k IPCKind) Valid() bool {
	switch k {
	case IPCUnix:
		return true
	case IPCNetlink:
		return runtime.GOOS == "linux"
	default:
		return false
	}
}

// CLIConfig is the fully parsed, pre-validation command-line surface.
type CLIConfig struct {
	IPC          IPCKind
	InitCWND     uint32
	DefaultDelta float32
	DeltaMode    string // "notcp" | "auto"
}

// Resolve validates cli and returns the copa.Config it implies, along
// with the effective IPC kind. It is the one place flag-parsing errors
// are turned into the exit-code-bearing errors spec.md §6 requires.
func Resolve(cli CLIConfig) (copa.Config, IPCKind, error) {
	if !cli.IPC.Valid() {
		return copa.Config{}, "", fmt.Errorf("copaconfig: invalid --ipc %q for %s", cli.IPC, runtime.GOOS)
	}

	var mode copa.DeltaModeConfig
	switch cli.DeltaMode {
	case "", "auto":
		mode = copa.DeltaModeAuto
	case "notcp":
		mode = copa.DeltaModeNoTCP
	default:
		return copa.Config{}, "", fmt.Errorf("copaconfig: invalid --delta_mode %q (want auto|notcp)", cli.DeltaMode)
	}

	cfg := copa.Config{
		InitCWND:     cli.InitCWND,
		DefaultDelta: cli.DefaultDelta,
		DeltaMode:    mode,
	}
	if err := cfg.Validate(); err != nil {
		return copa.Config{}, "", err
	}
	return cfg, cli.IPC, nil
}
