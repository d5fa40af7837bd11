// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup spawns external tools in their own process group so
// that cancellation can reap the whole tree (ffmpeg forks helpers, rclone
// spawns transfer workers) without orphaning descendants.
package procgroup

import (
	"os/exec"
)

// Set configures the command to start in a new process group.
// Mandatory for Kill to act as a group reaper.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Kill terminates the command's entire process group immediately with an
// uncatchable signal. Safe to call on a nil or already-exited command.
func Kill(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return kill(cmd.Process.Pid)
}
