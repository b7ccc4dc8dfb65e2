package watcher

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"
)

// Status describes the watcher process as seen from outside, by reading the
// PID file and probing the referenced process.
type Status struct {
	Running bool  `json:"running"`
	PID     int32 `json:"pid,omitempty"`
}

// readPIDFile returns the PID stored in the file, or 0 when the file is
// missing or unparsable.
func readPIDFile(path string) int32 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return int32(pid)
}

func writePIDFile(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644)
}

func processAlive(pid int32) bool {
	alive, err := process.PidExists(pid)
	return err == nil && alive
}

// CheckStatus inspects the PID file at path. A stale file (dead process) is
// removed on read.
func CheckStatus(path string) Status {
	pid := readPIDFile(path)
	if pid == 0 {
		return Status{}
	}
	if !processAlive(pid) {
		log.Debug().Int32("pid", pid).Str("path", path).Msg("removing stale pid file")
		os.Remove(path)
		return Status{}
	}
	return Status{Running: true, PID: pid}
}

// StopRunning terminates the watcher referenced by the PID file, if any.
func StopRunning(path string) error {
	status := CheckStatus(path)
	if !status.Running {
		return fmt.Errorf("watcher is not running")
	}
	proc, err := process.NewProcess(status.PID)
	if err != nil {
		return fmt.Errorf("find watcher process %d: %w", status.PID, err)
	}
	if err := proc.Terminate(); err != nil {
		return fmt.Errorf("signal watcher process %d: %w", status.PID, err)
	}
	log.Info().Int32("pid", status.PID).Msg("sent termination signal to watcher")
	return nil
}

// acquirePIDFile claims the PID file for this process. It refuses when a
// live watcher already holds it and cleans up a stale file from a dead one.
func acquirePIDFile(path string) error {
	if pid := readPIDFile(path); pid != 0 {
		if processAlive(pid) {
			return fmt.Errorf("watcher already running (PID %d)", pid)
		}
		log.Warn().Int32("pid", pid).Msg("removing stale pid file from dead watcher")
		os.Remove(path)
	}
	return writePIDFile(path, os.Getpid())
}
