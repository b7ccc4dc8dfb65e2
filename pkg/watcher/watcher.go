// Package watcher runs the continuous monitoring loop: a single-instance
// daemon that rescans registered targets on their intervals and journals
// what changed.
package watcher

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Target is one monitored network with its rescan interval.
type Target struct {
	CIDR     string
	Interval time.Duration
}

// ScanFunc performs one full scan-classify-persist pass over a target and
// returns the number of assets seen.
type ScanFunc func(ctx context.Context, cidr string) (int, error)

// ReloadFunc re-reads the classification rules. Called between cycles when
// the rules directory changed, never mid-scan.
type ReloadFunc func() error

// Config holds the watcher's runtime settings.
type Config struct {
	PIDPath  string
	LogPath  string
	RulesDir string
	Targets  []Target
}

// Watcher is the monitoring daemon. Targets within a cycle run sequentially
// so a cycle never saturates the link.
type Watcher struct {
	cfg    Config
	scan   ScanFunc
	reload ReloadFunc

	logger     zerolog.Logger
	rulesDirty atomic.Bool
	stopCh     chan struct{}
}

// New builds a watcher. reload may be nil when rules hot-reload is not
// wanted.
func New(cfg Config, scan ScanFunc, reload ReloadFunc) (*Watcher, error) {
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("watcher needs at least one target")
	}
	for _, t := range cfg.Targets {
		if t.Interval <= 0 {
			return nil, fmt.Errorf("target %s has no interval", t.CIDR)
		}
	}
	return &Watcher{cfg: cfg, scan: scan, reload: reload, stopCh: make(chan struct{})}, nil
}

// minInterval is the cycle period: the shortest interval across targets.
func (w *Watcher) minInterval() time.Duration {
	min := w.cfg.Targets[0].Interval
	for _, t := range w.cfg.Targets[1:] {
		if t.Interval < min {
			min = t.Interval
		}
	}
	return min
}

// Run claims the PID file and blocks in the scan loop until Stop, SIGTERM,
// SIGINT or context cancellation. The PID file is removed on exit.
func (w *Watcher) Run(ctx context.Context) error {
	if err := acquirePIDFile(w.cfg.PIDPath); err != nil {
		return err
	}
	defer os.Remove(w.cfg.PIDPath)

	w.logger = w.buildLogger()
	w.logger.Info().Int("targets", len(w.cfg.Targets)).
		Dur("min_interval", w.minInterval()).Msg("watcher started")

	if w.cfg.RulesDir != "" && w.reload != nil {
		stopNotify, err := w.watchRulesDir()
		if err != nil {
			w.logger.Warn().Err(err).Msg("rules hot-reload disabled")
		} else {
			defer stopNotify()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(w.minInterval())
	defer ticker.Stop()

	// First cycle runs immediately.
	lastRun := map[string]time.Time{}
	w.runCycle(ctx, lastRun)

	for {
		select {
		case <-ticker.C:
			w.maybeReloadRules()
			w.runCycle(ctx, lastRun)
		case sig := <-sigCh:
			w.logger.Info().Str("signal", sig.String()).Msg("watcher stopping")
			return nil
		case <-w.stopCh:
			w.logger.Info().Msg("watcher stopped")
			return nil
		case <-ctx.Done():
			w.logger.Info().Msg("watcher context cancelled")
			return ctx.Err()
		}
	}
}

// Stop ends the loop. The current target scan runs to completion first; it
// is bounded by its own timeouts.
func (w *Watcher) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
}

// runCycle scans each target whose interval has elapsed. One failing target
// never aborts the rest of the cycle.
func (w *Watcher) runCycle(ctx context.Context, lastRun map[string]time.Time) {
	for _, target := range w.cfg.Targets {
		if last, ok := lastRun[target.CIDR]; ok && time.Since(last) < target.Interval {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		started := time.Now()
		w.logger.Info().Str("target", target.CIDR).Msg("target scan started")
		count, err := w.scan(ctx, target.CIDR)
		if err != nil {
			w.logger.Error().Err(err).Str("target", target.CIDR).Msg("target scan failed")
		} else {
			w.logger.Info().Str("target", target.CIDR).Int("assets", count).
				Dur("elapsed", time.Since(started)).Msg("target scan finished")
		}
		lastRun[target.CIDR] = started
	}
}

// watchRulesDir marks the ruleset dirty on any filesystem event under the
// rules directory. The reload itself happens between cycles.
func (w *Watcher) watchRulesDir() (func(), error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(w.cfg.RulesDir); err != nil {
		fsw.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					w.rulesDirty.Store(true)
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn().Err(err).Msg("rules directory watch error")
			}
		}
	}()
	return func() { fsw.Close() }, nil
}

func (w *Watcher) maybeReloadRules() {
	if w.reload == nil || !w.rulesDirty.Swap(false) {
		return
	}
	if err := w.reload(); err != nil {
		w.logger.Warn().Err(err).Msg("rules reload failed, keeping previous ruleset")
		return
	}
	w.logger.Info().Msg("rules reloaded")
}

// buildLogger writes structured lines to a size-rotated file, falling back
// to the process logger when no log path is configured.
func (w *Watcher) buildLogger() zerolog.Logger {
	if w.cfg.LogPath == "" {
		return log.Logger
	}
	rotator := &lumberjack.Logger{
		Filename:   w.cfg.LogPath,
		MaxSize:    5, // megabytes
		MaxBackups: 3,
	}
	return zerolog.New(rotator).With().Timestamp().Str("component", "watcher").Logger()
}
