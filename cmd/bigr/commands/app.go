package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/bigrlabs/bigr-discovery/pkg/classify"
	"github.com/bigrlabs/bigr-discovery/pkg/config"
	"github.com/bigrlabs/bigr-discovery/pkg/fingerprint"
	"github.com/bigrlabs/bigr-discovery/pkg/inventory"
	"github.com/bigrlabs/bigr-discovery/pkg/model"
	"github.com/bigrlabs/bigr-discovery/pkg/netutil"
	"github.com/bigrlabs/bigr-discovery/pkg/oui"
	"github.com/bigrlabs/bigr-discovery/pkg/rules"
	"github.com/bigrlabs/bigr-discovery/pkg/scanner"
)

// buildScanOptions turns the scan section of the configuration into scanner
// options.
func buildScanOptions(cfg config.Config) (scanner.Options, error) {
	opts := scanner.DefaultOptions()
	if cfg.Scan.Mode != "" {
		opts.Mode = model.ScanMethod(cfg.Scan.Mode)
	}
	if cfg.Scan.Ports != "" {
		ports, err := netutil.ParsePorts(cfg.Scan.Ports)
		if err != nil {
			return opts, fmt.Errorf("invalid port list %q: %w", cfg.Scan.Ports, err)
		}
		opts.Ports = ports
	}
	if cfg.Scan.PortTimeout > 0 {
		opts.PortTimeout = cfg.Scan.PortTimeout
	}
	if cfg.Scan.Workers > 0 {
		opts.Workers = cfg.Scan.Workers
	}
	if cfg.Scan.MDNSWindow > 0 {
		opts.MDNSWindow = cfg.Scan.MDNSWindow
	}
	if cfg.Scan.SweepWindow > 0 {
		opts.SweepWindow = cfg.Scan.SweepWindow
	}
	opts.PingSweepFallback = cfg.Scan.PingSweep
	return opts, nil
}

// newClassifier assembles the classifier from the configured rules
// directory, OUI table and optional store-backed manual overrides.
func newClassifier(cfg config.Config, store *inventory.Store, scanOpts scanner.Options) *classify.Classifier {
	set, err := rules.Load(cfg.Rules.Dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.Rules.Dir).Msg("rules load failed, using built-in baselines")
		set = nil
	}
	lookup := oui.NewLookup(cfg.Rules.OUIPath)

	opts := []classify.Option{
		classify.WithFingerprinter(fingerprint.New(scanOpts.PortTimeout)),
	}
	if store != nil {
		opts = append(opts, classify.WithOverrides(store))
	}
	return classify.New(set, lookup, opts...)
}

// runPipeline executes one scan-classify-persist pass over a target. store
// may be nil, in which case nothing is persisted.
func runPipeline(ctx context.Context, cfg config.Config, target string, store *inventory.Store) (*model.ScanResult, error) {
	opts, err := buildScanOptions(cfg)
	if err != nil {
		return nil, err
	}

	result, err := scanner.NewHybrid(opts).Scan(ctx, target, opts)
	if err != nil {
		return nil, err
	}

	classifier := newClassifier(cfg, store, opts)
	for i := range result.Assets {
		classifier.Classify(ctx, &result.Assets[i])
	}

	if store != nil {
		id, err := store.SaveScan(result)
		if err != nil {
			return nil, fmt.Errorf("persist scan: %w", err)
		}
		result.ID = id
		if err := store.UpdateSubnetStats(target, len(result.Assets)); err != nil {
			log.Warn().Err(err).Str("target", target).Msg("subnet stats update failed")
		}
	}
	return result, nil
}

// openStore opens the configured inventory database.
func openStore(cfg config.Config) (*inventory.Store, error) {
	store, err := inventory.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open inventory: %w", err)
	}
	return store, nil
}
