// Package classify scores discovered assets against the rule engine and
// assigns each a BİGR category with a confidence value.
package classify

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/bigrlabs/bigr-discovery/pkg/fingerprint"
	"github.com/bigrlabs/bigr-discovery/pkg/model"
	"github.com/bigrlabs/bigr-discovery/pkg/netutil"
	"github.com/bigrlabs/bigr-discovery/pkg/oui"
	"github.com/bigrlabs/bigr-discovery/pkg/rules"
)

// AssignThreshold is the minimum confidence to leave unclassified.
// Exactly at the threshold still classifies.
const AssignThreshold = 0.30

// randomizedMACPenalty is subtracted from every category for
// locally-administered MACs with no open ports, pushing anonymous
// phone-style clients toward unclassified.
const randomizedMACPenalty = 0.15

// vendorHintDelta is the score applied when the OUI keyword table supplies
// the vendor signal instead of a vendor rule.
const vendorHintDelta = 0.6

// OverrideLookup resolves operator-set manual category tags. Implemented by
// the inventory store.
type OverrideLookup interface {
	ManualOverride(ip string) (category model.Category, note string, ok bool, err error)
}

// Classifier applies OUI, rule and fingerprint signals to assets. Safe for
// concurrent use once constructed: the ruleset and lookup tables are
// read-only.
type Classifier struct {
	rules     *rules.Set
	oui       *oui.Lookup
	fp        *fingerprint.Fingerprinter
	overrides OverrideLookup
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithOverrides wires the manual-override lookup.
func WithOverrides(o OverrideLookup) Option {
	return func(c *Classifier) { c.overrides = o }
}

// WithFingerprinter enables banner-based OS hinting.
func WithFingerprinter(f *fingerprint.Fingerprinter) Option {
	return func(c *Classifier) { c.fp = f }
}

// New builds a classifier. A nil or empty ruleset falls back to the
// built-in baselines per family.
func New(set *rules.Set, lookup *oui.Lookup, opts ...Option) *Classifier {
	if set == nil {
		set = &rules.Set{}
	}
	if lookup == nil {
		lookup = oui.NewLookup("")
	}
	c := &Classifier{rules: set, oui: lookup}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify enriches and categorizes one asset in place.
func (c *Classifier) Classify(ctx context.Context, asset *model.Asset) {
	asset.NormalizePorts()

	// Manual override short-circuits everything.
	if c.overrides != nil {
		if cat, note, ok, err := c.overrides.ManualOverride(asset.IP); err != nil {
			log.Warn().Err(err).Str("ip", asset.IP).Msg("manual override lookup failed")
		} else if ok {
			asset.Category = cat
			asset.ConfidenceScore = 1.0
			asset.Evidence("manual_override", note)
			return
		}
	}

	c.enrich(ctx, asset)

	scores := make(map[model.Category]float64, len(model.Categories))
	for _, cat := range model.Categories {
		scores[cat] = 0
	}

	c.applyFamily(asset, scores, "port_rules", c.portRules().EvalPorts(asset.OpenPorts))
	c.applyVendor(asset, scores)
	c.applyFamily(asset, scores, "hostname_rules", c.hostnameRules().EvalHostname(asset.Hostname))
	c.applyOSHint(asset, scores)
	c.applyFamily(asset, scores, "service_rules", c.serviceRules().EvalServices(serviceTypes(asset)))

	if netutil.IsLocallyAdministered(asset.MAC) && len(asset.OpenPorts) == 0 {
		for cat := range scores {
			scores[cat] = math.Max(0, scores[cat]-randomizedMACPenalty)
		}
		asset.Evidence("mac_randomized", "locally-administered MAC with no services")
	}

	winner, confidence := pickWinner(scores)
	if confidence >= AssignThreshold {
		asset.Category = winner
	} else {
		asset.Category = model.CategoryUnclassified
	}
	asset.ConfidenceScore = round4(confidence)
}

// enrich fills vendor and OS hint when missing.
func (c *Classifier) enrich(ctx context.Context, asset *model.Asset) {
	if asset.Vendor == "" && asset.MAC != "" {
		asset.Vendor = c.oui.Vendor(asset.MAC)
	}
	if asset.OSHint == "" && len(asset.OpenPorts) > 0 && c.fp != nil {
		asset.OSHint = c.fp.Hint(ctx, asset.IP, asset.OpenPorts)
	}
}

func (c *Classifier) applyFamily(asset *model.Asset, scores map[model.Category]float64, key string, res rules.Result) {
	for cat, delta := range res.Deltas {
		if cat != model.CategoryUnclassified {
			scores[cat] += delta
		}
	}
	if len(res.Evidence) > 0 {
		asset.Evidence(key, strings.Join(res.Evidence, "; "))
	}
}

// applyVendor prefers loaded vendor rules; when none match (or none are
// loaded) the OUI keyword hint supplies the signal.
func (c *Classifier) applyVendor(asset *model.Asset, scores map[model.Category]float64) {
	if len(c.rules.Vendor) > 0 {
		res := c.rules.EvalVendor(asset.Vendor)
		if len(res.Deltas) > 0 {
			c.applyFamily(asset, scores, "vendor_rules", res)
			return
		}
	}
	if hint := oui.CategoryHint(asset.Vendor); hint != "" && hint != model.CategoryUnclassified {
		scores[hint] += vendorHintDelta
		asset.Evidence("vendor_rules", "vendor '"+asset.Vendor+"' -> "+string(hint))
	}
}

func (c *Classifier) applyOSHint(asset *model.Asset, scores map[model.Category]float64) {
	if asset.OSHint == "" {
		return
	}
	lower := strings.ToLower(asset.OSHint)
	for _, h := range osHintScores {
		if strings.Contains(lower, h.keyword) {
			scores[h.category] += h.delta
			asset.Evidence("os_hint", asset.OSHint+" -> "+string(h.category))
			return
		}
	}
}

// portRules, hostnameRules and serviceRules return the loaded family or the
// baseline when the family is empty.
func (c *Classifier) portRules() *rules.Set {
	if len(c.rules.Port) > 0 {
		return c.rules
	}
	return baselineSet
}

func (c *Classifier) hostnameRules() *rules.Set {
	if len(c.rules.Hostname) > 0 {
		return c.rules
	}
	return baselineSet
}

func (c *Classifier) serviceRules() *rules.Set {
	if len(c.rules.Service) > 0 {
		return c.rules
	}
	return baselineSet
}

// serviceTypes extracts the mDNS service types attached to an asset.
func serviceTypes(asset *model.Asset) []string {
	if len(asset.MDNSServices) > 0 {
		types := make([]string, 0, len(asset.MDNSServices))
		for _, svc := range asset.MDNSServices {
			types = append(types, svc.ServiceType)
		}
		return types
	}
	// Fall back to evidence recorded by a previous enrichment pass.
	if joined := asset.RawEvidence["mdns_services"]; joined != "" {
		return strings.Split(joined, ",")
	}
	return nil
}

// pickWinner selects the highest-scoring category and normalizes its score
// into a confidence. Ties resolve in model.Categories order.
func pickWinner(scores map[model.Category]float64) (model.Category, float64) {
	var (
		winner model.Category
		best   float64
		sum    float64
	)
	for _, cat := range model.Categories {
		s := scores[cat]
		if s > 0 {
			sum += s
		}
		if s > best {
			best = s
			winner = cat
		}
	}
	if sum <= 0 || winner == "" {
		return model.CategoryUnclassified, 0
	}
	return winner, best / sum
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
