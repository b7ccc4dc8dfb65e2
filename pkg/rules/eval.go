package rules

import (
	"fmt"
	"strings"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

// Deltas accumulates per-category score contributions from one evaluation.
type Deltas map[model.Category]float64

func (d Deltas) add(scores map[model.Category]float64) {
	for cat, delta := range scores {
		d[cat] += delta
	}
}

// Result carries the score deltas and the human-readable evidence produced
// by evaluating one rule family.
type Result struct {
	Deltas   Deltas
	Evidence []string
}

func newResult() Result {
	return Result{Deltas: make(Deltas)}
}

// EvalPorts evaluates all port rules against an open-port set. Every
// matching rule accumulates.
func (s *Set) EvalPorts(openPorts []int) Result {
	res := newResult()
	if len(openPorts) == 0 {
		return res
	}
	have := make(map[int]bool, len(openPorts))
	for _, p := range openPorts {
		have[p] = true
	}

	for i := range s.Port {
		r := &s.Port[i]
		if portRuleMatches(r, have) {
			res.Deltas.add(r.Scores)
			res.Evidence = append(res.Evidence, fmt.Sprintf("port-rule %s: %s", r.Name, r.Description))
		}
	}
	return res
}

// portRuleMatches requires at least one include predicate to be specified
// and all specified predicates to hold.
func portRuleMatches(r *Rule, have map[int]bool) bool {
	if len(r.PortsIncludeAll) == 0 && len(r.PortsIncludeAny) == 0 {
		return false
	}
	for _, p := range r.PortsIncludeAll {
		if !have[p] {
			return false
		}
	}
	if len(r.PortsIncludeAny) > 0 {
		any := false
		for _, p := range r.PortsIncludeAny {
			if have[p] {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	for _, p := range r.PortsExclude {
		if have[p] {
			return false
		}
	}
	return true
}

// EvalVendor evaluates vendor rules; the first matching rule wins so a
// vendor string matching several aliases is not over-weighted.
func (s *Set) EvalVendor(vendor string) Result {
	res := newResult()
	if vendor == "" {
		return res
	}
	lower := strings.ToLower(vendor)

	for i := range s.Vendor {
		r := &s.Vendor[i]
		for _, needle := range r.VendorContains {
			if needle != "" && strings.Contains(lower, strings.ToLower(needle)) {
				res.Deltas.add(r.Scores)
				res.Evidence = append(res.Evidence, fmt.Sprintf("vendor %q -> %s", vendor, r.Name))
				return res
			}
		}
	}
	return res
}

// EvalHostname evaluates hostname rules; first match wins.
func (s *Set) EvalHostname(hostname string) Result {
	res := newResult()
	if hostname == "" {
		return res
	}

	for i := range s.Hostname {
		r := &s.Hostname[i]
		if r.hostnameRegex != nil && r.hostnameRegex.MatchString(hostname) {
			res.Deltas.add(r.Scores)
			res.Evidence = append(res.Evidence, fmt.Sprintf("hostname %q ~ %s", hostname, r.Name))
			return res
		}
	}
	return res
}

// EvalServices evaluates service rules against the mDNS service types seen
// on an asset. Every matching rule accumulates.
func (s *Set) EvalServices(serviceTypes []string) Result {
	res := newResult()
	if len(serviceTypes) == 0 {
		return res
	}

	for i := range s.Service {
		r := &s.Service[i]
		if serviceRuleMatches(r, serviceTypes) {
			res.Deltas.add(r.Scores)
			res.Evidence = append(res.Evidence, fmt.Sprintf("service-rule %s: %s", r.Name, r.Description))
		}
	}
	return res
}

func serviceRuleMatches(r *Rule, serviceTypes []string) bool {
	for _, st := range serviceTypes {
		lower := strings.ToLower(st)
		for _, needle := range r.ServiceTypeContains {
			if needle != "" && strings.Contains(lower, strings.ToLower(needle)) {
				return true
			}
		}
	}
	return false
}
