package compactor

import (
	"math"
	"math/rand"
	"sort"

	"NetDistill/internal/config"
	"NetDistill/internal/model"
)

// Ports whose appearance in a probe makes the flow interesting on its own.
var sensitivePorts = map[uint16]struct{}{
	21: {}, 22: {}, 23: {}, 445: {}, 3389: {},
}

// sourceStats tracks per-source fan-out within the window.
type sourceStats struct {
	flows        []*model.FlowAccumulator
	uniqueDsts   map[string]struct{}
	uniquePorts  map[uint16]struct{}
	synOnlyFlows int
}

// ScanClassifier separates high-fan-out sources into repetitive probing
// (collapsed into one ScanSummary per source) and genuine outliers (emitted
// as ordinary GroupRecords). Candidacy requires strictly more than the
// configured number of unique destinations; exactly the threshold does not
// qualify.
type ScanClassifier struct {
	cfg *config.Pipeline
	rng *rand.Rand
}

// NewScanClassifier builds a classifier sharing the run's seeded rng.
func NewScanClassifier(cfg *config.Pipeline, rng *rand.Rand) *ScanClassifier {
	return &ScanClassifier{cfg: cfg, rng: rng}
}

// Classify partitions the window's closed accumulators. It returns the
// accumulators to emit individually (input order preserved) and one summary
// per collapsed source, ordered by first appearance.
func (c *ScanClassifier) Classify(accs []*model.FlowAccumulator, hourStart, hourEnd int64) ([]*model.FlowAccumulator, []*model.ScanSummary) {
	stats := make(map[string]*sourceStats)
	var srcOrder []string

	for _, acc := range accs {
		src := acc.Key.SrcIP
		s, ok := stats[src]
		if !ok {
			s = &sourceStats{
				uniqueDsts:  make(map[string]struct{}),
				uniquePorts: make(map[uint16]struct{}),
			}
			stats[src] = s
			srcOrder = append(srcOrder, src)
		}
		s.flows = append(s.flows, acc)
		s.uniqueDsts[acc.Key.DstIP] = struct{}{}
		s.uniquePorts[acc.Key.DstPort] = struct{}{}
		if isSynOnly(acc) {
			s.synOnlyFlows++
		}
	}

	collapsed := make(map[*model.FlowAccumulator]struct{})
	var summaries []*model.ScanSummary

	for _, src := range srcOrder {
		s := stats[src]
		if len(s.uniqueDsts) <= c.cfg.ScanUniqueDstsThreshold {
			continue
		}

		outliers := c.splitOutliers(s.flows)
		// Sample targets come from collapsed flows only, first N in
		// observation order; outliers are emitted individually and must
		// not appear in the summary.
		var targets []model.Target
		nCollapsed := 0
		for i, acc := range s.flows {
			if _, isOutlier := outliers[i]; isOutlier {
				continue
			}
			collapsed[acc] = struct{}{}
			nCollapsed++
			if len(targets) < c.cfg.SampleTargetsCap {
				targets = append(targets, model.Target{DstIP: acc.Key.DstIP, DstPort: acc.Key.DstPort})
			}
		}
		if nCollapsed == 0 {
			continue
		}

		summaries = append(summaries, &model.ScanSummary{
			SrcIP:         src,
			Window:        model.Window{HourStart: hourStart, HourEnd: hourEnd},
			UniqueDsts:    len(s.uniqueDsts),
			UniquePorts:   len(s.uniquePorts),
			SynOnlyRatio:  float64(s.synOnlyFlows) / float64(len(s.flows)),
			SampleTargets: targets,
		})
	}

	var emit []*model.FlowAccumulator
	for _, acc := range accs {
		if _, skip := collapsed[acc]; !skip {
			emit = append(emit, acc)
		}
	}
	return emit, summaries
}

// splitOutliers scores one candidate source's flows with an isolation forest
// and returns the indices of flows inconsistent with the repetitive bulk.
// The threshold is the (1 - contamination) score quantile, compared with
// strict >, so a source whose flows all score identically collapses whole.
func (c *ScanClassifier) splitOutliers(flows []*model.FlowAccumulator) map[int]struct{} {
	outliers := make(map[int]struct{})
	if len(flows) < 2 {
		return outliers
	}

	X := make([][]float64, len(flows))
	for i, acc := range flows {
		X[i] = flowFeatures(acc)
	}

	forest := NewIsolationForest(X, c.cfg.IForestEstimators, c.rng)
	scores := forest.Scores(X)

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)
	idx := int(math.Ceil(float64(len(sorted))*(1-c.cfg.IForestContamination))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	threshold := sorted[idx]

	for i, sc := range scores {
		if sc > threshold {
			outliers[i] = struct{}{}
		}
	}
	return outliers
}

// flowFeatures is the per-flow vector the novelty model partitions on:
// SYN-only indicator, log-scaled volume, and sensitive-port indicator.
func flowFeatures(acc *model.FlowAccumulator) []float64 {
	synOnly := 0.0
	if isSynOnly(acc) {
		synOnly = 1.0
	}
	sensitive := 0.0
	if _, ok := sensitivePorts[acc.Key.DstPort]; ok {
		sensitive = 1.0
	}
	bytes := float64(acc.BytesUp + acc.BytesDn)
	pkts := float64(acc.PktsUp + acc.PktsDn)
	return []float64{
		synOnly,
		math.Log2(1 + bytes),
		math.Log2(1 + pkts),
		sensitive,
	}
}

// isSynOnly reports whether a flow looks like a bare probe: SYNs without any
// ACK or data exchange.
func isSynOnly(acc *model.FlowAccumulator) bool {
	return acc.Flags.Syn > 0 && acc.Flags.Ack == 0
}
