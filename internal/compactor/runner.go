// Package compactor is the stateful pipeline turning an hour of capture
// segments into compact GroupRecord and ScanSummary objects. One RunHour
// invocation is a single sequential pass: flow state has read-after-write
// dependencies (idle splits depend on prior packets of the same key), so
// there is no concurrency inside a run. Separate runs are independent and
// may execute in parallel.
package compactor

import (
	"log"
	"math/rand"
	"time"

	"NetDistill/internal/config"
	"NetDistill/internal/model"
	"NetDistill/pkg/segment"
)

// RunHour drives one full pass over [hourStart, hourEnd): enumerate
// segments, decode, group and enrich, then at window close quantize,
// classify scans, and emit every record to the sink, metrics last.
//
// It either completes and calls OnMetrics exactly once, or returns a fatal
// error before any sink call is made. Individual unreadable segments are
// counted and skipped, never fatal. Sink failures are not caught.
func RunHour(source model.SegmentSource, sink model.EventSink, cfg *config.Pipeline, hourStart, hourEnd int64) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	segs, err := source.ListSegments(hourStart, hourEnd)
	if err != nil {
		return err
	}

	metrics := &model.Metrics{SegmentsListed: uint64(len(segs))}
	grouper := NewGrouper(cfg)
	windowStart := time.Unix(hourStart, 0).UTC()
	windowEnd := time.Unix(hourEnd, 0).UTC()

	for _, desc := range segs {
		if err := processSegment(desc, grouper, metrics, windowStart, windowEnd); err != nil {
			// Segment boundaries come from the source; a bad segment is
			// reported and the pass continues.
			log.Printf("skipping segment: %v", err)
			metrics.SegmentsFailed++
		}
	}

	accs := grouper.CloseWindow()

	rng := rand.New(rand.NewSource(cfg.Seed))
	classifier := NewScanClassifier(cfg, rng)
	emit, summaries := classifier.Classify(accs, hourStart, hourEnd)

	sampler := NewSampler(cfg.HTTPURITokenBudget, cfg.HTTPAlwaysKeepLexicon, rng)
	for _, acc := range emit {
		sink.OnGroup(buildRecord(acc, cfg, sampler, metrics, hourStart, hourEnd))
		metrics.GroupsEmitted++
	}
	for _, sum := range summaries {
		sink.OnScan(sum)
		metrics.ScansCollapsed++
	}

	sink.OnMetrics(metrics)
	return nil
}

// processSegment streams one segment through the grouper, filtering packets
// to the window. Packets are handled in file order; segments in the order
// the source listed them.
func processSegment(desc model.SegmentDescriptor, grouper *Grouper, metrics *model.Metrics, windowStart, windowEnd time.Time) error {
	r, err := segment.Open(desc)
	if err != nil {
		return err
	}
	defer func() {
		metrics.DecodeErrors += r.DecodeErrors()
		r.Close()
	}()

	for {
		pkt, err := r.Next()
		if err != nil {
			// Next fails only with io.EOF; stream-level corruption is
			// counted in DecodeErrors and ends the segment early.
			return nil
		}
		// Segments may overlap the window; trust timestamps, not boundaries.
		if pkt.Timestamp.Before(windowStart) || !pkt.Timestamp.Before(windowEnd) {
			continue
		}
		grouper.Observe(pkt)
		metrics.PacketsProcessed++
	}
}

// buildRecord finalizes one closed accumulator into an immutable record:
// quantized tokens, sampled enrichment blocks, and hour lineage.
func buildRecord(acc *model.FlowAccumulator, cfg *config.Pipeline, sampler *Sampler, metrics *model.Metrics, hourStart, hourEnd int64) *model.GroupRecord {
	counts := model.Counts{
		PktsUp:  acc.PktsUp,
		PktsDn:  acc.PktsDn,
		BytesUp: acc.BytesUp,
		BytesDn: acc.BytesDn,
	}
	duration := acc.Duration()

	rec := &model.GroupRecord{
		Key: acc.Key,
		Time: model.TimeSpan{
			FirstTS:   epochSeconds(acc.FirstTS),
			LastTS:    epochSeconds(acc.LastTS),
			DurationS: duration,
		},
		Counts:      counts,
		TCPFlags:    acc.Flags,
		Tokens:      QuantizeTokens(counts, duration, acc.Flags, cfg),
		LineageHour: model.Window{HourStart: hourStart, HourEnd: hourEnd},
	}

	switch e := acc.Enrich.(type) {
	case *httpEnrichment:
		if tokens := e.Tokens(); len(tokens) > 0 {
			rec.HTTP = &model.HTTPEnrichment{URITokens: sampler.Sample(tokens)}
			metrics.HTTPEnriched++
		}
	case *ftpEnrichment:
		if counts := e.Counts(); counts != nil {
			rec.FTP = counts
			metrics.FTPEnriched++
		}
	case *smbEnrichment:
		if counts := e.Counts(); counts != nil {
			rec.SMB = counts
			metrics.SMBEnriched++
		}
	}

	return rec
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
