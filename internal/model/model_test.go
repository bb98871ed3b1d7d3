package model

import (
	"encoding/json"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowAccumulatorDuration(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	acc := &FlowAccumulator{FirstTS: base, LastTS: base.Add(1500 * time.Millisecond)}
	assert.Equal(t, 1.5, acc.Duration())

	acc = &FlowAccumulator{FirstTS: base, LastTS: base}
	assert.Equal(t, 0.0, acc.Duration())

	// Clock skew must never produce a negative duration.
	acc = &FlowAccumulator{FirstTS: base, LastTS: base.Add(-time.Second)}
	assert.Equal(t, 0.0, acc.Duration())
}

func TestErrorsUnwrap(t *testing.T) {
	src := &SourceUnavailableError{Err: fs.ErrNotExist}
	assert.True(t, errors.Is(src, fs.ErrNotExist))
	assert.Contains(t, src.Error(), "unavailable")

	dec := &SegmentDecodeError{Path: "/data/seg.pcap", Err: fs.ErrPermission}
	assert.True(t, errors.Is(dec, fs.ErrPermission))
	assert.Contains(t, dec.Error(), "/data/seg.pcap")

	cfg := &ConfigError{Field: "max_bin", Reason: "must be positive"}
	assert.Contains(t, cfg.Error(), "max_bin")
}

func TestGroupRecordJSONShape(t *testing.T) {
	rec := &GroupRecord{
		Key: FlowKey{
			SrcIP: "10.0.0.1", DstIP: "192.168.1.5", DstPort: 80,
			Transport: TransportTCP, Service: "http",
		},
		Time:        TimeSpan{FirstTS: 100.5, LastTS: 103.5, DurationS: 3.0},
		Counts:      Counts{PktsUp: 2, PktsDn: 2, BytesUp: 120, BytesDn: 300},
		TCPFlags:    FlagCounts{Syn: 2, Ack: 3},
		Tokens:      map[string]int{"pkts_up_bin": 1},
		LineageHour: Window{HourStart: 3600, HourEnd: 7200},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Contains(t, m, "key")
	assert.Contains(t, m, "time")
	assert.Contains(t, m, "counts")
	assert.Contains(t, m, "tokens")
	// Absent enrichment blocks are omitted, not null.
	assert.NotContains(t, m, "http")
	assert.NotContains(t, m, "ftp")
	assert.NotContains(t, m, "smb")
}
