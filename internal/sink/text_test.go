package sink

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NetDistill/internal/model"
)

func TestTextSinkWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSink(&buf)

	s.OnGroup(&model.GroupRecord{
		Key:    model.FlowKey{SrcIP: "10.0.0.1", DstIP: "192.168.1.5", DstPort: 80, Transport: model.TransportTCP, Service: "http"},
		Tokens: map[string]int{"pkts_up_bin": 1},
	})
	s.OnScan(&model.ScanSummary{SrcIP: "172.16.0.99", UniqueDsts: 80})
	s.OnMetrics(&model.Metrics{PacketsProcessed: 84, GroupsEmitted: 1, ScansCollapsed: 1})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var group map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &group))
	assert.Equal(t, "group", group["kind"])
	assert.Contains(t, group, "group")
	assert.NotContains(t, group, "scan")

	var scan map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &scan))
	assert.Equal(t, "scan", scan["kind"])

	var metrics map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &metrics))
	assert.Equal(t, "metrics", metrics["kind"])
	m := metrics["metrics"].(map[string]any)
	assert.Equal(t, float64(84), m["packets_processed"])
}
