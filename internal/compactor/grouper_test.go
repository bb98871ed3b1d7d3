package compactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NetDistill/internal/config"
	"NetDistill/internal/model"
)

func tcpPkt(ts time.Time, src, dst string, sport, dport uint16, flags uint8) *model.PacketRecord {
	return &model.PacketRecord{
		Timestamp: ts,
		SrcIP:     src,
		DstIP:     dst,
		SrcPort:   sport,
		DstPort:   dport,
		Transport: model.TransportTCP,
		TCPFlags:  flags,
		FrameLen:  60,
	}
}

func TestGrouperSingleFlow(t *testing.T) {
	cfg := config.DefaultPipeline()
	g := NewGrouper(&cfg)
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	g.Observe(tcpPkt(base, "10.0.0.1", "192.168.1.5", 40001, 80, model.TCPSyn))
	g.Observe(tcpPkt(base.Add(time.Second), "10.0.0.1", "192.168.1.5", 40001, 80, model.TCPAck))

	accs := g.CloseWindow()
	require.Len(t, accs, 1)

	acc := accs[0]
	assert.Equal(t, "10.0.0.1", acc.Key.SrcIP)
	assert.Equal(t, "192.168.1.5", acc.Key.DstIP)
	assert.Equal(t, uint16(80), acc.Key.DstPort)
	assert.Equal(t, "http", acc.Key.Service)
	assert.Equal(t, uint64(2), acc.PktsUp)
	assert.Equal(t, uint64(0), acc.PktsDn)
	assert.Equal(t, uint64(120), acc.BytesUp)
	assert.Equal(t, uint64(1), acc.Flags.Syn)
	assert.Equal(t, uint64(1), acc.Flags.Ack)
	assert.Equal(t, 1.0, acc.Duration())
}

func TestGrouperReplyJoinsFlow(t *testing.T) {
	cfg := config.DefaultPipeline()
	g := NewGrouper(&cfg)
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	// Request and reply have different direct keys; the reply must land on
	// the existing flow as "down" traffic, not open a second flow.
	g.Observe(tcpPkt(base, "10.0.0.1", "192.168.1.5", 40001, 80, model.TCPSyn))
	g.Observe(tcpPkt(base.Add(time.Millisecond), "192.168.1.5", "10.0.0.1", 80, 40001, model.TCPSyn|model.TCPAck))

	accs := g.CloseWindow()
	require.Len(t, accs, 1)

	acc := accs[0]
	assert.Equal(t, "10.0.0.1", acc.Key.SrcIP)
	assert.Equal(t, uint64(1), acc.PktsUp)
	assert.Equal(t, uint64(1), acc.PktsDn)
	assert.Equal(t, uint64(60), acc.BytesDn)
	assert.Equal(t, uint64(2), acc.Flags.Syn)
	assert.Equal(t, uint64(1), acc.Flags.Ack)
}

func TestGrouperIdleGapAtBoundaryStaysOpen(t *testing.T) {
	cfg := config.DefaultPipeline()
	g := NewGrouper(&cfg)
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	idle := time.Duration(cfg.IdleSplitSeconds) * time.Second

	g.Observe(tcpPkt(base, "10.0.0.1", "192.168.1.5", 40001, 80, model.TCPAck))
	// Gap exactly equal to the idle limit does not split.
	g.Observe(tcpPkt(base.Add(idle), "10.0.0.1", "192.168.1.5", 40001, 80, model.TCPAck))

	accs := g.CloseWindow()
	require.Len(t, accs, 1)
	assert.Equal(t, uint64(2), accs[0].PktsUp)
}

func TestGrouperIdleSplit(t *testing.T) {
	cfg := config.DefaultPipeline()
	g := NewGrouper(&cfg)
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	idle := time.Duration(cfg.IdleSplitSeconds) * time.Second

	g.Observe(tcpPkt(base, "10.0.0.1", "192.168.1.5", 40001, 80, model.TCPAck))
	g.Observe(tcpPkt(base.Add(idle+time.Second), "10.0.0.1", "192.168.1.5", 40001, 80, model.TCPAck))

	accs := g.CloseWindow()
	require.Len(t, accs, 2)
	// Both slices share the key; packets are split across them.
	assert.Equal(t, accs[0].Key, accs[1].Key)
	assert.Equal(t, uint64(1), accs[0].PktsUp)
	assert.Equal(t, uint64(1), accs[1].PktsUp)
	assert.True(t, accs[0].LastTS.Before(accs[1].FirstTS))
}

func TestGrouperDistinctKeys(t *testing.T) {
	cfg := config.DefaultPipeline()
	g := NewGrouper(&cfg)
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	// Same endpoints, different destination ports: two flows.
	g.Observe(tcpPkt(base, "10.0.0.1", "192.168.1.5", 40001, 80, model.TCPSyn))
	g.Observe(tcpPkt(base, "10.0.0.1", "192.168.1.5", 40002, 443, model.TCPSyn))
	// Different source port toward the same destination: same flow.
	g.Observe(tcpPkt(base.Add(time.Second), "10.0.0.1", "192.168.1.5", 40099, 80, model.TCPSyn))

	accs := g.CloseWindow()
	require.Len(t, accs, 2)
	assert.Equal(t, uint64(2), accs[0].PktsUp)
	assert.Equal(t, uint64(1), accs[1].PktsUp)
}

func TestGrouperCloseWindowResets(t *testing.T) {
	cfg := config.DefaultPipeline()
	g := NewGrouper(&cfg)
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	g.Observe(tcpPkt(base, "10.0.0.1", "192.168.1.5", 40001, 80, model.TCPSyn))
	require.Len(t, g.CloseWindow(), 1)
	assert.Empty(t, g.CloseWindow())
}

func TestGrouperUDPFlow(t *testing.T) {
	cfg := config.DefaultPipeline()
	g := NewGrouper(&cfg)
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	g.Observe(&model.PacketRecord{
		Timestamp: base,
		SrcIP:     "10.0.0.1",
		DstIP:     "8.8.8.8",
		SrcPort:   50000,
		DstPort:   53,
		Transport: model.TransportUDP,
		FrameLen:  80,
	})

	accs := g.CloseWindow()
	require.Len(t, accs, 1)
	assert.Equal(t, "dns", accs[0].Key.Service)
	assert.Equal(t, model.FlagCounts{}, accs[0].Flags)
}
