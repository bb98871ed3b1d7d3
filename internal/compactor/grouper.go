package compactor

import (
	"time"

	"NetDistill/internal/config"
	"NetDistill/internal/model"
)

// entry pairs an open accumulator with its key so closed slices can be
// replaced in place without disturbing insertion order.
type entry struct {
	key model.FlowKey
	acc *model.FlowAccumulator
}

// Grouper owns all open flow accumulators for one window. It applies the
// idle-split rule and hands completed accumulators to the caller at window
// close. At most one accumulator is open per key at any time.
//
// Packets are processed in the order segments are read; idle-split compares
// against the accumulator's own LastTS, so out-of-order timestamps across
// segments can make a late packet look idle relative to stream order. That
// is accepted, not corrected.
type Grouper struct {
	cfg    *config.Pipeline
	idle   time.Duration
	open   map[model.FlowKey]*entry
	order  []*entry
	closed []*model.FlowAccumulator
}

// NewGrouper creates an empty flow table for one window.
func NewGrouper(cfg *config.Pipeline) *Grouper {
	return &Grouper{
		cfg:  cfg,
		idle: time.Duration(cfg.IdleSplitSeconds) * time.Second,
		open: make(map[model.FlowKey]*entry),
	}
}

// Observe routes one packet into its flow accumulator, creating or
// idle-splitting as needed.
func (g *Grouper) Observe(pkt *model.PacketRecord) {
	key := model.FlowKey{
		SrcIP:     pkt.SrcIP,
		DstIP:     pkt.DstIP,
		DstPort:   pkt.DstPort,
		Transport: pkt.Transport,
		Service:   g.cfg.ServiceFor(pkt.DstPort),
	}

	e, ok := g.open[key]
	if !ok {
		// The key drops the source port, so reply traffic forms a different
		// direct key. Probe the reversed orientation before opening a new
		// flow: a hit means this packet is the "down" leg of an existing one.
		rkey := model.FlowKey{
			SrcIP:     pkt.DstIP,
			DstIP:     pkt.SrcIP,
			DstPort:   pkt.SrcPort,
			Transport: pkt.Transport,
			Service:   g.cfg.ServiceFor(pkt.SrcPort),
		}
		if re, rok := g.open[rkey]; rok {
			e, key = re, rkey
		}
	}

	if e == nil {
		e = &entry{key: key, acc: newAccumulator(key, pkt)}
		g.open[key] = e
		g.order = append(g.order, e)
	} else if pkt.Timestamp.Sub(e.acc.LastTS) > g.idle {
		// Idle gap exceeded: close the current slice and reopen fresh.
		g.closed = append(g.closed, e.acc)
		e.acc = newAccumulator(e.key, pkt)
	}

	updateAccumulator(e.acc, pkt)
}

// CloseWindow closes every still-open accumulator and returns all completed
// accumulators of the window, idle-split slices first, in deterministic
// order. The grouper drops its references; callers take ownership.
func (g *Grouper) CloseWindow() []*model.FlowAccumulator {
	out := g.closed
	for _, e := range g.order {
		out = append(out, e.acc)
	}
	g.open = make(map[model.FlowKey]*entry)
	g.order = nil
	g.closed = nil
	return out
}
