package compactor

import (
	"NetDistill/internal/model"
)

// newAccumulator opens a flow accumulator for key, starting at pkt. The
// packet's sender fixes the "up" direction for the accumulator's lifetime.
func newAccumulator(key model.FlowKey, pkt *model.PacketRecord) *model.FlowAccumulator {
	acc := &model.FlowAccumulator{
		Key:      key,
		FirstTS:  pkt.Timestamp,
		LastTS:   pkt.Timestamp,
		FirstSrc: pkt.SrcIP,
	}
	acc.Enrich = newEnrichment(key.Service)
	return acc
}

// updateAccumulator applies one packet to its accumulator: time bounds,
// directional counters, flag histogram, and lazy protocol enrichment.
// Flags are counted, not deduplicated; one packet can bump several counters.
func updateAccumulator(acc *model.FlowAccumulator, pkt *model.PacketRecord) {
	if pkt.Timestamp.Before(acc.FirstTS) {
		acc.FirstTS = pkt.Timestamp
	}
	if pkt.Timestamp.After(acc.LastTS) {
		acc.LastTS = pkt.Timestamp
	}

	if pkt.SrcIP == acc.FirstSrc {
		acc.PktsUp++
		acc.BytesUp += uint64(pkt.FrameLen)
	} else {
		acc.PktsDn++
		acc.BytesDn += uint64(pkt.FrameLen)
	}

	if pkt.Transport == model.TransportTCP {
		if pkt.TCPFlags&model.TCPSyn != 0 {
			acc.Flags.Syn++
		}
		if pkt.TCPFlags&model.TCPAck != 0 {
			acc.Flags.Ack++
		}
		if pkt.TCPFlags&model.TCPRst != 0 {
			acc.Flags.Rst++
		}
		if pkt.TCPFlags&model.TCPFin != 0 {
			acc.Flags.Fin++
		}
	}

	if acc.Enrich != nil {
		acc.Enrich.Observe(pkt)
	}
}
