package segment

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"NetDistill/internal/model"
)

// previewLen caps the TCP payload bytes handed to the protocol enrichers.
const previewLen = 256

// parsePacket extracts the minimal record the pipeline needs from a decoded
// packet. It returns ok=false for anything that is not IPv4/IPv6 TCP or UDP.
func parsePacket(packet gopacket.Packet) (*model.PacketRecord, bool) {
	rec := &model.PacketRecord{}

	if meta := packet.Metadata(); meta != nil {
		rec.Timestamp = meta.Timestamp
		rec.FrameLen = meta.Length
		if rec.FrameLen == 0 {
			rec.FrameLen = meta.CaptureLength
		}
	}

	switch {
	case packet.Layer(layers.LayerTypeIPv4) != nil:
		ip := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		rec.SrcIP = ip.SrcIP.String()
		rec.DstIP = ip.DstIP.String()
	case packet.Layer(layers.LayerTypeIPv6) != nil:
		ip := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		rec.SrcIP = ip.SrcIP.String()
		rec.DstIP = ip.DstIP.String()
	default:
		return nil, false
	}

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		rec.Transport = model.TransportTCP
		rec.SrcPort = uint16(tcp.SrcPort)
		rec.DstPort = uint16(tcp.DstPort)
		rec.TCPFlags = tcpFlagBits(tcp)
		if len(tcp.Payload) > 0 {
			n := len(tcp.Payload)
			if n > previewLen {
				n = previewLen
			}
			rec.Preview = make([]byte, n)
			copy(rec.Preview, tcp.Payload[:n])
		}
		return rec, true
	}

	if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		rec.Transport = model.TransportUDP
		rec.SrcPort = uint16(udp.SrcPort)
		rec.DstPort = uint16(udp.DstPort)
		return rec, true
	}

	return nil, false
}

func tcpFlagBits(tcp *layers.TCP) uint8 {
	var bits uint8
	if tcp.FIN {
		bits |= model.TCPFin
	}
	if tcp.SYN {
		bits |= model.TCPSyn
	}
	if tcp.RST {
		bits |= model.TCPRst
	}
	if tcp.ACK {
		bits |= model.TCPAck
	}
	return bits
}
