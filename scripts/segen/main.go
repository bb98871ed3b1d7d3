// segen writes a synthetic capture segment into the hour-partitioned
// layout that nd-compact reads: <root>/YYYY/MM/DD/HH/<name>.pcap[.gz].
// It mixes ordinary HTTP exchanges with a SYN sweep so one run exercises
// both grouping and scan collapsing.
package main

import (
	"compress/gzip"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

func main() {
	root := flag.String("root", "segments", "Segment root directory")
	flows := flag.Int("flows", 200, "Number of HTTP flows to generate")
	sweep := flag.Int("sweep", 80, "Number of SYN sweep targets (0 to disable)")
	gz := flag.Bool("gz", false, "Compress the segment with gzip")
	seed := flag.Int64("seed", 1, "RNG seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	now := time.Now().UTC().Truncate(time.Hour)

	dir := filepath.Join(*root, now.Format("2006"), now.Format("01"), now.Format("02"), now.Format("15"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("Failed to create segment directory: %v", err)
	}
	name := "seg-000.pcap"
	if *gz {
		name += ".gz"
	}
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	var out io.Writer = f
	var gzw *gzip.Writer
	if *gz {
		gzw = gzip.NewWriter(f)
		defer gzw.Close()
		out = gzw
	}

	w := pcapgo.NewWriter(out)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	ts := now.Add(time.Second)
	total := 0

	log.Printf("Generating %d HTTP flows into %s...", *flows, path)
	for i := 0; i < *flows; i++ {
		client := net.IP{10, 0, byte(rng.Intn(4)), byte(rng.Intn(250) + 1)}
		server := net.IP{192, 168, 1, byte(rng.Intn(20) + 1)}
		sport := layers.TCPPort(rng.Intn(65535-1024) + 1024)
		uri := fmt.Sprintf("/assets/item%d?id=%d", rng.Intn(30), rng.Intn(1000))

		total += writePacket(w, ts, client, server, sport, 80, tcpFlags{syn: true}, nil)
		ts = ts.Add(time.Millisecond)
		total += writePacket(w, ts, server, client, 80, sport, tcpFlags{syn: true, ack: true}, nil)
		ts = ts.Add(time.Millisecond)
		req := []byte("GET " + uri + " HTTP/1.1\r\nHost: example.test\r\n\r\n")
		total += writePacket(w, ts, client, server, sport, 80, tcpFlags{ack: true}, req)
		ts = ts.Add(time.Millisecond)
		resp := make([]byte, rng.Intn(900)+100)
		rng.Read(resp)
		total += writePacket(w, ts, server, client, 80, sport, tcpFlags{ack: true}, resp)
		ts = ts.Add(time.Duration(rng.Intn(500)+1) * time.Millisecond)
	}

	if *sweep > 0 {
		scanner := net.IP{172, 16, 0, 99}
		log.Printf("Generating SYN sweep over %d targets...", *sweep)
		for i := 0; i < *sweep; i++ {
			target := net.IP{192, 168, 2, byte(i + 1)}
			total += writePacket(w, ts, scanner, target, 40000, 22, tcpFlags{syn: true}, nil)
			ts = ts.Add(time.Millisecond)
		}
	}

	log.Printf("Wrote %d packets to %s.", total, path)
}

type tcpFlags struct {
	syn, ack bool
}

func writePacket(w *pcapgo.Writer, ts time.Time, src, dst net.IP, sport, dport layers.TCPPort, fl tcpFlags, payload []byte) int {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		SrcIP:    src,
		DstIP:    dst,
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{
		SrcPort: sport,
		DstPort: dport,
		SYN:     fl.syn,
		ACK:     fl.ack,
		Window:  14600,
	}
	tcp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)); err != nil {
		log.Fatalf("Failed to serialize layers: %v", err)
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(buf.Bytes()),
		Length:        len(buf.Bytes()),
	}
	if err := w.WritePacket(ci, buf.Bytes()); err != nil {
		log.Fatalf("Failed to write packet: %v", err)
	}
	return 1
}
