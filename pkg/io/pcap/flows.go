// Package pcap aggregates captured packets into bidirectional flows and
// computes per-flow traffic features.
package pcap

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	flowio "github.com/hed1ad/flowselect/pkg/io"
)

// DefaultIdleTimeout closes a flow after this much silence.
const DefaultIdleTimeout = 120 * time.Second

var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

var featureNames = []string{
	"flow_duration",
	"total_fwd_packets",
	"total_bwd_packets",
	"total_fwd_bytes",
	"total_bwd_bytes",
	"fwd_packet_length_max",
	"fwd_packet_length_min",
	"fwd_packet_length_mean",
	"bwd_packet_length_max",
	"bwd_packet_length_min",
	"bwd_packet_length_mean",
	"flow_bytes_per_s",
	"flow_packets_per_s",
	"flow_iat_mean",
	"flow_iat_std",
	"flow_iat_max",
	"flow_iat_min",
	"fwd_iat_mean",
	"bwd_iat_mean",
	"packet_length_mean",
	"packet_length_std",
	"fin_flag_count",
	"syn_flag_count",
	"rst_flag_count",
	"psh_flag_count",
	"ack_flag_count",
	"urg_flag_count",
	"init_win_bytes_fwd",
	"init_win_bytes_bwd",
	"protocol",
	"destination_port",
}

// Extractor builds flow feature vectors from pcap or pcapng captures.
type Extractor struct {
	idleTimeout time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithIdleTimeout sets the inactivity gap that splits a 5-tuple into separate flows.
func WithIdleTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		e.idleTimeout = d
	}
}

// NewExtractor creates a new flow extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{idleTimeout: DefaultIdleTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ flowio.FeatureExtractor = (*Extractor)(nil)

// FeatureNames returns the names of extracted features.
func (e *Extractor) FeatureNames() []string {
	return append([]string(nil), featureNames...)
}

type packetSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Extract reads a capture and returns one feature vector per flow, ordered
// by the time of each flow's first packet. Packets that are not TCP or UDP
// over IP are ignored.
func (e *Extractor) Extract(r io.Reader) ([][]float64, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}

	var src packetSource
	if bytes.Equal(magic, ngMagic) {
		src, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		src, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	var (
		active   = map[flowKey]*flow{}
		finished []*flow
		seq      int
	)

	packets := gopacket.NewPacketSource(src, src.LinkType())
	packets.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}
	for {
		packet, err := packets.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read packet: %w", err)
		}

		p, ok := parse(packet)
		if !ok {
			continue
		}

		key := p.key()
		f := active[key]
		if f != nil && p.ts.Sub(f.last) > e.idleTimeout {
			finished = append(finished, f)
			f = nil
		}
		if f == nil {
			f = newFlow(seq, p)
			seq++
			active[key] = f
		}
		f.add(p, f.isForward(p))
	}

	for _, f := range active {
		finished = append(finished, f)
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].seq < finished[j].seq })

	out := make([][]float64, len(finished))
	for i, f := range finished {
		out[i] = f.features()
	}
	return out, nil
}

type endpoint struct {
	ip   string
	port uint16
}

type flowKey struct {
	a, b  endpoint
	proto uint8
}

// packetInfo is the subset of a packet the flow statistics need.
type packetInfo struct {
	ts       time.Time
	src, dst endpoint
	proto    uint8
	payload  int
	tcp      *layers.TCP
}

// key returns the same flow key for both directions of a conversation.
func (p packetInfo) key() flowKey {
	if p.src.ip < p.dst.ip || (p.src.ip == p.dst.ip && p.src.port <= p.dst.port) {
		return flowKey{a: p.src, b: p.dst, proto: p.proto}
	}
	return flowKey{a: p.dst, b: p.src, proto: p.proto}
}

func parse(packet gopacket.Packet) (packetInfo, bool) {
	var p packetInfo
	p.ts = packet.Metadata().Timestamp

	switch ip := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		p.src.ip, p.dst.ip = ip.SrcIP.String(), ip.DstIP.String()
	case *layers.IPv6:
		p.src.ip, p.dst.ip = ip.SrcIP.String(), ip.DstIP.String()
	default:
		return p, false
	}

	switch t := packet.TransportLayer().(type) {
	case *layers.TCP:
		p.proto = 6
		p.src.port, p.dst.port = uint16(t.SrcPort), uint16(t.DstPort)
		p.payload = len(t.Payload)
		p.tcp = t
	case *layers.UDP:
		p.proto = 17
		p.src.port, p.dst.port = uint16(t.SrcPort), uint16(t.DstPort)
		p.payload = len(t.Payload)
	default:
		return p, false
	}
	return p, true
}
