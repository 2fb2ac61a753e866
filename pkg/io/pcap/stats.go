package pcap

import (
	"time"

	"github.com/google/gopacket/layers"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// flow accumulates one bidirectional conversation. The forward direction is
// that of its first packet.
type flow struct {
	seq         int
	client      endpoint
	server      endpoint
	proto       uint8
	first, last time.Time

	fwdLen, bwdLen []float64
	allLen         []float64
	iat            []float64
	fwdIAT, bwdIAT []float64

	lastFwd, lastBwd time.Time

	fin, syn, rst, psh, ack, urg int
	initWinFwd, initWinBwd       float64
	seenBwd                      bool
}

func newFlow(seq int, p packetInfo) *flow {
	return &flow{
		seq:        seq,
		client:     p.src,
		server:     p.dst,
		proto:      p.proto,
		first:      p.ts,
		last:       p.ts,
		initWinFwd: -1,
		initWinBwd: -1,
	}
}

func (f *flow) isForward(p packetInfo) bool {
	return p.src == f.client
}

func (f *flow) add(p packetInfo, forward bool) {
	size := float64(p.payload)
	if len(f.allLen) > 0 {
		f.iat = append(f.iat, micros(p.ts.Sub(f.last)))
	}
	f.last = p.ts
	f.allLen = append(f.allLen, size)

	if forward {
		if !f.lastFwd.IsZero() {
			f.fwdIAT = append(f.fwdIAT, micros(p.ts.Sub(f.lastFwd)))
		}
		f.lastFwd = p.ts
		f.fwdLen = append(f.fwdLen, size)
	} else {
		if !f.lastBwd.IsZero() {
			f.bwdIAT = append(f.bwdIAT, micros(p.ts.Sub(f.lastBwd)))
		}
		f.lastBwd = p.ts
		f.bwdLen = append(f.bwdLen, size)
	}

	if p.tcp != nil {
		f.countFlags(p.tcp)
		if forward && f.initWinFwd < 0 {
			f.initWinFwd = float64(p.tcp.Window)
		}
		if !forward && f.initWinBwd < 0 {
			f.initWinBwd = float64(p.tcp.Window)
		}
	}
}

func (f *flow) countFlags(tcp *layers.TCP) {
	if tcp.FIN {
		f.fin++
	}
	if tcp.SYN {
		f.syn++
	}
	if tcp.RST {
		f.rst++
	}
	if tcp.PSH {
		f.psh++
	}
	if tcp.ACK {
		f.ack++
	}
	if tcp.URG {
		f.urg++
	}
}

// features renders the flow in featureNames order. Durations and
// inter-arrival times are in microseconds.
func (f *flow) features() []float64 {
	duration := micros(f.last.Sub(f.first))
	fwdBytes, bwdBytes := floats.Sum(f.fwdLen), floats.Sum(f.bwdLen)
	packets := float64(len(f.allLen))

	var bytesPerSec, packetsPerSec float64
	if duration > 0 {
		bytesPerSec = (fwdBytes + bwdBytes) / (duration / 1e6)
		packetsPerSec = packets / (duration / 1e6)
	}

	iatMean, iatStd := meanStd(f.iat)
	lenMean, lenStd := meanStd(f.allLen)
	fwdMean, _ := meanStd(f.fwdLen)
	bwdMean, _ := meanStd(f.bwdLen)
	fwdIATMean, _ := meanStd(f.fwdIAT)
	bwdIATMean, _ := meanStd(f.bwdIAT)

	return []float64{
		duration,
		float64(len(f.fwdLen)),
		float64(len(f.bwdLen)),
		fwdBytes,
		bwdBytes,
		maxOf(f.fwdLen),
		minOf(f.fwdLen),
		fwdMean,
		maxOf(f.bwdLen),
		minOf(f.bwdLen),
		bwdMean,
		bytesPerSec,
		packetsPerSec,
		iatMean,
		iatStd,
		maxOf(f.iat),
		minOf(f.iat),
		fwdIATMean,
		bwdIATMean,
		lenMean,
		lenStd,
		float64(f.fin),
		float64(f.syn),
		float64(f.rst),
		float64(f.psh),
		float64(f.ack),
		float64(f.urg),
		f.initWinFwd,
		f.initWinBwd,
		float64(f.proto),
		float64(f.server.port),
	}
}

func micros(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}

// meanStd returns the mean and sample standard deviation, zero for short series.
func meanStd(x []float64) (float64, float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}

func maxOf(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Max(x)
}

func minOf(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Min(x)
}
