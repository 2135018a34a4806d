// Package pcap reads capture files and turns IP packets into feature vectors.
package pcap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ErrClosed is returned when reading from a closed reader.
var ErrClosed = errors.New("pcap: reader closed")

// packetSource is satisfied by both the classic and the pcapng readers.
type packetSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Reader reads packets from a pcap or pcapng file.
type Reader struct {
	file      *os.File
	packets   *gopacket.PacketSource
	extractor *FeatureExtractor
}

// NewFileReader opens filename as pcap, falling back to pcapng.
func NewFileReader(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	src, err := openSource(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}

	return &Reader{
		file:      file,
		packets:   gopacket.NewPacketSource(src, src.LinkType()),
		extractor: NewFeatureExtractor(),
	}, nil
}

func openSource(file *os.File) (packetSource, error) {
	classic, err := pcapgo.NewReader(bufio.NewReader(file))
	if err == nil {
		return classic, nil
	}
	if _, serr := file.Seek(0, io.SeekStart); serr != nil {
		return nil, serr
	}
	ng, ngErr := pcapgo.NewNgReader(bufio.NewReader(file), pcapgo.NgReaderOptions{})
	if ngErr != nil {
		return nil, errors.Join(err, ngErr)
	}
	return ng, nil
}

// Read returns all IP packets as feature vectors.
func (r *Reader) Read() ([][]float64, error) {
	if r.packets == nil {
		return nil, ErrClosed
	}

	var data [][]float64
	for {
		features, err := r.next()
		if err == io.EOF {
			return data, nil
		}
		if err != nil {
			return data, err
		}
		data = append(data, features)
	}
}

// Stream returns a channel of feature vectors for real-time processing.
func (r *Reader) Stream(ctx context.Context) (<-chan []float64, error) {
	if r.packets == nil {
		return nil, ErrClosed
	}

	out := make(chan []float64, 1000)

	go func() {
		defer close(out)
		for {
			features, err := r.next()
			if err != nil {
				return
			}
			select {
			case out <- features:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// next returns the features of the next IP packet, skipping the rest.
func (r *Reader) next() ([]float64, error) {
	for {
		packet, err := r.packets.NextPacket()
		if err != nil {
			return nil, err
		}
		if features := r.extractor.Extract(packet); features != nil {
			return features, nil
		}
	}
}

// FeatureNames returns the names of extracted features.
func (r *Reader) FeatureNames() []string {
	return r.extractor.FeatureNames()
}

// Close releases resources.
func (r *Reader) Close() error {
	r.packets = nil
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

// FeatureExtractor extracts numerical features from network packets.
type FeatureExtractor struct {
	lastTimestamp time.Time
}

// NewFeatureExtractor creates a new packet feature extractor.
func NewFeatureExtractor() *FeatureExtractor {
	return &FeatureExtractor{}
}

// Extract converts an IP packet to a feature vector and returns nil for
// anything else. Inter-arrival time is measured between IP packets.
func (e *FeatureExtractor) Extract(packet gopacket.Packet) []float64 {
	features := make([]float64, numFeatures)

	switch ip := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		features[featTTL] = float64(ip.TTL)
	case *layers.IPv6:
		features[featTTL] = float64(ip.HopLimit)
	default:
		return nil
	}

	features[featSize] = float64(len(packet.Data()))

	if md := packet.Metadata(); md != nil && !md.Timestamp.IsZero() {
		if !e.lastTimestamp.IsZero() {
			features[featInterArrival] = md.Timestamp.Sub(e.lastTimestamp).Seconds()
		}
		e.lastTimestamp = md.Timestamp
	}

	switch l := packet.TransportLayer().(type) {
	case *layers.TCP:
		features[featProtocol] = 6
		features[featSrcPort] = float64(l.SrcPort)
		features[featDstPort] = float64(l.DstPort)
		features[featTCPFlags] = encodeTCPFlags(l)
		features[featTCPWindow] = float64(l.Window)
	case *layers.UDP:
		features[featProtocol] = 17
		features[featSrcPort] = float64(l.SrcPort)
		features[featDstPort] = float64(l.DstPort)
	default:
		if packet.Layer(layers.LayerTypeICMPv4) != nil {
			features[featProtocol] = 1
		} else if packet.Layer(layers.LayerTypeICMPv6) != nil {
			features[featProtocol] = 58
		}
	}

	if app := packet.ApplicationLayer(); app != nil {
		features[featPayload] = float64(len(app.Payload()))
	}

	return features
}

const (
	featSize = iota
	featInterArrival
	featProtocol
	featSrcPort
	featDstPort
	featTCPFlags
	featTTL
	featPayload
	featTCPWindow
	numFeatures
)

// FeatureNames returns the names of extracted features.
func (e *FeatureExtractor) FeatureNames() []string {
	return []string{
		"packet_size",
		"inter_arrival_time",
		"protocol",
		"src_port",
		"dst_port",
		"tcp_flags",
		"ip_ttl",
		"payload_size",
		"tcp_window",
	}
}

// encodeTCPFlags converts TCP flags to a numeric value.
func encodeTCPFlags(tcp *layers.TCP) float64 {
	var flags float64
	if tcp.SYN {
		flags += 1
	}
	if tcp.ACK {
		flags += 2
	}
	if tcp.FIN {
		flags += 4
	}
	if tcp.RST {
		flags += 8
	}
	if tcp.PSH {
		flags += 16
	}
	if tcp.URG {
		flags += 32
	}
	return flags
}
