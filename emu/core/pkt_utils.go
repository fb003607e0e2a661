package core

import (
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PacketUtlBuild serialize the layers into a frame, lengths and checksums are computed
func PacketUtlBuild(layers ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, layers...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CCapture pcap writer of simulated frames, the timestamp is the simulated time
type CCapture struct {
	w      *pcapgo.Writer
	frames uint64
}

// NewCapture write the pcap file header, frames are Ethernet
func NewCapture(w io.Writer) (*CCapture, error) {
	o := new(CCapture)
	o.w = pcapgo.NewWriterNanos(w)
	if err := o.w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *CCapture) Write(now time.Duration, frame []byte) error {
	o.frames++
	return o.w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     time.Unix(0, 0).Add(now),
		Length:        len(frame),
		CaptureLength: len(frame),
	}, frame)
}

// Frames number of frames written
func (o *CCapture) Frames() uint64 {
	return o.frames
}
