package core

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

type rxRecord struct {
	port  int
	tick  uint64
	frame []byte
}

type testRx struct {
	tctx *TimerCtx
	rx   *[]rxRecord
}

func (o *testRx) OnRx(port *CLinkPort, frame []byte) {
	*o.rx = append(*o.rx, rxRecord{port: port.Id, tick: o.tctx.Ticks, frame: frame})
}

func testFrame(t *testing.T, dst, src MACKey, payload byte) []byte {
	b, err := PacketUtlBuild(
		&layers.Ethernet{SrcMAC: src.HardwareAddr(), DstMAC: dst.HardwareAddr(), EthernetType: layers.EthernetTypeIPv6},
		gopacket.Payload([]byte{payload, 0, 0, 0}))
	if err != nil {
		t.Fatalf("build frame %v", err)
	}
	return b
}

func TestLinkDelivery(t *testing.T) {
	tctx := NewTimerCtx(10 * time.Millisecond)
	link := NewLink(tctx, "l1", 50*time.Millisecond)
	var rx []rxRecord
	h := &testRx{tctx: tctx, rx: &rx}
	m0 := MACKey{0, 0, 1, 0, 0, 1}
	m1 := MACKey{0, 0, 1, 0, 0, 2}
	m2 := MACKey{0, 0, 1, 0, 0, 3}
	p0 := link.AddPort(m0, h)
	link.AddPort(m1, h)
	p2 := link.AddPort(m2, h)

	// unicast to port 1, multicast to all
	if err := p0.Send(testFrame(t, m1, m0, 1)); err != nil {
		t.Fatalf("send %v", err)
	}
	if err := p0.Send(testFrame(t, Ipv6MulticastMAC(Ipv6AllNodes), m0, 2)); err != nil {
		t.Fatalf("send %v", err)
	}
	p2.SetUp(false)
	if err := p2.Send(testFrame(t, m0, m2, 3)); err != ErrLinkDown {
		t.Fatalf("expected ErrLinkDown got %v", err)
	}

	for i := 0; i < 4; i++ {
		tctx.HandleTicks()
	}
	if len(rx) != 0 {
		t.Fatalf("frames delivered before the latency %v", rx)
	}
	tctx.HandleTicks()

	got := []int{}
	for _, r := range rx {
		if r.tick != 5 {
			t.Fatalf("delivered at tick %d", r.tick)
		}
		got = append(got, r.port*10+int(r.frame[14]))
	}
	// port 1 unicast, port 1 multicast, port 2 is down
	if diff := cmp.Diff([]int{11, 12}, got); diff != "" {
		t.Fatalf("delivery mismatch (-want +got):\n%s", diff)
	}
	if link.Cdb.Val("dropPortDown") != 1 || link.Cdb.Val("dropTxDown") != 1 || link.Cdb.Val("txPkts") != 2 {
		t.Fatalf("bad counters %v", link.Cdb.Snapshot())
	}
}

func TestLinkFilterAndCapture(t *testing.T) {
	tctx := NewTimerCtx(10 * time.Millisecond)
	link := NewLink(tctx, "l1", 0)
	var rx []rxRecord
	h := &testRx{tctx: tctx, rx: &rx}
	m0 := MACKey{0, 0, 1, 0, 0, 1}
	m1 := MACKey{0, 0, 1, 0, 0, 2}
	p0 := link.AddPort(m0, h)
	link.AddPort(m1, h)

	var buf bytes.Buffer
	c, err := NewCapture(&buf)
	if err != nil {
		t.Fatalf("capture %v", err)
	}
	link.SetCapture(c)
	link.Filter = func(src *CLinkPort, frame []byte) bool {
		return frame[14] != 0xee
	}

	p0.Send(testFrame(t, m1, m0, 0xee))
	p0.Send(testFrame(t, m1, m0, 1))
	tctx.HandleTicks()

	if len(rx) != 1 || rx[0].frame[14] != 1 {
		t.Fatalf("filter failed %v", rx)
	}
	if c.Frames() != 1 {
		t.Fatalf("capture frames %d", c.Frames())
	}

	r, err := pcapgo.NewReader(&buf)
	if err != nil {
		t.Fatalf("pcap reader %v", err)
	}
	data, _, err := r.ReadPacketData()
	if err != nil {
		t.Fatalf("read packet %v", err)
	}
	if !bytes.Equal(data, rx[0].frame) {
		t.Fatalf("captured frame differs")
	}
}
