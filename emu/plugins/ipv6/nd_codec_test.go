package ipv6

import (
	"errors"
	"net/netip"
	"testing"

	"ndsim/emu/core"

	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket/layers"
)

func TestNdCodecRoundTrip(t *testing.T) {
	head := make([]byte, 40)
	for i := range head {
		head[i] = byte(i)
	}
	global := netip.MustParseAddr("2001:db8::5")

	var tests = []struct {
		name string
		m    *NdMessage
	}{
		{"rs", &NdMessage{
			Src: llHost, Dst: core.Ipv6AllRouters, DstMac: core.Ipv6MulticastMAC(core.Ipv6AllRouters),
			Body: &RouterSolicitation{SrcMac: macHost},
		}},
		{"rs-unspecified", &NdMessage{
			Src: netip.IPv6Unspecified(), Dst: core.Ipv6AllRouters, DstMac: core.Ipv6MulticastMAC(core.Ipv6AllRouters),
			Body: &RouterSolicitation{},
		}},
		{"ra", &NdMessage{
			Src: llRouter, Dst: core.Ipv6AllNodes, DstMac: core.Ipv6MulticastMAC(core.Ipv6AllNodes),
			Body: &RouterAdvertisement{
				CurHopLimit:    64,
				Managed:        true,
				RouterLifetime: 1800,
				ReachableTime:  30000,
				RetransTimer:   1000,
				SrcMac:         macRouter,
				Mtu:            1500,
				Prefixes: []PrefixInformation{{
					Prefix:            netip.MustParsePrefix("2001:db8:1::/64"),
					OnLink:            true,
					Autonomous:        true,
					ValidLifetime:     InfiniteLifetime,
					PreferredLifetime: 3600,
				}},
			},
		}},
		{"ns", &NdMessage{
			Src: llHost, Dst: core.Ipv6SolicitedNode(global), DstMac: core.Ipv6MulticastMAC(core.Ipv6SolicitedNode(global)),
			Body: &NeighbourSolicitation{Target: global, SrcMac: macHost},
		}},
		{"na", &NdMessage{
			Src: global, Dst: llHost, DstMac: macHost,
			Body: &NeighbourAdvertisement{Target: global, Router: true, Solicited: true, Override: true, TargetMac: macPeer},
		}},
		{"redirect", &NdMessage{
			Src: llRouter, Dst: global, DstMac: macHost,
			Body: &Redirect{
				Target:      llPeer,
				Destination: netip.MustParseAddr("2001:db8:2::1"),
				TargetMac:   macPeer,
				Redirected:  head,
			},
		}},
	}

	for _, tc := range tests {
		tc.m.HopLimit = NdHopLimit
		tc.m.SrcMac = macPeer
		frame, err := EncodeNdMessage(tc.m)
		if err != nil {
			t.Fatalf("%s: encode %v", tc.name, err)
		}
		m, d, err := DecodeFrame(frame)
		if err != nil {
			t.Fatalf("%s: decode %v", tc.name, err)
		}
		if d != nil {
			t.Fatalf("%s: decoded as a datagram", tc.name)
		}
		if diff := cmp.Diff(tc.m, m, addrCmp); diff != "" {
			t.Fatalf("%s: mismatch (-want +got):\n%s", tc.name, diff)
		}
	}
}

func TestNdCodecDatagram(t *testing.T) {
	d, err := NewUdpDatagram(llHost, llPeer, 1000, 53, []byte("query"))
	if err != nil {
		t.Fatalf("udp %v", err)
	}
	d.HopLimit = 64
	frame, err := EncodeDatagram(d, macHost, macPeer)
	if err != nil {
		t.Fatalf("encode %v", err)
	}
	m, got, err := DecodeFrame(frame)
	if err != nil || m != nil {
		t.Fatalf("decode %v %v", m, err)
	}
	if diff := cmp.Diff(d, got, addrCmp); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if udpDstPort(got) != 53 || got.NextHeader != layers.IPProtocolUDP {
		t.Fatalf("udp header %v", got)
	}
}

func TestNdCodecErrors(t *testing.T) {
	frame, err := EncodeNdMessage(&NdMessage{
		Src:      llHost,
		Dst:      llPeer,
		HopLimit: NdHopLimit,
		SrcMac:   macHost,
		DstMac:   macPeer,
		Body:     &NeighbourSolicitation{Target: llPeer, SrcMac: macHost},
	})
	if err != nil {
		t.Fatalf("encode %v", err)
	}

	if _, _, err := DecodeFrame(frame[:len(frame)-16]); !errors.Is(err, ErrMalformed) {
		t.Fatalf("truncated frame %v", err)
	}
	if _, _, err := DecodeFrame(frame[:10]); !errors.Is(err, ErrMalformed) {
		t.Fatalf("short frame %v", err)
	}

	arp := append([]byte(nil), frame...)
	arp[12], arp[13] = 0x08, 0x06
	if _, _, err := DecodeFrame(arp); err != ErrNotIpv6 {
		t.Fatalf("expected ErrNotIpv6 got %v", err)
	}

	if _, err := EncodeNdMessage(&NdMessage{Src: llHost, Dst: llPeer}); err == nil {
		t.Fatalf("encoded a message without a body")
	}
}
