package ipv6

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"ndsim/emu/core"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	// ErrMalformed the frame could not be decoded
	ErrMalformed = errors.New("malformed packet")
	// ErrNotIpv6 the frame is not an ipv6 frame
	ErrNotIpv6 = errors.New("not an ipv6 frame")
)

// Datagram an ipv6 packet, Payload holds the upper layer header and data. RouterAlert
// adds a hop-by-hop header with the router alert option in front of the upper layer.
type Datagram struct {
	Src         netip.Addr
	Dst         netip.Addr
	HopLimit    uint8
	NextHeader  layers.IPProtocol
	RouterAlert bool
	Payload     []byte
}

const (
	ipv6OptionPadN        = 1
	ipv6OptionRouterAlert = 5
)

// routerAlertHeader hop-by-hop header with the MLD router alert, padded to 8 bytes
func routerAlertHeader(next layers.IPProtocol) *layers.IPv6HopByHop {
	hbh := &layers.IPv6HopByHop{Options: []*layers.IPv6HopByHopOption{
		{OptionType: ipv6OptionRouterAlert, OptionData: []byte{0, 0}},
		{OptionType: ipv6OptionPadN},
	}}
	hbh.NextHeader = next
	return hbh
}

func hasRouterAlert(hbh *layers.IPv6HopByHop) bool {
	for _, opt := range hbh.Options {
		if opt.OptionType == ipv6OptionRouterAlert {
			return true
		}
	}
	return false
}

func (o *Datagram) String() string {
	return fmt.Sprintf("%s -> %s proto %d len %d", o.Src, o.Dst, o.NextHeader, len(o.Payload))
}

// NewUdpDatagram build a datagram with a udp header, the checksum is computed
func NewUdpDatagram(src, dst netip.Addr, srcPort, dstPort uint16, data []byte) (*Datagram, error) {
	ip6 := &layers.IPv6{Version: 6, NextHeader: layers.IPProtocolUDP, SrcIP: src.AsSlice(), DstIP: dst.AsSlice()}
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	if err := udp.SetNetworkLayerForChecksum(ip6); err != nil {
		return nil, err
	}
	b, err := core.PacketUtlBuild(udp, gopacket.Payload(data))
	if err != nil {
		return nil, err
	}
	return &Datagram{Src: src, Dst: dst, NextHeader: layers.IPProtocolUDP, Payload: b}, nil
}

func macSlice(mac core.MACKey) net.HardwareAddr {
	return append(net.HardwareAddr(nil), mac[:]...)
}

func ethernetFor(srcMac, dstMac core.MACKey) *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       macSlice(srcMac),
		DstMAC:       macSlice(dstMac),
		EthernetType: layers.EthernetTypeIPv6,
	}
}

// EncodeDatagram build the Ethernet frame of a datagram
func EncodeDatagram(d *Datagram, srcMac, dstMac core.MACKey) ([]byte, error) {
	ip6 := &layers.IPv6{
		Version:    6,
		NextHeader: d.NextHeader,
		HopLimit:   d.HopLimit,
		SrcIP:      d.Src.AsSlice(),
		DstIP:      d.Dst.AsSlice(),
	}
	if d.RouterAlert {
		ip6.HopByHop = routerAlertHeader(d.NextHeader)
	}
	return core.PacketUtlBuild(ethernetFor(srcMac, dstMac), ip6, gopacket.Payload(d.Payload))
}

func linkLayerOption(t layers.ICMPv6Opt, mac core.MACKey) layers.ICMPv6Option {
	return layers.ICMPv6Option{Type: t, Data: macSlice(mac)}
}

func prefixOption(p *PrefixInformation) layers.ICMPv6Option {
	data := make([]byte, 30)
	data[0] = uint8(p.Prefix.Bits())
	if p.OnLink {
		data[1] |= 0x80
	}
	if p.Autonomous {
		data[1] |= 0x40
	}
	binary.BigEndian.PutUint32(data[2:6], p.ValidLifetime)
	binary.BigEndian.PutUint32(data[6:10], p.PreferredLifetime)
	a := p.Prefix.Masked().Addr().As16()
	copy(data[14:30], a[:])
	return layers.ICMPv6Option{Type: layers.ICMPv6OptPrefixInfo, Data: data}
}

func mtuOption(mtu uint32) layers.ICMPv6Option {
	data := make([]byte, 6)
	binary.BigEndian.PutUint32(data[2:6], mtu)
	return layers.ICMPv6Option{Type: layers.ICMPv6OptMTU, Data: data}
}

// redirectedHeaderOption the option length is a multiple of 8 bytes
func redirectedHeaderOption(pkt []byte) layers.ICMPv6Option {
	l := 6 + len(pkt)
	if pad := (l + 2) % 8; pad != 0 {
		l += 8 - pad
	}
	data := make([]byte, l)
	copy(data[6:], pkt)
	return layers.ICMPv6Option{Type: layers.ICMPv6OptRedirectedHeader, Data: data}
}

func ndLayer(body NdBody) (gopacket.SerializableLayer, error) {
	switch b := body.(type) {
	case *RouterSolicitation:
		rs := &layers.ICMPv6RouterSolicitation{}
		if !b.SrcMac.IsZero() {
			rs.Options = append(rs.Options, linkLayerOption(layers.ICMPv6OptSourceAddress, b.SrcMac))
		}
		return rs, nil
	case *RouterAdvertisement:
		ra := &layers.ICMPv6RouterAdvertisement{
			HopLimit:       b.CurHopLimit,
			RouterLifetime: b.RouterLifetime,
			ReachableTime:  b.ReachableTime,
			RetransTimer:   b.RetransTimer,
		}
		if b.Managed {
			ra.Flags |= 0x80
		}
		if b.Other {
			ra.Flags |= 0x40
		}
		if !b.SrcMac.IsZero() {
			ra.Options = append(ra.Options, linkLayerOption(layers.ICMPv6OptSourceAddress, b.SrcMac))
		}
		if b.Mtu != 0 {
			ra.Options = append(ra.Options, mtuOption(b.Mtu))
		}
		for i := range b.Prefixes {
			ra.Options = append(ra.Options, prefixOption(&b.Prefixes[i]))
		}
		return ra, nil
	case *NeighbourSolicitation:
		ns := &layers.ICMPv6NeighborSolicitation{TargetAddress: b.Target.AsSlice()}
		if !b.SrcMac.IsZero() {
			ns.Options = append(ns.Options, linkLayerOption(layers.ICMPv6OptSourceAddress, b.SrcMac))
		}
		return ns, nil
	case *NeighbourAdvertisement:
		na := &layers.ICMPv6NeighborAdvertisement{TargetAddress: b.Target.AsSlice()}
		if b.Router {
			na.Flags |= 0x80
		}
		if b.Solicited {
			na.Flags |= 0x40
		}
		if b.Override {
			na.Flags |= 0x20
		}
		if !b.TargetMac.IsZero() {
			na.Options = append(na.Options, linkLayerOption(layers.ICMPv6OptTargetAddress, b.TargetMac))
		}
		return na, nil
	case *Redirect:
		rd := &layers.ICMPv6Redirect{
			TargetAddress:      b.Target.AsSlice(),
			DestinationAddress: b.Destination.AsSlice(),
		}
		if !b.TargetMac.IsZero() {
			rd.Options = append(rd.Options, linkLayerOption(layers.ICMPv6OptTargetAddress, b.TargetMac))
		}
		if len(b.Redirected) > 0 {
			rd.Options = append(rd.Options, redirectedHeaderOption(b.Redirected))
		}
		return rd, nil
	default:
		return nil, fmt.Errorf("unknown nd body %T", body)
	}
}

// EncodeNdMessage build the Ethernet frame of the message, DstMac should be set
func EncodeNdMessage(m *NdMessage) ([]byte, error) {
	nd, err := ndLayer(m.Body)
	if err != nil {
		return nil, err
	}
	ip6 := &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolICMPv6,
		HopLimit:   m.HopLimit,
		SrcIP:      m.Src.AsSlice(),
		DstIP:      m.Dst.AsSlice(),
	}
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(uint8(m.Body.Type()), m.Code)}
	if err := icmp.SetNetworkLayerForChecksum(ip6); err != nil {
		return nil, err
	}
	return core.PacketUtlBuild(ethernetFor(m.SrcMac, m.DstMac), ip6, icmp, nd)
}

func isNdType(t uint8) bool {
	return t >= layers.ICMPv6TypeRouterSolicitation && t <= layers.ICMPv6TypeRedirect
}

func optMac(opt *layers.ICMPv6Option) (core.MACKey, error) {
	mac, ok := core.MACKeyFromBytes(opt.Data[:min(len(opt.Data), 6)])
	if !ok {
		return mac, fmt.Errorf("%w: link-layer option too short", ErrMalformed)
	}
	return mac, nil
}

func decodeOptions(opts layers.ICMPv6Options, slla, tlla *core.MACKey, ra *RouterAdvertisement, rd *Redirect) error {
	for i := range opts {
		opt := &opts[i]
		switch opt.Type {
		case layers.ICMPv6OptSourceAddress:
			if slla == nil {
				continue
			}
			mac, err := optMac(opt)
			if err != nil {
				return err
			}
			*slla = mac
		case layers.ICMPv6OptTargetAddress:
			if tlla == nil {
				continue
			}
			mac, err := optMac(opt)
			if err != nil {
				return err
			}
			*tlla = mac
		case layers.ICMPv6OptMTU:
			if ra == nil {
				continue
			}
			if len(opt.Data) < 6 {
				return fmt.Errorf("%w: mtu option too short", ErrMalformed)
			}
			ra.Mtu = binary.BigEndian.Uint32(opt.Data[2:6])
		case layers.ICMPv6OptPrefixInfo:
			if ra == nil {
				continue
			}
			if len(opt.Data) < 30 || opt.Data[0] > 128 {
				return fmt.Errorf("%w: bad prefix option", ErrMalformed)
			}
			var a [16]byte
			copy(a[:], opt.Data[14:30])
			ra.Prefixes = append(ra.Prefixes, PrefixInformation{
				Prefix:            netip.PrefixFrom(netip.AddrFrom16(a), int(opt.Data[0])).Masked(),
				OnLink:            opt.Data[1]&0x80 != 0,
				Autonomous:        opt.Data[1]&0x40 != 0,
				ValidLifetime:     binary.BigEndian.Uint32(opt.Data[2:6]),
				PreferredLifetime: binary.BigEndian.Uint32(opt.Data[6:10]),
			})
		case layers.ICMPv6OptRedirectedHeader:
			if rd == nil || len(opt.Data) < 6 {
				continue
			}
			rd.Redirected = append([]byte(nil), opt.Data[6:]...)
		}
		/* unknown options are ignored */
	}
	return nil
}

func addrFrom(ip net.IP) (netip.Addr, error) {
	a, ok := netip.AddrFromSlice(ip)
	if !ok || !a.Is6() {
		return a, fmt.Errorf("%w: bad address", ErrMalformed)
	}
	return a, nil
}

func decodeNdBody(t uint8, data []byte) (NdBody, error) {
	df := gopacket.NilDecodeFeedback
	switch t {
	case layers.ICMPv6TypeRouterSolicitation:
		var rs layers.ICMPv6RouterSolicitation
		if err := rs.DecodeFromBytes(data, df); err != nil {
			return nil, err
		}
		body := &RouterSolicitation{}
		return body, decodeOptions(rs.Options, &body.SrcMac, nil, nil, nil)
	case layers.ICMPv6TypeRouterAdvertisement:
		var ra layers.ICMPv6RouterAdvertisement
		if err := ra.DecodeFromBytes(data, df); err != nil {
			return nil, err
		}
		body := &RouterAdvertisement{
			CurHopLimit:    ra.HopLimit,
			Managed:        ra.Flags&0x80 != 0,
			Other:          ra.Flags&0x40 != 0,
			RouterLifetime: ra.RouterLifetime,
			ReachableTime:  ra.ReachableTime,
			RetransTimer:   ra.RetransTimer,
		}
		return body, decodeOptions(ra.Options, &body.SrcMac, nil, body, nil)
	case layers.ICMPv6TypeNeighborSolicitation:
		var ns layers.ICMPv6NeighborSolicitation
		if err := ns.DecodeFromBytes(data, df); err != nil {
			return nil, err
		}
		target, err := addrFrom(ns.TargetAddress)
		if err != nil {
			return nil, err
		}
		body := &NeighbourSolicitation{Target: target}
		return body, decodeOptions(ns.Options, &body.SrcMac, nil, nil, nil)
	case layers.ICMPv6TypeNeighborAdvertisement:
		var na layers.ICMPv6NeighborAdvertisement
		if err := na.DecodeFromBytes(data, df); err != nil {
			return nil, err
		}
		target, err := addrFrom(na.TargetAddress)
		if err != nil {
			return nil, err
		}
		body := &NeighbourAdvertisement{
			Target:    target,
			Router:    na.Flags&0x80 != 0,
			Solicited: na.Flags&0x40 != 0,
			Override:  na.Flags&0x20 != 0,
		}
		return body, decodeOptions(na.Options, nil, &body.TargetMac, nil, nil)
	case layers.ICMPv6TypeRedirect:
		var rd layers.ICMPv6Redirect
		if err := rd.DecodeFromBytes(data, df); err != nil {
			return nil, err
		}
		target, err := addrFrom(rd.TargetAddress)
		if err != nil {
			return nil, err
		}
		dst, err := addrFrom(rd.DestinationAddress)
		if err != nil {
			return nil, err
		}
		body := &Redirect{Target: target, Destination: dst}
		return body, decodeOptions(rd.Options, nil, &body.TargetMac, nil, body)
	}
	return nil, fmt.Errorf("%w: icmpv6 type %d is not nd", ErrMalformed, t)
}

// DecodeFrame decode an Ethernet frame, the result is either a nd message or a datagram
func DecodeFrame(frame []byte) (*NdMessage, *Datagram, error) {
	df := gopacket.NilDecodeFeedback
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(frame, df); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if eth.EthernetType != layers.EthernetTypeIPv6 {
		return nil, nil, ErrNotIpv6
	}
	var ip6 layers.IPv6
	if err := ip6.DecodeFromBytes(eth.Payload, df); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	src, err := addrFrom(ip6.SrcIP)
	if err != nil {
		return nil, nil, err
	}
	dst, err := addrFrom(ip6.DstIP)
	if err != nil {
		return nil, nil, err
	}

	if ip6.NextHeader == layers.IPProtocolICMPv6 && len(ip6.Payload) >= 4 && isNdType(ip6.Payload[0]) {
		var icmp layers.ICMPv6
		if err := icmp.DecodeFromBytes(ip6.Payload, df); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		body, err := decodeNdBody(icmp.TypeCode.Type(), icmp.Payload)
		if err != nil {
			if !errors.Is(err, ErrMalformed) {
				err = fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			return nil, nil, err
		}
		m := &NdMessage{
			Src:      src,
			Dst:      dst,
			HopLimit: ip6.HopLimit,
			Code:     icmp.TypeCode.Code(),
			Body:     body,
		}
		copy(m.SrcMac[:], eth.SrcMAC)
		copy(m.DstMac[:], eth.DstMAC)
		return m, nil, nil
	}

	d := &Datagram{
		Src:        src,
		Dst:        dst,
		HopLimit:   ip6.HopLimit,
		NextHeader: ip6.NextHeader,
		Payload:    append([]byte(nil), ip6.Payload...),
	}
	if ip6.HopByHop != nil {
		d.NextHeader = ip6.HopByHop.NextHeader
		d.RouterAlert = hasRouterAlert(ip6.HopByHop)
	}
	return nil, d, nil
}
