// Copyright (c) 2020 Cisco Systems and/or its affiliates.
// Licensed under the Apache License, Version 2.0 (the "License");
// that can be found in the LICENSE file in the root of the source
// tree.

package core

import (
	"fmt"
	"net"
	"net/netip"
)

type MACKey [6]byte // mac key

var (
	BroadcastMAC = MACKey{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

	Ipv6AllNodes   = netip.MustParseAddr("ff02::1")
	Ipv6AllRouters = netip.MustParseAddr("ff02::2")

	// Ipv6AllMldRouters destination of MLDv2 reports (RFC 3810)
	Ipv6AllMldRouters = netip.MustParseAddr("ff02::16")
)

func (key *MACKey) Clear() {
	*key = MACKey{}
}

func (key MACKey) IsZero() bool {
	return key == MACKey{}
}

func (key MACKey) IsBroadcast() bool {
	return key == BroadcastMAC
}

func (key MACKey) IsMulticast() bool {
	return key[0]&0x01 != 0
}

func (key MACKey) Uint64() uint64 {
	return uint64(key[0])<<40 | uint64(key[1])<<32 | uint64(key[2])<<24 |
		uint64(key[3])<<16 | uint64(key[4])<<8 | uint64(key[5])
}

func (key *MACKey) SetUint64(v uint64) {
	for i := 0; i < 6; i++ {
		key[5-i] = byte(v & 0xFF)
		v >>= 8
	}
}

func (key MACKey) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(key[:])
}

func (key MACKey) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		key[0], key[1], key[2], key[3], key[4], key[5])
}

// MACKeyFromBytes return false in case the slice is not a mac
func MACKeyFromBytes(b []byte) (MACKey, bool) {
	var key MACKey
	if len(b) != 6 {
		return key, false
	}
	copy(key[:], b)
	return key, true
}

// ParseMACKey parse "00:00:01:00:00:01" style mac
func ParseMACKey(s string) (MACKey, error) {
	var key MACKey
	hw, err := net.ParseMAC(s)
	if err != nil {
		return key, err
	}
	if len(hw) != 6 {
		return key, fmt.Errorf("mac %q is not an ethernet address", s)
	}
	copy(key[:], hw)
	return key, nil
}

// Ipv6MulticastMAC map ipv6 multicast group to mac 33:33:xx:xx:xx:xx (RFC 2464)
func Ipv6MulticastMAC(group netip.Addr) MACKey {
	a := group.As16()
	return MACKey{0x33, 0x33, a[12], a[13], a[14], a[15]}
}

// IsIpv6MulticastMAC the mac is in the 33:33 range
func IsIpv6MulticastMAC(key MACKey) bool {
	return key[0] == 0x33 && key[1] == 0x33
}

// Ipv6SolicitedNode return ff02::1:ffXX:XXXX of the address
func Ipv6SolicitedNode(addr netip.Addr) netip.Addr {
	a := addr.As16()
	return netip.AddrFrom16([16]byte{0xff, 0x02, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 1, 0xff, a[13], a[14], a[15]})
}

// IsIpv6SolicitedNode return true for ff02::1:ff00:0/104
func IsIpv6SolicitedNode(addr netip.Addr) bool {
	a := addr.As16()
	return a[0] == 0xff && a[1] == 0x02 && a[11] == 1 && a[12] == 0xff &&
		a[2]|a[3]|a[4]|a[5]|a[6]|a[7]|a[8]|a[9]|a[10] == 0
}

// Ipv6InterfaceID EUI-64 interface identifier built from the mac (RFC 4291 appendix A)
func Ipv6InterfaceID(mac MACKey) [8]byte {
	return [8]byte{mac[0] ^ 0x02, mac[1], mac[2], 0xff, 0xfe, mac[3], mac[4], mac[5]}
}

// Ipv6FromPrefix build an address from a /64 prefix and an interface identifier
func Ipv6FromPrefix(prefix netip.Prefix, iid [8]byte) netip.Addr {
	a := prefix.Masked().Addr().As16()
	copy(a[8:], iid[:])
	return netip.AddrFrom16(a)
}

// Ipv6LinkLocal return fe80::/64 + EUI-64 of the mac
func Ipv6LinkLocal(mac MACKey) netip.Addr {
	return Ipv6FromPrefix(netip.MustParsePrefix("fe80::/64"), Ipv6InterfaceID(mac))
}
