package ipv6

import (
	"encoding/binary"
	"net/netip"
	"testing"
	"time"

	"ndsim/emu/core"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

type mldFrame struct {
	peerFrame
	records []layers.MLDv2MulticastAddressRecord
}

func mldReports(t *testing.T, peer *ndTestPeer) []mldFrame {
	t.Helper()
	var r []mldFrame
	for _, f := range peer.frames {
		if f.d == nil || !f.d.RouterAlert {
			continue
		}
		var icmp layers.ICMPv6
		var report layers.MLDv2MulticastListenerReportMessage
		if err := icmp.DecodeFromBytes(f.d.Payload, gopacket.NilDecodeFeedback); err != nil {
			t.Fatalf("icmp %v", err)
		}
		if icmp.TypeCode.Type() != layers.ICMPv6TypeMLDv2MulticastListenerReportMessageV2 {
			t.Fatalf("icmp type %v", icmp.TypeCode)
		}
		if err := report.DecodeFromBytes(icmp.Payload, gopacket.NilDecodeFeedback); err != nil {
			t.Fatalf("report %v", err)
		}
		r = append(r, mldFrame{peerFrame: f, records: report.MulticastAddressRecords})
	}
	return r
}

func recordGroup(t *testing.T, r layers.MLDv2MulticastAddressRecord) netip.Addr {
	t.Helper()
	group, ok := netip.AddrFromSlice(r.MulticastAddress)
	if !ok {
		t.Fatalf("record %s", spew.Sdump(r))
	}
	return group
}

func icmpv6ChecksumOk(d *Datagram) bool {
	var sum uint32
	add := func(b []byte) {
		for i := 0; i+1 < len(b); i += 2 {
			sum += uint32(binary.BigEndian.Uint16(b[i:]))
		}
		if len(b)%2 == 1 {
			sum += uint32(b[len(b)-1]) << 8
		}
	}
	var pseudo [8]byte
	binary.BigEndian.PutUint32(pseudo[0:4], uint32(len(d.Payload)))
	pseudo[7] = uint8(layers.IPProtocolICMPv6)
	add(d.Src.AsSlice())
	add(d.Dst.AsSlice())
	add(pseudo[:])
	add(d.Payload)
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return sum == 0xffff
}

func TestMldReportCodec(t *testing.T) {
	group := core.Ipv6SolicitedNode(llHost)
	d, err := newMldReport(netip.IPv6Unspecified(), []layers.MLDv2MulticastAddressRecord{{
		RecordType:       layers.MLDv2MulticastAddressRecordTypeChangeToExcludeMode,
		MulticastAddress: group.AsSlice(),
	}})
	if err != nil {
		t.Fatalf("report %v", err)
	}
	if !icmpv6ChecksumOk(d) {
		t.Fatalf("bad checksum % x", d.Payload)
	}
	frame, err := EncodeDatagram(d, macHost, core.Ipv6MulticastMAC(core.Ipv6AllMldRouters))
	if err != nil {
		t.Fatalf("encode %v", err)
	}
	// ipv6 next header is hop-by-hop, the option is the router alert padded to 8 bytes
	if frame[14+6] != uint8(layers.IPProtocolIPv6HopByHop) {
		t.Fatalf("next header %d", frame[14+6])
	}
	hbh := []byte{uint8(layers.IPProtocolICMPv6), 0, ipv6OptionRouterAlert, 2, 0, 0, ipv6OptionPadN, 0}
	if diff := cmp.Diff(hbh, frame[54:62]); diff != "" {
		t.Fatalf("hop-by-hop (-want +got):\n%s", diff)
	}

	m, got, err := DecodeFrame(frame)
	if err != nil || m != nil {
		t.Fatalf("decode %v %v", m, err)
	}
	if diff := cmp.Diff(d, got, addrCmp); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestMldReportBeforeDad(t *testing.T) {
	env := newNdTestEnv(t)
	h := env.addNode("h1", false, macHost, `{"max_rtr_solicitations": 0}`)
	env.sim.Start()
	group := core.Ipv6SolicitedNode(llHost)

	env.run(2 * testTick)
	reportAt, nsAt := -1, -1
	for i, f := range env.peer.frames {
		if f.d != nil && f.d.RouterAlert && reportAt < 0 {
			reportAt = i
		}
		if f.m != nil && nsAt < 0 {
			nsAt = i
		}
	}
	if reportAt < 0 || nsAt < 0 || reportAt > nsAt {
		t.Fatalf("report %d solicitation %d", reportAt, nsAt)
	}
	reports := mldReports(t, env.peer)
	if len(reports) != 1 {
		t.Fatalf("reports %s", spew.Sdump(reports))
	}
	r := reports[0]
	if !r.d.Src.IsUnspecified() || r.d.Dst != core.Ipv6AllMldRouters || r.d.HopLimit != MLD_HOP_LIMIT ||
		r.dstMac != core.Ipv6MulticastMAC(core.Ipv6AllMldRouters) {
		t.Fatalf("report %s", spew.Sdump(r.peerFrame))
	}
	if len(r.records) != 1 || recordGroup(t, r.records[0]) != group ||
		r.records[0].RecordType != layers.MLDv2MulticastAddressRecordTypeChangeToExcludeMode {
		t.Fatalf("records %s", spew.Sdump(r.records))
	}

	// the state change is sent again, and once more from the valid link-local address
	env.run(1500 * time.Millisecond)
	reports = mldReports(t, env.peer)
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports got %s", spew.Sdump(reports))
	}
	fromLocal := 0
	for _, r := range reports {
		if r.d.Src == llHost {
			fromLocal++
		}
	}
	if fromLocal == 0 {
		t.Fatalf("no report from %s", llHost)
	}
	if diff := cmp.Diff([]netip.Addr{group}, h.Mld().Joined(0), addrCmp); diff != "" {
		t.Fatalf("joined (-want +got):\n%s", diff)
	}
	db := h.Mld().Cdb
	expectCounter(t, db, "opsJoin", 1)
	expectCounter(t, db, "pktTxReports", 2)
	expectCounter(t, db, "pktTxReLocal", 1)
}

func TestMldSharedGroup(t *testing.T) {
	env := newNdTestEnv(t)
	h := env.addNode("h1", false, macHost, `{"max_rtr_solicitations": 0}`)
	ie := h.Node.Ift.Get(0)
	// the eui-64 address has the low 24 bits of the link-local one
	global := core.Ipv6FromPrefix(netip.MustParsePrefix("2001:db8:1::/64"), core.Ipv6InterfaceID(macHost))
	ie.AssignTentative(global, 64, false)
	env.sim.Start()
	env.run(3 * time.Second)

	if diff := cmp.Diff([]netip.Addr{core.Ipv6SolicitedNode(llHost)}, h.Mld().Joined(0), addrCmp); diff != "" {
		t.Fatalf("joined (-want +got):\n%s", diff)
	}
	expectCounter(t, h.Mld().Cdb, "opsJoin", 1)

	h.LeaveSolicitedNode(0, global)
	if len(h.Mld().Joined(0)) != 1 {
		t.Fatalf("group left while the link-local address uses it")
	}
	expectCounter(t, h.Mld().Cdb, "opsLeave", 0)
}

func TestMldLeaveOnDuplicate(t *testing.T) {
	env := newNdTestEnv(t)
	h := env.addNode("h1", false, macHost, `{"dup_addr_detect_transmits": 3, "max_rtr_solicitations": 0}`)
	a1 := netip.MustParseAddr("2001:db8::1")
	h.Node.Ift.Get(0).AssignTentative(a1, 64, false)
	env.sim.Start()
	env.run(500 * time.Millisecond)

	env.peer.send(a1, core.Ipv6AllNodes, core.MACKey{}, &NeighbourAdvertisement{Target: a1, Override: true, TargetMac: macPeer})
	env.run(100 * time.Millisecond)
	expectCounter(t, h.Nd().Cdb, "dadDuplicate", 1)
	if diff := cmp.Diff([]netip.Addr{core.Ipv6SolicitedNode(llHost)}, h.Mld().Joined(0), addrCmp); diff != "" {
		t.Fatalf("joined (-want +got):\n%s", diff)
	}

	env.run(2 * time.Second)
	var leave []mldFrame
	for _, r := range mldReports(t, env.peer) {
		for _, rec := range r.records {
			if recordGroup(t, rec) == core.Ipv6SolicitedNode(a1) &&
				rec.RecordType == layers.MLDv2MulticastAddressRecordTypeChangeToIncludeMode {
				leave = append(leave, r)
			}
		}
	}
	if len(leave) != MLD_ROBUSTNESS {
		t.Fatalf("leave reports %s", spew.Sdump(leave))
	}
	if leave[1].at-leave[0].at != MLD_UNSOLICITED_REPORT_INTERVAL {
		t.Fatalf("retransmission after %v", leave[1].at-leave[0].at)
	}
	expectCounter(t, h.Mld().Cdb, "opsLeave", 1)
}

func TestMldRouterListeners(t *testing.T) {
	env := newNdTestEnv(t)
	r := env.addNode("r1", true, macRouter, `{"adv_send_advertisements": false}`)
	h := env.addNode("h1", false, macHost, `{"max_rtr_solicitations": 0}`)
	env.sim.Start()
	env.run(2 * time.Second)

	// the first reports come from :: and are not recorded
	want := []netip.Addr{core.Ipv6SolicitedNode(llHost)}
	if diff := cmp.Diff(want, r.Mld().Listeners(0), addrCmp); diff != "" {
		t.Fatalf("listeners (-want +got):\n%s", diff)
	}
	db := r.Mld().Cdb
	if db.Val("pktRxNoSrc") == 0 || db.Val("pktRxReports") < 3 {
		t.Fatalf("router counters %s", spew.Sdump(r.Mld().stats))
	}
	if len(h.Mld().Listeners(0)) != 0 {
		t.Fatalf("host recorded listeners")
	}

	extra := netip.MustParseAddr("2001:db8::5")
	h.JoinSolicitedNode(0, extra)
	env.run(testTick * 2)
	want = []netip.Addr{core.Ipv6SolicitedNode(llHost), core.Ipv6SolicitedNode(extra)}
	if diff := cmp.Diff(want, r.Mld().Listeners(0), addrCmp); diff != "" {
		t.Fatalf("listeners (-want +got):\n%s", diff)
	}

	h.LeaveSolicitedNode(0, extra)
	env.run(testTick * 2)
	want = []netip.Addr{core.Ipv6SolicitedNode(llHost)}
	if diff := cmp.Diff(want, r.Mld().Listeners(0), addrCmp); diff != "" {
		t.Fatalf("listeners (-want +got):\n%s", diff)
	}

	// a report without the router alert is dropped
	d, err := newMldReport(llPeer, []layers.MLDv2MulticastAddressRecord{{
		RecordType:       layers.MLDv2MulticastAddressRecordTypeChangeToExcludeMode,
		MulticastAddress: core.Ipv6SolicitedNode(llPeer).AsSlice(),
	}})
	if err != nil {
		t.Fatalf("report %v", err)
	}
	d.RouterAlert = false
	frame, err := EncodeDatagram(d, macPeer, core.Ipv6MulticastMAC(core.Ipv6AllMldRouters))
	if err != nil {
		t.Fatalf("encode %v", err)
	}
	if err := env.peer.port.Send(frame); err != nil {
		t.Fatalf("send %v", err)
	}
	env.run(testTick * 2)
	expectCounter(t, db, "pktRxNora", 1)
	if len(r.Mld().Listeners(0)) != 1 {
		t.Fatalf("listeners %s", spew.Sdump(r.Mld().Listeners(0)))
	}

	if err := r.Node.SetInterfaceUp(0, false); err != nil {
		t.Fatalf("down %v", err)
	}
	if len(r.Mld().Listeners(0)) != 0 || len(r.Mld().Joined(0)) != 0 {
		t.Fatalf("interface state survived")
	}
}
