package ipv6

/*
  MLDv2 listener reports for the solicited-node groups of the node addresses (RFC 3810).
  A group is joined before DAD sends its first solicitation (RFC 4862 5.4.2), routers
  keep the groups reported on each interface. There is no querier.
*/

import (
	"net"
	"net/netip"
	"sort"
	"time"

	"ndsim/emu/core"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	MLD_ROBUSTNESS                  = 2
	MLD_UNSOLICITED_REPORT_INTERVAL = time.Second
	MLD_HOP_LIMIT                   = 1
)

type mldStats struct {
	opsJoin       uint64
	opsLeave      uint64
	pktTxReports  uint64
	pktTxReLocal  uint64 // reports sent again once the link-local address is valid
	pktTxErr      uint64
	pktRxTotal    uint64
	pktRxReports  uint64
	pktRxBadttl   uint64
	pktRxNora     uint64
	pktRxNoSrc    uint64
	pktRxTooshort uint64
}

func newMldStatsDb(o *mldStats) *core.CCounterDb {
	db := core.NewCCounterDb("mld")

	db.Add(&core.CCounterRec{
		Counter:  &o.opsJoin,
		Name:     "opsJoin",
		Help:     "groups joined",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})

	db.Add(&core.CCounterRec{
		Counter:  &o.opsLeave,
		Name:     "opsLeave",
		Help:     "groups left",
		Unit:     "ops",
		DumpZero: false,
		Info:     core.ScINFO})

	db.Add(&core.CCounterRec{
		Counter:  &o.pktTxReports,
		Name:     "pktTxReports",
		Help:     "state change reports sent",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})

	db.Add(&core.CCounterRec{
		Counter:  &o.pktTxReLocal,
		Name:     "pktTxReLocal",
		Help:     "reports sent again from the link-local address",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})

	db.Add(&core.CCounterRec{
		Counter:  &o.pktTxErr,
		Name:     "pktTxErr",
		Help:     "reports that could not be sent",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})

	db.Add(&core.CCounterRec{
		Counter:  &o.pktRxTotal,
		Name:     "pktRxTotal",
		Help:     "total messages received",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})

	db.Add(&core.CCounterRec{
		Counter:  &o.pktRxReports,
		Name:     "pktRxReports",
		Help:     "received membership reports",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})

	db.Add(&core.CCounterRec{
		Counter:  &o.pktRxBadttl,
		Name:     "pktRxBadttl",
		Help:     "received with hop limit other than 1",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})

	db.Add(&core.CCounterRec{
		Counter:  &o.pktRxNora,
		Name:     "pktRxNora",
		Help:     "received without router alert option",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})

	db.Add(&core.CCounterRec{
		Counter:  &o.pktRxNoSrc,
		Name:     "pktRxNoSrc",
		Help:     "received from the unspecified address, not recorded",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})

	db.Add(&core.CCounterRec{
		Counter:  &o.pktRxTooshort,
		Name:     "pktRxTooshort",
		Help:     "received with too few bytes",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})

	return db
}

type mldKey struct {
	group netip.Addr
	ifId  int
}

// mldGroup a joined group, the solicited-node group is shared by addresses with the
// same low 24 bits
type mldGroup struct {
	key   mldKey
	addrs map[netip.Addr]bool
	left  int // retransmissions of the last state change
	timer core.CHTimerObj
}

// MldCtx MLDv2 state of a node
type MldCtx struct {
	node      *core.CNodeCtx
	tctx      *core.TimerCtx
	sender    NdSender
	groups    map[mldKey]*mldGroup
	listeners map[mldKey]time.Duration // router side, time of the last report
	stats     mldStats
	Cdb       *core.CCounterDb
}

func NewMldCtx(node *core.CNodeCtx, sender NdSender) *MldCtx {
	o := new(MldCtx)
	o.node = node
	o.tctx = node.Sim.GetTimerCtx()
	o.sender = sender
	o.groups = make(map[mldKey]*mldGroup)
	o.listeners = make(map[mldKey]time.Duration)
	o.Cdb = newMldStatsDb(&o.stats)
	return o
}

// Join the solicited-node group of addr, a report is sent when the group is new
func (o *MldCtx) Join(ifId int, addr netip.Addr) {
	key := mldKey{group: core.Ipv6SolicitedNode(addr), ifId: ifId}
	g, ok := o.groups[key]
	if !ok {
		g = &mldGroup{key: key, addrs: make(map[netip.Addr]bool)}
		g.timer.SetCB(o, g, nil)
		o.groups[key] = g
	}
	if g.addrs[addr] {
		return
	}
	g.addrs[addr] = true
	if len(g.addrs) > 1 {
		return
	}
	o.stats.opsJoin++
	log.Debugf("%s: mld join %s if %d", o.node.Name, key.group, ifId)
	o.stateChange(g)
}

// Leave the solicited-node group of addr once no address maps to it
func (o *MldCtx) Leave(ifId int, addr netip.Addr) {
	g, ok := o.groups[mldKey{group: core.Ipv6SolicitedNode(addr), ifId: ifId}]
	if !ok || !g.addrs[addr] {
		return
	}
	delete(g.addrs, addr)
	if len(g.addrs) > 0 {
		return
	}
	o.stats.opsLeave++
	log.Debugf("%s: mld leave %s if %d", o.node.Name, g.key.group, ifId)
	o.stateChange(g)
}

// stateChange report the group now and MLD_ROBUSTNESS-1 more times
func (o *MldCtx) stateChange(g *mldGroup) {
	o.tctx.Stop(&g.timer)
	o.sendReport(g.key.ifId, []*mldGroup{g}, &o.stats.pktTxReports)
	g.left = MLD_ROBUSTNESS - 1
	if g.left > 0 {
		o.tctx.Start(&g.timer, MLD_UNSOLICITED_REPORT_INTERVAL)
	} else if len(g.addrs) == 0 {
		delete(o.groups, g.key)
	}
}

func (o *MldCtx) OnEvent(a, b interface{}) {
	g := a.(*mldGroup)
	o.sendReport(g.key.ifId, []*mldGroup{g}, &o.stats.pktTxReports)
	g.left--
	if g.left > 0 {
		o.tctx.Start(&g.timer, MLD_UNSOLICITED_REPORT_INTERVAL)
		return
	}
	if len(g.addrs) == 0 {
		delete(o.groups, g.key)
	}
}

// LinkLocalReady the reports sent from :: are not recorded by routers, report the
// joined groups again from the new link-local address (RFC 3590)
func (o *MldCtx) LinkLocalReady(ifId int) {
	var joined []*mldGroup
	for _, g := range o.groups {
		if g.key.ifId == ifId && len(g.addrs) > 0 {
			joined = append(joined, g)
		}
	}
	if len(joined) == 0 {
		return
	}
	sort.Slice(joined, func(i, j int) bool { return joined[i].key.group.Less(joined[j].key.group) })
	o.sendReport(ifId, joined, &o.stats.pktTxReLocal)
}

func (o *MldCtx) sendReport(ifId int, groups []*mldGroup, cnt *uint64) {
	ie := o.node.Ift.Get(ifId)
	if ie == nil {
		return
	}
	src, ok := ie.LinkLocal()
	if !ok {
		src = netip.IPv6Unspecified()
	}
	records := make([]layers.MLDv2MulticastAddressRecord, 0, len(groups))
	for _, g := range groups {
		rt := layers.MLDv2MulticastAddressRecordTypeChangeToIncludeMode
		if len(g.addrs) > 0 {
			rt = layers.MLDv2MulticastAddressRecordTypeChangeToExcludeMode
		}
		records = append(records, layers.MLDv2MulticastAddressRecord{
			RecordType:       rt,
			MulticastAddress: net.IP(g.key.group.AsSlice()),
		})
	}
	d, err := newMldReport(src, records)
	if err != nil {
		o.stats.pktTxErr++
		return
	}
	if err := o.sender.SendDatagram(ifId, core.Ipv6MulticastMAC(core.Ipv6AllMldRouters), d); err != nil {
		o.stats.pktTxErr++
		return
	}
	*cnt++
}

func newMldReport(src netip.Addr, records []layers.MLDv2MulticastAddressRecord) (*Datagram, error) {
	ip6 := &layers.IPv6{Version: 6, NextHeader: layers.IPProtocolICMPv6, SrcIP: src.AsSlice(), DstIP: core.Ipv6AllMldRouters.AsSlice()}
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeMLDv2MulticastListenerReportMessageV2, 0)}
	if err := icmp.SetNetworkLayerForChecksum(ip6); err != nil {
		return nil, err
	}
	b, err := core.PacketUtlBuild(icmp, &layers.MLDv2MulticastListenerReportMessage{MulticastAddressRecords: records})
	if err != nil {
		return nil, err
	}
	return &Datagram{
		Src:         src,
		Dst:         core.Ipv6AllMldRouters,
		HopLimit:    MLD_HOP_LIMIT,
		NextHeader:  layers.IPProtocolICMPv6,
		RouterAlert: true,
		Payload:     b,
	}, nil
}

// HandleRx record the groups of a report, true if the datagram was a report
func (o *MldCtx) HandleRx(ifId int, d *Datagram) bool {
	if d.NextHeader != layers.IPProtocolICMPv6 || len(d.Payload) < 4 ||
		d.Payload[0] != layers.ICMPv6TypeMLDv2MulticastListenerReportMessageV2 {
		return false
	}
	o.stats.pktRxTotal++
	if d.HopLimit != MLD_HOP_LIMIT {
		o.stats.pktRxBadttl++
		return true
	}
	if !d.RouterAlert {
		o.stats.pktRxNora++
		return true
	}
	df := gopacket.NilDecodeFeedback
	var icmp layers.ICMPv6
	var report layers.MLDv2MulticastListenerReportMessage
	if err := icmp.DecodeFromBytes(d.Payload, df); err != nil {
		o.stats.pktRxTooshort++
		return true
	}
	if err := report.DecodeFromBytes(icmp.Payload, df); err != nil {
		o.stats.pktRxTooshort++
		return true
	}
	o.stats.pktRxReports++
	if !d.Src.IsLinkLocalUnicast() {
		o.stats.pktRxNoSrc++
		return true
	}
	for _, r := range report.MulticastAddressRecords {
		group, ok := netip.AddrFromSlice(r.MulticastAddress)
		if !ok || !group.IsMulticast() {
			continue
		}
		key := mldKey{group: group, ifId: ifId}
		switch r.RecordType {
		case layers.MLDv2MulticastAddressRecordTypeModeIsExcluded,
			layers.MLDv2MulticastAddressRecordTypeChangeToExcludeMode:
			o.listeners[key] = o.tctx.Now()
		case layers.MLDv2MulticastAddressRecordTypeModeIsIncluded,
			layers.MLDv2MulticastAddressRecordTypeChangeToIncludeMode:
			if len(r.SourceAddresses) == 0 {
				delete(o.listeners, key)
			}
		}
	}
	return true
}

// Joined the groups the node listens to on the interface
func (o *MldCtx) Joined(ifId int) []netip.Addr {
	var r []netip.Addr
	for key, g := range o.groups {
		if key.ifId == ifId && len(g.addrs) > 0 {
			r = append(r, key.group)
		}
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Less(r[j]) })
	return r
}

// Listeners the groups reported on the interface
func (o *MldCtx) Listeners(ifId int) []netip.Addr {
	var r []netip.Addr
	for key := range o.listeners {
		if key.ifId == ifId {
			r = append(r, key.group)
		}
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Less(r[j]) })
	return r
}

// StopInterface drop the state of the interface without reporting
func (o *MldCtx) StopInterface(ifId int) {
	for key, g := range o.groups {
		if key.ifId == ifId {
			o.tctx.Stop(&g.timer)
			delete(o.groups, key)
		}
	}
	for key := range o.listeners {
		if key.ifId == ifId {
			delete(o.listeners, key)
		}
	}
}

func (o *MldCtx) Stop() {
	for _, g := range o.groups {
		o.tctx.Stop(&g.timer)
	}
	o.groups = make(map[mldKey]*mldGroup)
	o.listeners = make(map[mldKey]time.Duration)
}
