package ipv6

/* ipv6 network layer of a node

RFC 4443: Internet Control Message Protocol (ICMPv6) for the Internet Protocol Version 6 (IPv6)
RFC 4861: Neighbor Discovery for IP Version 6 (IPv6)
RFC 4862: IPv6 Stateless Address Autoconfiguration.

The plugin receives the frames of all the interfaces of the node, hands the ND messages
to the engine and delivers or forwards the datagrams. It is the send path of the engine.
*/

import (
	"net/netip"

	"ndsim/emu/core"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	IPV6_PLUG = "ipv6"
	// max bytes of the original packet carried in a redirect
	redirectHeadLen = 512
)

type ipv6NodeStats struct {
	pktRx             uint64
	pktRxNotIpv6      uint64
	pktRxErrMalformed uint64
	pktRxNotForUs     uint64
	pktRxNd           uint64
	pktRxDeliver      uint64
	pktTx             uint64
	pktTxErrNoRoute   uint64
	pktTxErrNoSource  uint64
	pktTxErrLinkDown  uint64
	pktTxErrEncode    uint64
	pktFwd            uint64
	pktFwdErrHopLimit uint64
	pktFwdErrScope    uint64
	pktFwdErrNoRoute  uint64
	pktFwdRedirect    uint64
	icmpRxEchoRequest uint64
	icmpTxEchoReply   uint64
	icmpTxEchoRequest uint64
	icmpRxEchoReply   uint64
}

func newIpv6NodeStatsDb(o *ipv6NodeStats) *core.CCounterDb {
	db := core.NewCCounterDb("ipv6")
	db.Add(&core.CCounterRec{
		Counter:  &o.pktRx,
		Name:     "pktRx",
		Help:     "rx ipv6 frames",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.pktRxNotIpv6,
		Name:     "pktRxNotIpv6",
		Help:     "rx frames that are not ipv6",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.pktRxErrMalformed,
		Name:     "pktRxErrMalformed",
		Help:     "rx frames that could not be decoded",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.pktRxNotForUs,
		Name:     "pktRxNotForUs",
		Help:     "rx destination is not ours",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.pktRxNd,
		Name:     "pktRxNd",
		Help:     "rx nd messages",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.pktRxDeliver,
		Name:     "pktRxDeliver",
		Help:     "rx datagrams delivered to the upper layer",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.pktTx,
		Name:     "pktTx",
		Help:     "tx datagrams",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.pktTxErrNoRoute,
		Name:     "pktTxErrNoRoute",
		Help:     "tx no next hop",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.pktTxErrNoSource,
		Name:     "pktTxErrNoSource",
		Help:     "tx no source address",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.pktTxErrLinkDown,
		Name:     "pktTxErrLinkDown",
		Help:     "tx interface is down",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.pktTxErrEncode,
		Name:     "pktTxErrEncode",
		Help:     "tx frame build failed",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.pktFwd,
		Name:     "pktFwd",
		Help:     "forwarded datagrams",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.pktFwdErrHopLimit,
		Name:     "pktFwdErrHopLimit",
		Help:     "forward drop, hop limit exceeded",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.pktFwdErrScope,
		Name:     "pktFwdErrScope",
		Help:     "forward drop, link scope address",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.pktFwdErrNoRoute,
		Name:     "pktFwdErrNoRoute",
		Help:     "forward drop, no next hop",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.pktFwdRedirect,
		Name:     "pktFwdRedirect",
		Help:     "forwarded back on the arrival interface, redirect sent",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.icmpRxEchoRequest,
		Name:     "icmpRxEchoRequest",
		Help:     "rx echo request",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.icmpTxEchoReply,
		Name:     "icmpTxEchoReply",
		Help:     "tx echo reply",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.icmpTxEchoRequest,
		Name:     "icmpTxEchoRequest",
		Help:     "tx echo request",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.icmpRxEchoReply,
		Name:     "icmpRxEchoReply",
		Help:     "rx echo reply",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	return db
}

var ipv6Events = []string{core.MSG_IF_UP, core.MSG_IF_DOWN, core.MSG_ND_DAD_SUCCEEDED}

// DeliverFunc upper layer of the node
type DeliverFunc func(ifId int, d *Datagram)

// PluginIpv6Node ipv6 information per node
type PluginIpv6Node struct {
	core.PluginBase
	nd      *NdCtx
	mld     *MldCtx
	stats   ipv6NodeStats
	cdb     *core.CCounterDb
	Deliver DeliverFunc
}

func NewIpv6Node(ctx *core.PluginCtx, initJson []byte) (*core.PluginBase, error) {
	node := ctx.Node
	cfg, err := ParseNdConfig(node.Sim, initJson, node.IsRouter)
	if err != nil {
		return nil, err
	}
	o := new(PluginIpv6Node)
	o.InitPluginBase(ctx, o)
	o.RegisterEvents(ctx, ipv6Events, o)
	o.mld = NewMldCtx(node, o)
	o.nd = NewNdCtx(node, cfg, o)
	o.cdb = newIpv6NodeStatsDb(&o.stats)
	node.Cdbv.Add(o.cdb)
	node.Cdbv.Add(o.nd.Cdb)
	node.Cdbv.Add(o.mld.Cdb)
	node.SetRxHandler(o)
	return &o.PluginBase, nil
}

// Nd the neighbor discovery engine of the node
func (o *PluginIpv6Node) Nd() *NdCtx {
	return o.nd
}

// Mld the MLDv2 state of the node
func (o *PluginIpv6Node) Mld() *MldCtx {
	return o.mld
}

/*OnEvent start and stop ND with the interfaces */
func (o *PluginIpv6Node) OnEvent(msg string, a, b interface{}) {
	if msg == core.MSG_ND_DAD_SUCCEEDED {
		if addr, ok := b.(netip.Addr); ok && addr.IsLinkLocalUnicast() {
			o.mld.LinkLocalReady(a.(int))
		}
		return
	}
	ie, ok := a.(*core.InterfaceEntry)
	if !ok {
		return
	}
	switch msg {
	case core.MSG_IF_UP:
		if err := o.nd.StartInterface(ie.Id); err != nil {
			log.Errorf("%s: start %s: %v", o.Node.Name, ie, err)
		}
	case core.MSG_IF_DOWN:
		o.mld.StopInterface(ie.Id)
		o.nd.StopInterface(ie.Id)
	}
}

func (o *PluginIpv6Node) OnRemove(ctx *core.PluginCtx) {
	o.mld.Stop()
	o.nd.Stop()
	ctx.UnregisterEvents(&o.PluginBase, ipv6Events)
	o.Node.SetRxHandler(nil)
}

// acceptDst the multicast groups of the node, any unicast destination
func (o *PluginIpv6Node) acceptDst(ie *core.InterfaceEntry, dst netip.Addr) bool {
	if !dst.IsMulticast() {
		return true
	}
	switch {
	case dst == core.Ipv6AllNodes:
		return true
	case dst == core.Ipv6AllRouters, dst == core.Ipv6AllMldRouters:
		return o.Node.IsRouter
	}
	return ie.IsSolicitedNodeOf(dst)
}

// HandleRxFrame rx side of the node
func (o *PluginIpv6Node) HandleRxFrame(ie *core.InterfaceEntry, frame []byte) {
	m, d, err := DecodeFrame(frame)
	if err != nil {
		if err == ErrNotIpv6 {
			o.stats.pktRxNotIpv6++
			return
		}
		o.stats.pktRxErrMalformed++
		o.nd.HandleMalformed(ie.Id, err)
		return
	}
	o.stats.pktRx++

	if m != nil {
		if !o.acceptDst(ie, m.Dst) {
			o.stats.pktRxNotForUs++
			return
		}
		o.stats.pktRxNd++
		m.IfId = ie.Id
		o.nd.HandleNdMessage(m)
		return
	}

	if !o.acceptDst(ie, d.Dst) {
		o.stats.pktRxNotForUs++
		return
	}
	if d.Dst.IsMulticast() || o.Node.Ift.IsLocalAddress(d.Dst) {
		o.deliver(ie.Id, d)
		return
	}
	if o.Node.IsRouter {
		o.forward(ie.Id, d, frame)
		return
	}
	o.stats.pktRxNotForUs++
}

func (o *PluginIpv6Node) deliver(ifId int, d *Datagram) {
	o.stats.pktRxDeliver++
	if o.mld.HandleRx(ifId, d) {
		return
	}
	if d.NextHeader == layers.IPProtocolICMPv6 && o.handleIcmp(ifId, d) {
		return
	}
	o.Node.PluginCtx.BroadcastMsg(&o.PluginBase, core.MSG_IPV6_DATAGRAM_RECEIVED, ifId, d)
	if o.Deliver != nil {
		o.Deliver(ifId, d)
	}
}

// forward route a datagram of another node, a datagram that leaves on the interface it
// arrived on makes the router send a redirect to the source
func (o *PluginIpv6Node) forward(inIf int, d *Datagram, frame []byte) error {
	if d.Dst.IsLinkLocalUnicast() || d.Src.IsLinkLocalUnicast() || !d.Src.IsValid() || d.Src.IsUnspecified() {
		o.stats.pktFwdErrScope++
		return ErrNextHopIndeterminate
	}
	if d.HopLimit <= 1 {
		o.stats.pktFwdErrHopLimit++
		log.Debugf("%s: %s: %v", o.Node.Name, d, ErrHopLimitExceeded)
		return ErrHopLimitExceeded
	}
	nh, outIf, err := o.nd.DetermineNextHop(d.Dst, -1)
	if err != nil {
		o.stats.pktFwdErrNoRoute++
		return err
	}
	fd := *d
	fd.HopLimit--
	if outIf == inIf && o.nd.IsOnLinkNeighbour(d.Src, inIf) {
		head := frame[14:]
		if len(head) > redirectHeadLen {
			head = head[:redirectHeadLen]
		}
		var hostMac core.MACKey
		copy(hostMac[:], frame[6:12])
		if o.nd.SendRedirect(inIf, d.Src, hostMac, nh, d.Dst, head) {
			o.stats.pktFwdRedirect++
		}
	}
	o.stats.pktFwd++
	return o.nd.SendViaNeighbour(nh, outIf, &fd)
}

// Output send a datagram from the node. ifHint selects the interface of link-local and
// multicast destinations, -1 when there is none. An invalid source is selected from the
// outgoing interface and a zero hop limit takes the one of the interface.
func (o *PluginIpv6Node) Output(d *Datagram, ifHint int) error {
	nh, ifId, err := o.nd.DetermineNextHop(d.Dst, ifHint)
	if err != nil {
		o.stats.pktTxErrNoRoute++
		return err
	}
	ie := o.Node.Ift.Get(ifId)
	if !ie.IsUp() {
		o.stats.pktTxErrLinkDown++
		return core.ErrLinkDown
	}
	if !d.Src.IsValid() {
		src, ok := ie.SelectSource(d.Dst)
		if !ok {
			o.stats.pktTxErrNoSource++
			return ErrNoSourceAddress
		}
		d.Src = src
	}
	if d.HopLimit == 0 {
		d.HopLimit = ie.HopLimit
	}
	o.stats.pktTx++
	if d.Dst.IsMulticast() {
		return o.SendDatagram(ifId, core.Ipv6MulticastMAC(d.Dst), d)
	}
	return o.nd.SendViaNeighbour(nh, ifId, d)
}

// SourceFor the source address Output would use for dst
func (o *PluginIpv6Node) SourceFor(dst netip.Addr, ifHint int) (netip.Addr, error) {
	_, ifId, err := o.nd.DetermineNextHop(dst, ifHint)
	if err != nil {
		return netip.Addr{}, err
	}
	src, ok := o.Node.Ift.Get(ifId).SelectSource(dst)
	if !ok {
		return netip.Addr{}, ErrNoSourceAddress
	}
	return src, nil
}

// ConfirmReachability forward progress of an upper layer with the neighbour
func (o *PluginIpv6Node) ConfirmReachability(addr netip.Addr, ifId int) bool {
	return o.nd.ReachabilityConfirmed(addr, ifId)
}

// SendNdMessage NdSender
func (o *PluginIpv6Node) SendNdMessage(m *NdMessage) error {
	ie := o.Node.Ift.Get(m.IfId)
	if ie == nil {
		return core.ErrNoInterface
	}
	frame, err := EncodeNdMessage(m)
	if err != nil {
		o.stats.pktTxErrEncode++
		return err
	}
	return ie.Send(frame)
}

// JoinSolicitedNode NdSender
func (o *PluginIpv6Node) JoinSolicitedNode(ifId int, addr netip.Addr) {
	o.mld.Join(ifId, addr)
}

// LeaveSolicitedNode NdSender
func (o *PluginIpv6Node) LeaveSolicitedNode(ifId int, addr netip.Addr) {
	o.mld.Leave(ifId, addr)
}

// SendDatagram NdSender
func (o *PluginIpv6Node) SendDatagram(ifId int, dstMac core.MACKey, d *Datagram) error {
	ie := o.Node.Ift.Get(ifId)
	if ie == nil {
		return core.ErrNoInterface
	}
	frame, err := EncodeDatagram(d, ie.Mac, dstMac)
	if err != nil {
		o.stats.pktTxErrEncode++
		return err
	}
	if err := ie.Send(frame); err != nil {
		o.stats.pktTxErrLinkDown++
		return err
	}
	return nil
}

/* echo */

func newIcmpDatagram(src, dst netip.Addr, t uint8, id, seq uint16, data []byte) (*Datagram, error) {
	ip6 := &layers.IPv6{Version: 6, NextHeader: layers.IPProtocolICMPv6, SrcIP: src.AsSlice(), DstIP: dst.AsSlice()}
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(t, 0)}
	if err := icmp.SetNetworkLayerForChecksum(ip6); err != nil {
		return nil, err
	}
	echo := &layers.ICMPv6Echo{Identifier: id, SeqNumber: seq}
	b, err := core.PacketUtlBuild(icmp, echo, gopacket.Payload(data))
	if err != nil {
		return nil, err
	}
	return &Datagram{Src: src, Dst: dst, NextHeader: layers.IPProtocolICMPv6, Payload: b}, nil
}

// SendPing echo request to dst
func (o *PluginIpv6Node) SendPing(dst netip.Addr, ifHint int, id, seq uint16, data []byte) error {
	src, err := o.SourceFor(dst, ifHint)
	if err != nil {
		o.stats.pktTxErrNoRoute++
		return err
	}
	d, err := newIcmpDatagram(src, dst, layers.ICMPv6TypeEchoRequest, id, seq, data)
	if err != nil {
		o.stats.pktTxErrEncode++
		return err
	}
	o.stats.icmpTxEchoRequest++
	return o.Output(d, ifHint)
}

// handleIcmp answer echo requests, true if the datagram was consumed
func (o *PluginIpv6Node) handleIcmp(ifId int, d *Datagram) bool {
	var icmp layers.ICMPv6
	if err := icmp.DecodeFromBytes(d.Payload, gopacket.NilDecodeFeedback); err != nil {
		return false
	}
	switch icmp.TypeCode.Type() {
	case layers.ICMPv6TypeEchoRequest:
		var echo layers.ICMPv6Echo
		if err := echo.DecodeFromBytes(icmp.Payload, gopacket.NilDecodeFeedback); err != nil {
			return false
		}
		o.stats.icmpRxEchoRequest++
		if d.Dst.IsMulticast() {
			return true
		}
		r, err := newIcmpDatagram(d.Dst, d.Src, layers.ICMPv6TypeEchoReply, echo.Identifier, echo.SeqNumber, echo.Payload)
		if err != nil {
			o.stats.pktTxErrEncode++
			return true
		}
		if err := o.Output(r, ifId); err == nil {
			o.stats.icmpTxEchoReply++
		}
		return true
	case layers.ICMPv6TypeEchoReply:
		o.stats.icmpRxEchoReply++
	}
	return false
}

// GetIpv6Node return the ipv6 plugin of the node, nil if the node has none
func GetIpv6Node(node *core.CNodeCtx) *PluginIpv6Node {
	plug := node.PluginCtx.Get(IPV6_PLUG)
	if plug == nil {
		return nil
	}
	return plug.Ext.(*PluginIpv6Node)
}

type PluginIpv6Reg struct{}

func (o PluginIpv6Reg) NewPlugin(ctx *core.PluginCtx, initJson []byte) (*core.PluginBase, error) {
	return NewIpv6Node(ctx, initJson)
}

func init() {
	core.PluginRegister(IPV6_PLUG, PluginIpv6Reg{})
}
