package ipv6

/* Neighbor Discovery engine

RFC 4861: Neighbor Discovery for IP version 6 (IPv6)
RFC 4862: IPv6 Stateless Address Autoconfiguration

One NdCtx per node. All the records (neighbours, DAD, router discovery, advertising
interfaces, default routers, prefixes, autoconfigured addresses) live in arenas and are
referenced by a handle. Timers carry the handle of the record they guard, a timer that
fires after its record was released is counted and ignored.

The engine runs inside the simulation loop, each timer event or received message is
handled to completion before the next one.
*/

import (
	"net/netip"
	"sort"
	"time"

	"ndsim/emu/core"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("nd")

// NdSender the send path of the engine, implemented by the network layer
type NdSender interface {
	// SendNdMessage build and send the message, DstMac is set by the engine
	SendNdMessage(m *NdMessage) error
	// SendDatagram send a datagram to a resolved neighbour
	SendDatagram(ifId int, dstMac core.MACKey, d *Datagram) error
	// JoinSolicitedNode listen to the solicited-node group of addr, once per address
	JoinSolicitedNode(ifId int, addr netip.Addr)
	// LeaveSolicitedNode addr left the interface
	LeaveSolicitedNode(ifId int, addr netip.Addr)
}

type ndTimerKind uint8

const (
	tmrNeigh ndTimerKind = iota + 1
	tmrDad
	tmrRd
	tmrRaPeriodic
	tmrRaSolicited
	tmrRouter
	tmrPrefix
	tmrAutoValid
	tmrAutoPreferred
)

type ndTimerCb struct {
	nd *NdCtx
}

// OnEvent a is the timer kind, b the handle of the record
func (o *ndTimerCb) OnEvent(a, b interface{}) {
	o.nd.onTimer(a.(ndTimerKind), b.(handle))
}

// ndIfc per interface state of the engine, exists while the interface is started
type ndIfc struct {
	ifId          int
	ie            *core.InterfaceEntry
	baseReachable time.Duration
	reachable     time.Duration
	retrans       time.Duration
	rd            handle
	adv           handle
}

type NdCtx struct {
	node   *core.CNodeCtx
	sim    *core.CSimCtx
	tctx   *core.TimerCtx
	ift    *core.InterfaceTable
	rt     *core.RoutingTable6
	cfg    *NdConfig
	sender NdSender
	ifcs   map[int]*ndIfc

	neighs     arena[neighbour]
	neighIndex map[neighKey]handle

	dads     arena[dadRecord]
	dadIndex map[neighKey]handle

	rds  arena[rdRecord]
	advs arena[advIfRecord]

	routers     arena[defaultRouter]
	routerIndex map[neighKey]handle
	routerOrder []neighKey
	defRouter   neighKey
	hasDefault  bool

	prefixes      arena[onlinkPrefix]
	prefixIndex   map[prefixKey]handle
	autos         arena[autoconfAddr]
	autoIndex     map[neighKey]handle
	prefixHandler prefixHandler

	destCache map[netip.Addr]destEntry

	timerCb ndTimerCb
	stats   NdStats
	Cdb     *core.CCounterDb
}

// NewNdCtx create the engine of a node, interfaces are started with StartInterface
func NewNdCtx(node *core.CNodeCtx, cfg *NdConfig, sender NdSender) *NdCtx {
	o := new(NdCtx)
	o.node = node
	o.sim = node.Sim
	o.tctx = node.Sim.GetTimerCtx()
	o.ift = node.Ift
	o.rt = node.Rt6
	o.cfg = cfg
	o.sender = sender
	o.ifcs = make(map[int]*ndIfc)
	o.neighIndex = make(map[neighKey]handle)
	o.dadIndex = make(map[neighKey]handle)
	o.routerIndex = make(map[neighKey]handle)
	o.prefixIndex = make(map[prefixKey]handle)
	o.autoIndex = make(map[neighKey]handle)
	o.destCache = make(map[netip.Addr]destEntry)
	o.timerCb.nd = o
	o.Cdb = NewNdStatsDb(&o.stats)
	if cfg.PrefixPolicy == PREFIX_POLICY_CONSISTENCY {
		o.prefixHandler = &consistencyPrefixHandler{nd: o}
	} else {
		o.prefixHandler = &slaacPrefixHandler{nd: o}
	}
	return o
}

func (o *NdCtx) Config() *NdConfig {
	return o.cfg
}

func (o *NdCtx) onTimer(kind ndTimerKind, h handle) {
	switch kind {
	case tmrNeigh:
		if n := o.neighs.get(h); n != nil {
			o.onNeighTimer(n)
			return
		}
	case tmrDad:
		if r := o.dads.get(h); r != nil {
			o.onDadTimer(r)
			return
		}
	case tmrRd:
		if r := o.rds.get(h); r != nil {
			o.onRdTimer(r)
			return
		}
	case tmrRaPeriodic:
		if r := o.advs.get(h); r != nil {
			o.onRaPeriodic(r)
			return
		}
	case tmrRaSolicited:
		if r := o.advs.get(h); r != nil {
			o.onRaSolicited(r)
			return
		}
	case tmrRouter:
		if r := o.routers.get(h); r != nil {
			o.onRouterExpire(r)
			return
		}
	case tmrPrefix:
		if r := o.prefixes.get(h); r != nil {
			o.onPrefixExpire(r)
			return
		}
	case tmrAutoValid:
		if r := o.autos.get(h); r != nil {
			o.onAutoValidExpire(r)
			return
		}
	case tmrAutoPreferred:
		if r := o.autos.get(h); r != nil {
			o.onAutoPreferredExpire(r)
			return
		}
	}
	o.stats.timerStale++
}

// startTimer restart the timer of a record
func (o *NdCtx) startTimer(tmr *core.CHTimerObj, kind ndTimerKind, h handle, d time.Duration) {
	o.tctx.Stop(tmr)
	tmr.SetCB(&o.timerCb, kind, h)
	o.tctx.Start(tmr, d)
}

func (o *NdCtx) event(msg string, ifId int, b interface{}) {
	o.node.PluginCtx.BroadcastMsg(nil, msg, ifId, b)
}

func (o *NdCtx) getIfc(ifId int) *ndIfc {
	return o.ifcs[ifId]
}

// IsActive the interface was started
func (o *NdCtx) IsActive(ifId int) bool {
	_, ok := o.ifcs[ifId]
	return ok
}

func (o *NdCtx) retransTimer(ifId int) time.Duration {
	if ifc := o.ifcs[ifId]; ifc != nil {
		return ifc.retrans
	}
	return o.cfg.RetransTimer
}

func (o *NdCtx) reachableTime(ifId int) time.Duration {
	if ifc := o.ifcs[ifId]; ifc != nil {
		return ifc.reachable
	}
	return o.cfg.BaseReachableTime
}

// computeReachable uniform in [0.5,1.5] x base when randomized, base otherwise
func (o *NdCtx) computeReachable(base time.Duration) time.Duration {
	if !o.cfg.RandomizeReachable {
		return base
	}
	return o.sim.RandRange(base/2, base+base/2)
}

// sendNd send a message with hop limit 255, multicast destinations get their multicast mac
func (o *NdCtx) sendNd(ifId int, src, dst netip.Addr, dstMac core.MACKey, body NdBody) bool {
	ie := o.ift.Get(ifId)
	if ie == nil {
		return false
	}
	if dst.IsMulticast() {
		dstMac = core.Ipv6MulticastMAC(dst)
	}
	m := &NdMessage{
		IfId:     ifId,
		Src:      src,
		Dst:      dst,
		HopLimit: NdHopLimit,
		SrcMac:   ie.Mac,
		DstMac:   dstMac,
		Body:     body,
	}
	if err := o.sender.SendNdMessage(m); err != nil {
		o.stats.txErrLinkDown++
		log.Warningf("%s: send %s failed: %v", o.node.Name, m, err)
		return false
	}
	return true
}

// StartInterface enable ND on the interface: the link-local address is formed and every
// tentative address goes through DAD. Router discovery or advertising starts once the
// link-local address is permanent.
func (o *NdCtx) StartInterface(ifId int) error {
	ie := o.ift.Get(ifId)
	if ie == nil {
		return core.ErrNoInterface
	}
	if o.IsActive(ifId) {
		return nil
	}
	ifc := &ndIfc{
		ifId:          ifId,
		ie:            ie,
		baseReachable: o.cfg.BaseReachableTime,
		retrans:       o.cfg.RetransTimer,
	}
	ifc.reachable = o.computeReachable(ifc.baseReachable)
	o.ifcs[ifId] = ifc
	log.Debugf("%s: start interface %s", o.node.Name, ie)

	ll := core.Ipv6LinkLocal(ie.Mac)
	if ie.FindAddr(ll) == nil {
		ie.AssignTentative(ll, 64, false)
	}

	llReady := false
	for _, a := range ie.Addresses() {
		if a.State == core.ADDR_TENTATIVE {
			o.startDad(ifId, a.Addr)
		} else if a.Addr.IsLinkLocalUnicast() {
			llReady = true
		}
	}
	if llReady {
		o.onLinkLocalReady(ifId)
	}
	return nil
}

// StopInterface release every record of the interface, queued packets are dropped
func (o *NdCtx) StopInterface(ifId int) error {
	if o.ift.Get(ifId) == nil {
		return core.ErrNoInterface
	}
	if !o.IsActive(ifId) {
		return nil
	}
	log.Debugf("%s: stop interface %d", o.node.Name, ifId)

	o.stopAdvertising(ifId)
	o.cancelRouterDiscovery(ifId)

	for _, h := range o.dads.handles() {
		if r := o.dads.get(h); r != nil && r.key.ifId == ifId {
			o.releaseDad(r)
		}
	}
	for _, h := range o.autos.handles() {
		if r := o.autos.get(h); r != nil && r.key.ifId == ifId {
			o.removeAutoconf(r)
		}
	}
	for _, key := range append([]neighKey(nil), o.routerOrder...) {
		if key.ifId == ifId {
			o.removeRouter(key)
		}
	}
	for _, h := range o.prefixes.handles() {
		if r := o.prefixes.get(h); r != nil && r.key.ifId == ifId {
			o.removePrefix(r)
		}
	}
	for _, h := range o.neighs.handles() {
		if n := o.neighs.get(h); n != nil && n.key.ifId == ifId {
			o.removeNeigh(n)
		}
	}
	for dst, e := range o.destCache {
		if e.ifId == ifId {
			delete(o.destCache, dst)
		}
	}
	delete(o.ifcs, ifId)
	return nil
}

// Stop all the interfaces
func (o *NdCtx) Stop() {
	ids := make([]int, 0, len(o.ifcs))
	for id := range o.ifcs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		o.StopInterface(id)
	}
}

// onLinkLocalReady the link-local address of the interface is permanent
func (o *NdCtx) onLinkLocalReady(ifId int) {
	if o.node.IsRouter {
		if o.cfg.AdvSendAdvertisements {
			o.startAdvertising(ifId)
		}
		return
	}
	o.startRouterDiscovery(ifId)
}

// AdvInfo state of an advertising interface
type AdvInfo struct {
	RaSent          uint32
	SolicitedSent   uint32
	NextScheduled   time.Duration
	SolicitedQueued bool
}

// AdvertisingInfo return the advertising state of a router interface
func (o *NdCtx) AdvertisingInfo(ifId int) (AdvInfo, bool) {
	ifc := o.getIfc(ifId)
	if ifc == nil {
		return AdvInfo{}, false
	}
	r := o.advs.get(ifc.adv)
	if r == nil {
		return AdvInfo{}, false
	}
	return AdvInfo{
		RaSent:          r.raSent,
		SolicitedSent:   r.solicitedSent,
		NextScheduled:   r.nextScheduled,
		SolicitedQueued: r.solicitedTimer.IsRunning(),
	}, true
}

// IsRouterDiscoveryActive the interface is soliciting routers
func (o *NdCtx) IsRouterDiscoveryActive(ifId int) bool {
	ifc := o.getIfc(ifId)
	return ifc != nil && o.rds.get(ifc.rd) != nil
}

// IsDadInProgress a DAD record exists for the address
func (o *NdCtx) IsDadInProgress(addr netip.Addr, ifId int) bool {
	_, ok := o.dadIndex[neighKey{addr: addr, ifId: ifId}]
	return ok
}

// ReachableTime the current reachable time of the interface
func (o *NdCtx) ReachableTime(ifId int) time.Duration {
	return o.reachableTime(ifId)
}

// RetransTime the current retransmission time of the interface
func (o *NdCtx) RetransTime(ifId int) time.Duration {
	return o.retransTimer(ifId)
}
