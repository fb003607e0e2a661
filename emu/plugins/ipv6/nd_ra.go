package ipv6

import (
	"net/netip"
	"time"

	"ndsim/emu/core"
)

// advIfRecord an interface that sends router advertisements
type advIfRecord struct {
	h             handle
	ifId          int
	raSent        uint32 // unsolicited
	solicitedSent uint32
	hasSent       bool
	lastRa        time.Duration
	nextScheduled time.Duration

	timer          core.CHTimerObj
	solicitedTimer core.CHTimerObj
	solicitedDst   netip.Addr
	solicitedMac   core.MACKey
}

// startAdvertising the first advertisement goes out after a random delay in [0, InitialRtrAdvertJitter]
func (o *NdCtx) startAdvertising(ifId int) {
	ifc := o.getIfc(ifId)
	if ifc == nil || o.advs.get(ifc.adv) != nil {
		return
	}
	h, r := o.advs.alloc()
	r.h = h
	r.ifId = ifId
	ifc.adv = h
	log.Debugf("%s: advertising on if %d", o.node.Name, ifId)
	for _, p := range o.advPrefixes(ifc.ie) {
		if p.OnLink {
			o.rt.AddRouteNoReplace(core.Route6{Prefix: p.Prefix, IfId: ifId, Source: core.ROUTE_ONLINK})
		}
	}
	o.scheduleRa(r, o.sim.RandDuration(o.cfg.InitialRtrAdvertJitter))
}

func (o *NdCtx) scheduleRa(r *advIfRecord, d time.Duration) {
	o.startTimer(&r.timer, tmrRaPeriodic, r.h, d)
	r.nextScheduled = o.sim.Now() + o.tctx.TicksToDuration(o.tctx.DurationToTicks(d))
}

// nextRaInterval uniform in [MinRtrAdvInterval, MaxRtrAdvInterval], capped for the first advertisements
func (o *NdCtx) nextRaInterval(r *advIfRecord) time.Duration {
	d := o.sim.RandRange(o.cfg.MinRtrAdvInterval, o.cfg.MaxRtrAdvInterval)
	if r.raSent < o.cfg.MaxInitialRtrAdvertisements && d > o.cfg.MaxInitialRtrAdvertInterval {
		d = o.cfg.MaxInitialRtrAdvertInterval
	}
	return d
}

// onRaPeriodic the all-nodes advertisement also answers a deferred solicitation
func (o *NdCtx) onRaPeriodic(r *advIfRecord) {
	if r.solicitedTimer.IsRunning() {
		o.tctx.Stop(&r.solicitedTimer)
		o.stats.raSolicitedCoalesced++
	}
	if o.sendRa(r, core.Ipv6AllNodes, core.MACKey{}, false) {
		o.stats.txRa++
	}
	r.raSent++
	o.scheduleRa(r, o.nextRaInterval(r))
}

// buildRa the advertisement of the interface, final has a zero router lifetime
func (o *NdCtx) buildRa(ie *core.InterfaceEntry, final bool) *RouterAdvertisement {
	ra := &RouterAdvertisement{
		CurHopLimit:   o.cfg.AdvCurHopLimit,
		Managed:       o.cfg.AdvManaged,
		Other:         o.cfg.AdvOther,
		ReachableTime: uint32(o.cfg.AdvReachableTime / time.Millisecond),
		RetransTimer:  uint32(o.cfg.AdvRetransTimer / time.Millisecond),
		SrcMac:        ie.Mac,
		Mtu:           o.cfg.AdvLinkMtu,
	}
	if !final {
		ra.RouterLifetime = uint16(o.cfg.AdvDefaultLifetime / time.Second)
	}
	ra.Prefixes = o.advPrefixes(ie)
	return ra
}

// advPrefixes the prefixes advertised on the interface
func (o *NdCtx) advPrefixes(ie *core.InterfaceEntry) []PrefixInformation {
	var r []PrefixInformation
	for _, p := range o.cfg.AdvPrefixes {
		if p.Interface != "" && p.Interface != ie.Name {
			continue
		}
		r = append(r, p.Info)
	}
	return r
}

func (o *NdCtx) sendRa(r *advIfRecord, dst netip.Addr, dstMac core.MACKey, final bool) bool {
	ie := o.ift.Get(r.ifId)
	src, ok := ie.LinkLocal()
	if !ok {
		o.stats.txErrNoSource++
		return false
	}
	if !o.sendNd(r.ifId, src, dst, dstMac, o.buildRa(ie, final)) {
		return false
	}
	r.hasSent = true
	r.lastRa = o.sim.Now()
	return true
}

// processRS answer a solicitation, unicast to the requester when the minimum delay
// between advertisements has passed. Otherwise one reply is deferred, solicitations
// that arrive meanwhile join it and it goes to all-nodes.
func (o *NdCtx) processRS(m *NdMessage, rs *RouterSolicitation) {
	ifc := o.getIfc(m.IfId)
	r := o.advs.get(ifc.adv)
	if r == nil {
		o.stats.rxRsNotRouter++
		return
	}

	dst := core.Ipv6AllNodes
	var dstMac core.MACKey
	if m.Src.IsValid() && !m.Src.IsUnspecified() {
		if !rs.SrcMac.IsZero() {
			n := o.learnLinkLayer(m.Src, m.IfId, rs.SrcMac)
			n.isRouter = false
			dst, dstMac = m.Src, rs.SrcMac
		} else if n := o.lookupNeigh(m.Src, m.IfId); n != nil && n.state != NEIGH_INCOMPLETE {
			dst, dstMac = m.Src, n.mac
		}
	}

	if r.solicitedTimer.IsRunning() {
		o.stats.raSolicitedCoalesced++
		if r.solicitedDst != dst {
			r.solicitedDst = core.Ipv6AllNodes
			r.solicitedMac = core.MACKey{}
		}
		return
	}

	now := o.sim.Now()
	if !r.hasSent || now-r.lastRa >= o.cfg.MinDelayBetweenRAs {
		if o.sendRa(r, dst, dstMac, false) {
			o.stats.txRaSolicited++
		}
		r.solicitedSent++
		return
	}
	r.solicitedDst = dst
	r.solicitedMac = dstMac
	o.stats.raSolicitedDeferred++
	o.startTimer(&r.solicitedTimer, tmrRaSolicited, r.h, o.cfg.MinDelayBetweenRAs-(now-r.lastRa))
}

func (o *NdCtx) onRaSolicited(r *advIfRecord) {
	if since := o.sim.Now() - r.lastRa; r.hasSent && since < o.cfg.MinDelayBetweenRAs {
		o.startTimer(&r.solicitedTimer, tmrRaSolicited, r.h, o.cfg.MinDelayBetweenRAs-since)
		return
	}
	if o.sendRa(r, r.solicitedDst, r.solicitedMac, false) {
		o.stats.txRaSolicited++
	}
	r.solicitedSent++
}

// stopAdvertising a final advertisement with zero lifetime tells the hosts to drop the router
func (o *NdCtx) stopAdvertising(ifId int) {
	ifc := o.getIfc(ifId)
	if ifc == nil {
		return
	}
	r := o.advs.get(ifc.adv)
	if r == nil {
		return
	}
	if o.cfg.SendFinalRA && r.hasSent && ifc.ie.IsUp() {
		if o.sendRa(r, core.Ipv6AllNodes, core.MACKey{}, true) {
			o.stats.txRaFinal++
		}
	}
	o.tctx.Stop(&r.timer)
	o.tctx.Stop(&r.solicitedTimer)
	o.advs.release(r.h)
	ifc.adv = handle{}
	for _, p := range o.advPrefixes(ifc.ie) {
		if _, learned := o.prefixIndex[prefixKey{prefix: p.Prefix, ifId: ifId}]; learned {
			continue
		}
		if rt, ok := o.rt.Get(p.Prefix); ok && rt.Source == core.ROUTE_ONLINK && rt.IfId == ifId {
			o.rt.RemoveRoute(p.Prefix)
		}
	}
}

// advertisesOnLink the interface is advertising the prefix as on-link
func (o *NdCtx) advertisesOnLink(ifId int, prefix netip.Prefix) bool {
	ifc := o.getIfc(ifId)
	if ifc == nil || o.advs.get(ifc.adv) == nil {
		return false
	}
	for _, p := range o.advPrefixes(ifc.ie) {
		if p.OnLink && p.Prefix == prefix {
			return true
		}
	}
	return false
}
