package ipv6

import (
	"errors"
	"net/netip"
	"sort"

	"ndsim/emu/core"
)

var (
	// ErrNextHopIndeterminate no route, no default router and on-link is not assumed
	ErrNextHopIndeterminate = errors.New("next hop indeterminate")
	// ErrHopLimitExceeded the datagram can not be forwarded
	ErrHopLimitExceeded = errors.New("hop limit exceeded")
	// ErrNoSourceAddress the interface has no usable address
	ErrNoSourceAddress = errors.New("no source address")
)

// destEntry a destination cache entry
type destEntry struct {
	nextHop    netip.Addr
	ifId       int
	redirected bool
}

// DestInfo a copy of a destination cache entry
type DestInfo struct {
	Dst        netip.Addr
	NextHop    netip.Addr
	IfId       int
	Redirected bool
}

// DetermineNextHop return the neighbour a datagram to dst is sent to. Link-local and
// multicast destinations are on the link of ifHint, -1 when there is no hint.
func (o *NdCtx) DetermineNextHop(dst netip.Addr, ifHint int) (netip.Addr, int, error) {
	if dst.IsMulticast() || dst.IsLinkLocalUnicast() {
		ifId := ifHint
		if ifId < 0 {
			ifId = o.singleActiveIf()
		}
		if !o.IsActive(ifId) {
			o.stats.nextHopIndeterminate++
			return netip.Addr{}, -1, ErrNextHopIndeterminate
		}
		return dst, ifId, nil
	}

	if e, ok := o.destCache[dst]; ok {
		o.stats.destCacheHit++
		return e.nextHop, e.ifId, nil
	}
	o.stats.destCacheMiss++

	if r, ok := o.rt.Lookup(dst); ok {
		nh := r.NextHop
		if r.IsOnLink() {
			nh = dst
		}
		o.destCache[dst] = destEntry{nextHop: nh, ifId: r.IfId}
		return nh, r.IfId, nil
	}

	if o.cfg.AssumeOnLink {
		ifId := ifHint
		if !o.IsActive(ifId) {
			ifId = o.firstActiveIf()
		}
		if ifId >= 0 {
			o.destCache[dst] = destEntry{nextHop: dst, ifId: ifId}
			return dst, ifId, nil
		}
	}
	o.stats.nextHopIndeterminate++
	return netip.Addr{}, -1, ErrNextHopIndeterminate
}

// singleActiveIf the interface id when only one interface is started, else -1
func (o *NdCtx) singleActiveIf() int {
	if len(o.ifcs) != 1 {
		return -1
	}
	for id := range o.ifcs {
		return id
	}
	return -1
}

func (o *NdCtx) firstActiveIf() int {
	r := -1
	for id := range o.ifcs {
		if r < 0 || id < r {
			r = id
		}
	}
	return r
}

// firstHop the next hop currently used for dst, no cache entry is created
func (o *NdCtx) firstHop(dst netip.Addr) (netip.Addr, int, bool) {
	if e, ok := o.destCache[dst]; ok {
		return e.nextHop, e.ifId, true
	}
	if r, ok := o.rt.Lookup(dst); ok {
		if r.IsOnLink() {
			return dst, r.IfId, true
		}
		return r.NextHop, r.IfId, true
	}
	return netip.Addr{}, -1, false
}

// purgeDestCacheVia drop the destinations that go through the neighbour
func (o *NdCtx) purgeDestCacheVia(key neighKey) {
	for dst, e := range o.destCache {
		if e.nextHop == key.addr && e.ifId == key.ifId {
			delete(o.destCache, dst)
		}
	}
}

// purgeDestCache drop the entries learned from the routing table, redirected entries stay unless all
func (o *NdCtx) purgeDestCache(all bool) {
	for dst, e := range o.destCache {
		if all || !e.redirected {
			delete(o.destCache, dst)
		}
	}
}

// DestinationCache a copy of the destination cache sorted by destination
func (o *NdCtx) DestinationCache() []DestInfo {
	r := make([]DestInfo, 0, len(o.destCache))
	for dst, e := range o.destCache {
		r = append(r, DestInfo{Dst: dst, NextHop: e.nextHop, IfId: e.ifId, Redirected: e.redirected})
	}
	sort.Slice(r, func(i, j int) bool {
		return r[i].Dst.Less(r[j].Dst)
	})
	return r
}

// processRedirect accepted only by hosts and only from the current first hop of the destination
func (o *NdCtx) processRedirect(m *NdMessage, rd *Redirect) {
	if o.node.IsRouter {
		o.stats.rxRedirectIgnored++
		return
	}
	nh, ifId, ok := o.firstHop(rd.Destination)
	if !ok || nh != m.Src || ifId != m.IfId {
		o.stats.rxRedirectIgnored++
		log.Debugf("%s: redirect for %s from %s ignored", o.node.Name, rd.Destination, m.Src)
		return
	}
	o.destCache[rd.Destination] = destEntry{nextHop: rd.Target, ifId: m.IfId, redirected: true}

	var n *neighbour
	if !rd.TargetMac.IsZero() {
		n = o.learnLinkLayer(rd.Target, m.IfId, rd.TargetMac)
	} else {
		n = o.lookupNeigh(rd.Target, m.IfId)
	}
	if n != nil && rd.Target != rd.Destination {
		n.isRouter = true
	}
	o.stats.redirectAccepted++
	log.Infof("%s: redirect %s via %s if %d", o.node.Name, rd.Destination, rd.Target, m.IfId)
}

// SendRedirect tell the host a better first hop for dst, target is dst itself when it is on-link.
// hostMac is the source of the frame that triggered it.
func (o *NdCtx) SendRedirect(ifId int, host netip.Addr, hostMac core.MACKey, target, dst netip.Addr, head []byte) bool {
	ie := o.ift.Get(ifId)
	if ie == nil {
		return false
	}
	src, ok := ie.LinkLocal()
	if !ok {
		o.stats.txErrNoSource++
		return false
	}
	body := &Redirect{Target: target, Destination: dst, Redirected: head}
	if tn := o.lookupNeigh(target, ifId); tn != nil && tn.state != NEIGH_INCOMPLETE {
		body.TargetMac = tn.mac
	}
	if !o.sendNd(ifId, src, host, hostMac, body) {
		return false
	}
	o.stats.txRedirect++
	return true
}

// IsOnLinkNeighbour the address is link-local or inside an on-link prefix of the interface
func (o *NdCtx) IsOnLinkNeighbour(addr netip.Addr, ifId int) bool {
	if addr.IsLinkLocalUnicast() {
		return true
	}
	r, ok := o.rt.Lookup(addr)
	return ok && r.IsOnLink() && r.IfId == ifId
}
