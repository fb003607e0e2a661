package ipv6

import (
	"net/netip"
	"sort"
	"time"

	"ndsim/emu/core"
)

type defaultRouter struct {
	h     handle
	key   neighKey
	timer core.CHTimerObj
}

// RouterInfo an entry of the default router list
type RouterInfo struct {
	Addr      netip.Addr
	IfId      int
	Remaining time.Duration
	Selected  bool
}

func secs(v uint32) time.Duration {
	return time.Duration(v) * time.Second
}

// processRA hosts and routers learn the link parameters, the router and its prefixes.
// Only hosts put the sender in the default router list.
func (o *NdCtx) processRA(m *NdMessage, ra *RouterAdvertisement) {
	ifc := o.getIfc(m.IfId)
	ie := ifc.ie

	if ra.CurHopLimit != 0 {
		ie.HopLimit = ra.CurHopLimit
	}
	if ra.ReachableTime != 0 {
		base := time.Duration(ra.ReachableTime) * time.Millisecond
		if base != ifc.baseReachable {
			ifc.baseReachable = base
			ifc.reachable = o.computeReachable(base)
		}
	}
	if ra.RetransTimer != 0 {
		ifc.retrans = time.Duration(ra.RetransTimer) * time.Millisecond
	}
	if ra.Mtu != 0 && ra.Mtu >= 1280 {
		ie.Mtu = ra.Mtu
	}

	if o.node.IsRouter {
		if !ra.SrcMac.IsZero() {
			o.learnLinkLayer(m.Src, m.IfId, ra.SrcMac).isRouter = true
		}
	} else {
		o.updateRouterNeighbour(m.Src, m.IfId, ra.SrcMac)
		o.updateRouter(m.Src, m.IfId, ra.RouterLifetime)
		if ra.RouterLifetime != 0 {
			o.cancelRouterDiscovery(m.IfId)
		}
	}

	for i := range ra.Prefixes {
		o.prefixHandler.handlePrefix(m.IfId, &ra.Prefixes[i])
	}
}

// updateRouterNeighbour the sender of an advertisement is a router. Without a source
// link-layer option the entry is resolved so every router in the list has an entry.
func (o *NdCtx) updateRouterNeighbour(addr netip.Addr, ifId int, mac core.MACKey) {
	var n *neighbour
	if !mac.IsZero() {
		n = o.learnLinkLayer(addr, ifId, mac)
	} else {
		n = o.lookupNeigh(addr, ifId)
		if n == nil {
			o.ResolveNeighbour(addr, ifId)
			n = o.lookupNeigh(addr, ifId)
		}
	}
	if n != nil {
		n.isRouter = true
	}
}

func (o *NdCtx) updateRouter(addr netip.Addr, ifId int, lifetime uint16) {
	key := neighKey{addr: addr, ifId: ifId}
	h, ok := o.routerIndex[key]
	if lifetime == 0 {
		if ok {
			o.removeRouter(key)
		}
		return
	}
	d := secs(uint32(lifetime))
	if ok {
		r := o.routers.get(h)
		o.startTimer(&r.timer, tmrRouter, r.h, d)
		return
	}

	n := o.lookupNeigh(addr, ifId)
	if n == nil {
		return
	}
	h, r := o.routers.alloc()
	r.h = h
	r.key = key
	o.routerIndex[key] = h
	o.routerOrder = append(o.routerOrder, key)
	n.isDefaultRouter = true
	o.startTimer(&r.timer, tmrRouter, h, d)
	o.stats.drAdd++
	log.Infof("%s: default router %s if %d lifetime %v", o.node.Name, addr, ifId, d)
	o.event(core.MSG_ND_DEFAULT_ROUTER_ADD, ifId, addr)
	o.selectDefaultRouter()
}

func (o *NdCtx) onRouterExpire(r *defaultRouter) {
	o.stats.drExpire++
	o.removeRouter(r.key)
}

// removeRouter routes through the router are retracted and a new default is selected
func (o *NdCtx) removeRouter(key neighKey) {
	h, ok := o.routerIndex[key]
	if !ok {
		return
	}
	if r := o.routers.get(h); r != nil {
		o.tctx.Stop(&r.timer)
	}
	o.routers.release(h)
	delete(o.routerIndex, key)
	for i, k := range o.routerOrder {
		if k == key {
			o.routerOrder = append(o.routerOrder[:i], o.routerOrder[i+1:]...)
			break
		}
	}
	if n := o.lookupNeigh(key.addr, key.ifId); n != nil {
		n.isDefaultRouter = false
	}
	o.rt.RemoveRoutesVia(key.addr, key.ifId)
	o.purgeDestCacheVia(key)
	if o.hasDefault && o.defRouter == key {
		o.hasDefault = false
		o.event(core.MSG_ND_ROUTE_CHANGED, key.ifId, netip.Addr{})
	}
	o.stats.drRemove++
	log.Infof("%s: default router %s if %d removed", o.node.Name, key.addr, key.ifId)
	o.event(core.MSG_ND_DEFAULT_ROUTER_DEL, key.ifId, key.addr)
	o.selectDefaultRouter()
}

// selectDefaultRouter keep the current router while its entry is not INCOMPLETE, else the
// first router with a usable entry, else keep the current one or take the first in the list
func (o *NdCtx) selectDefaultRouter() {
	usable := func(k neighKey) bool {
		n := o.lookupNeigh(k.addr, k.ifId)
		return n != nil && n.state != NEIGH_INCOMPLETE
	}
	var choice neighKey
	found := false
	if o.hasDefault && usable(o.defRouter) {
		return
	}
	for _, k := range o.routerOrder {
		if usable(k) {
			choice, found = k, true
			break
		}
	}
	if !found {
		if o.hasDefault {
			return
		}
		if len(o.routerOrder) > 0 {
			choice, found = o.routerOrder[0], true
		}
	}
	if !found {
		if o.rt.RemoveDefaultRoute() {
			o.event(core.MSG_ND_ROUTE_CHANGED, -1, netip.Addr{})
		}
		return
	}
	if o.hasDefault && o.defRouter == choice {
		return
	}
	o.defRouter = choice
	o.hasDefault = true
	o.rt.SetDefaultRoute(choice.addr, choice.ifId)
	o.purgeDestCache(false)
	log.Debugf("%s: default route via %s if %d", o.node.Name, choice.addr, choice.ifId)
	o.event(core.MSG_ND_ROUTE_CHANGED, choice.ifId, choice.addr)
}

// DefaultRouter the router the default route goes through
func (o *NdCtx) DefaultRouter() (netip.Addr, int, bool) {
	if !o.hasDefault {
		return netip.Addr{}, -1, false
	}
	return o.defRouter.addr, o.defRouter.ifId, true
}

// DefaultRouters the default router list in the order the routers were learned
func (o *NdCtx) DefaultRouters() []RouterInfo {
	r := make([]RouterInfo, 0, len(o.routerOrder))
	for _, k := range o.routerOrder {
		rec := o.routers.get(o.routerIndex[k])
		if rec == nil {
			continue
		}
		r = append(r, RouterInfo{
			Addr:      k.addr,
			IfId:      k.ifId,
			Remaining: o.tctx.Remaining(&rec.timer),
			Selected:  o.hasDefault && o.defRouter == k,
		})
	}
	return r
}

/* prefixes */

type prefixKey struct {
	prefix netip.Prefix
	ifId   int
}

type onlinkPrefix struct {
	h        handle
	key      prefixKey
	infinite bool
	timer    core.CHTimerObj
}

// OnLinkPrefix an entry of the prefix list
type OnLinkPrefix struct {
	Prefix    netip.Prefix
	IfId      int
	Infinite  bool
	Remaining time.Duration
}

// prefixHandler what is done with the prefix options of an advertisement
type prefixHandler interface {
	handlePrefix(ifId int, pi *PrefixInformation)
}

// slaacPrefixHandler on-link prefixes and address autoconfiguration
type slaacPrefixHandler struct {
	nd *NdCtx
}

func (o *slaacPrefixHandler) handlePrefix(ifId int, pi *PrefixInformation) {
	if pi.OnLink {
		o.nd.processOnLinkPrefix(ifId, pi)
	}
	o.nd.processAutoconfPrefix(ifId, pi)
}

// consistencyPrefixHandler on-link prefixes, a router checks the prefix against the one it advertises
type consistencyPrefixHandler struct {
	nd *NdCtx
}

func (o *consistencyPrefixHandler) handlePrefix(ifId int, pi *PrefixInformation) {
	if pi.OnLink {
		o.nd.processOnLinkPrefix(ifId, pi)
	}
	o.nd.checkPrefixConsistency(ifId, pi)
}

func (o *NdCtx) checkPrefixConsistency(ifId int, pi *PrefixInformation) {
	ie := o.ift.Get(ifId)
	for _, p := range o.cfg.AdvPrefixes {
		if p.Interface != "" && p.Interface != ie.Name {
			continue
		}
		if p.Info.Prefix != pi.Prefix.Masked() {
			continue
		}
		if p.Info.ValidLifetime != pi.ValidLifetime ||
			p.Info.PreferredLifetime != pi.PreferredLifetime ||
			p.Info.OnLink != pi.OnLink ||
			p.Info.Autonomous != pi.Autonomous {
			o.stats.rxRaInconsistent++
			log.Warningf("%s: inconsistent advertisement of %s on if %d", o.node.Name, pi.Prefix, ifId)
		}
	}
}

func (o *NdCtx) processOnLinkPrefix(ifId int, pi *PrefixInformation) {
	prefix := pi.Prefix.Masked()
	if prefix.Addr().IsLinkLocalUnicast() {
		return
	}
	key := prefixKey{prefix: prefix, ifId: ifId}
	h, ok := o.prefixIndex[key]
	if pi.ValidLifetime == 0 {
		if ok {
			o.removePrefix(o.prefixes.get(h))
		}
		return
	}
	var r *onlinkPrefix
	if ok {
		r = o.prefixes.get(h)
	} else {
		h, r = o.prefixes.alloc()
		r.h = h
		r.key = key
		o.prefixIndex[key] = h
		if !o.rt.AddRouteNoReplace(core.Route6{Prefix: prefix, IfId: ifId, Source: core.ROUTE_ONLINK}) {
			log.Debugf("%s: on-link prefix %s if %d keeps the configured route", o.node.Name, prefix, ifId)
		}
		o.purgeDestCache(false)
		o.stats.prefixAdd++
		log.Infof("%s: on-link prefix %s if %d", o.node.Name, prefix, ifId)
		o.event(core.MSG_ND_PREFIX_ADD, ifId, prefix)
	}
	o.tctx.Stop(&r.timer)
	r.infinite = pi.ValidLifetime == InfiniteLifetime
	if !r.infinite {
		o.startTimer(&r.timer, tmrPrefix, r.h, secs(pi.ValidLifetime))
	}
}

func (o *NdCtx) onPrefixExpire(r *onlinkPrefix) {
	o.stats.prefixExpire++
	o.removePrefix(r)
}

func (o *NdCtx) removePrefix(r *onlinkPrefix) {
	o.tctx.Stop(&r.timer)
	key := r.key
	o.prefixes.release(r.h)
	delete(o.prefixIndex, key)
	if rt, ok := o.rt.Get(key.prefix); ok && rt.Source == core.ROUTE_ONLINK && rt.IfId == key.ifId &&
		!o.advertisesOnLink(key.ifId, key.prefix) {
		o.rt.RemoveRoute(key.prefix)
	}
	o.purgeDestCache(false)
	o.stats.prefixRemove++
	log.Infof("%s: on-link prefix %s if %d removed", o.node.Name, key.prefix, key.ifId)
	o.event(core.MSG_ND_PREFIX_DEL, key.ifId, key.prefix)
}

// OnLinkPrefixes the prefix list sorted by interface and prefix
func (o *NdCtx) OnLinkPrefixes() []OnLinkPrefix {
	r := make([]OnLinkPrefix, 0, o.prefixes.len())
	for _, h := range o.prefixes.handles() {
		p := o.prefixes.get(h)
		r = append(r, OnLinkPrefix{
			Prefix:    p.key.prefix,
			IfId:      p.key.ifId,
			Infinite:  p.infinite,
			Remaining: o.tctx.Remaining(&p.timer),
		})
	}
	sort.Slice(r, func(i, j int) bool {
		if r[i].IfId != r[j].IfId {
			return r[i].IfId < r[j].IfId
		}
		return r[i].Prefix.Addr().Less(r[j].Prefix.Addr())
	})
	return r
}
