package ipv6

import (
	"net/netip"

	"ndsim/emu/core"
)

// ResolveNeighbour return the mac of the neighbour when it can be used. An unknown
// neighbour gets an INCOMPLETE entry and a multicast solicitation, a STALE one moves to DELAY.
func (o *NdCtx) ResolveNeighbour(addr netip.Addr, ifId int) (core.MACKey, bool) {
	n := o.lookupNeigh(addr, ifId)
	if n == nil {
		n = o.createNeigh(addr, ifId, NEIGH_INCOMPLETE)
		o.startAddressResolution(n)
		return core.MACKey{}, false
	}
	switch n.state {
	case NEIGH_INCOMPLETE:
		return core.MACKey{}, false
	case NEIGH_STALE:
		o.startNud(n)
	}
	return n.mac, true
}

// SendViaNeighbour send the datagram to the next hop, it waits in the pending queue of the
// entry while the next hop is resolved
func (o *NdCtx) SendViaNeighbour(nextHop netip.Addr, ifId int, d *Datagram) error {
	ie := o.ift.Get(ifId)
	if ie == nil {
		return core.ErrNoInterface
	}
	if !ie.IsUp() {
		return core.ErrLinkDown
	}
	if mac, ok := o.ResolveNeighbour(nextHop, ifId); ok {
		return o.sender.SendDatagram(ifId, mac, d)
	}
	o.EnqueuePending(nextHop, ifId, d)
	return nil
}

// EnqueuePending queue a packet on an INCOMPLETE entry, false when the packet was not queued
func (o *NdCtx) EnqueuePending(addr netip.Addr, ifId int, d *Datagram) bool {
	n := o.lookupNeigh(addr, ifId)
	if n == nil || n.state != NEIGH_INCOMPLETE {
		return false
	}
	p := pendingPacket{d: d, ifId: ifId}
	dropped := n.queue.push(p, o.cfg.PendingQueueLimit, o.cfg.PendingQueuePolicy)
	if dropped != nil {
		o.stats.queueDropOverflow++
		if dropped.d == d {
			return false
		}
	}
	o.stats.queueAdd++
	return true
}

func (o *NdCtx) startAddressResolution(n *neighbour) {
	n.numSolicitsSent = 0
	o.sendResolutionNs(n)
	o.armNeigh(n, o.retransTimer(n.key.ifId))
}

// sendResolutionNs multicast solicitation to the solicited-node group of the target
func (o *NdCtx) sendResolutionNs(n *neighbour) {
	n.numSolicitsSent++
	ie := o.ift.Get(n.key.ifId)
	src, ok := ie.SelectSource(n.key.addr)
	if !ok {
		o.stats.txErrNoSource++
		return
	}
	body := &NeighbourSolicitation{Target: n.key.addr, SrcMac: ie.Mac}
	if o.sendNd(n.key.ifId, src, core.Ipv6SolicitedNode(n.key.addr), core.MACKey{}, body) {
		o.stats.txNsMulticast++
	}
}

func (o *NdCtx) onResolutionTimer(n *neighbour) {
	if n.numSolicitsSent < o.cfg.MaxMulticastSolicit {
		o.sendResolutionNs(n)
		o.armNeigh(n, o.retransTimer(n.key.ifId))
		return
	}
	o.stats.arFailed++
	key := n.key
	log.Infof("%s: address resolution of %s if %d failed", o.node.Name, key.addr, key.ifId)
	o.removeNeigh(n)
	o.event(core.MSG_ND_RESOLUTION_FAILED, key.ifId, key.addr)
}

// completeResolution INCOMPLETE -> state, the pending packets are sent in the order they were queued
func (o *NdCtx) completeResolution(n *neighbour, mac core.MACKey, state NeighState) {
	o.tctx.Stop(&n.timer)
	n.mac = mac
	n.numSolicitsSent = 0
	o.setState(n, state)
	if state == NEIGH_REACHABLE {
		o.armNeigh(n, o.reachableTime(n.key.ifId))
	}
	o.stats.arResolved++
	key := n.key
	for _, p := range n.queue.drain() {
		o.stats.queueSent++
		if err := o.sender.SendDatagram(p.ifId, mac, p.d); err != nil {
			log.Warningf("%s: send queued packet to %s failed: %v", o.node.Name, key.addr, err)
		}
	}
	o.event(core.MSG_ND_NEIGH_RESOLVED, key.ifId, key.addr)
	if n.isDefaultRouter {
		o.selectDefaultRouter()
	}
}

// processNS answer solicitations for our addresses, DAD solicitations for a tentative address
// mean the address is a duplicate
func (o *NdCtx) processNS(m *NdMessage, ns *NeighbourSolicitation) {
	ie := o.ift.Get(m.IfId)
	a := ie.FindAddr(ns.Target)
	if a == nil {
		o.stats.rxNsNotForUs++
		return
	}
	dad := !m.Src.IsValid() || m.Src.IsUnspecified()

	if a.State == core.ADDR_TENTATIVE {
		if dad {
			o.dadDuplicate(m.IfId, ns.Target)
		}
		// a tentative address is not used to answer resolution
		return
	}

	if dad {
		body := &NeighbourAdvertisement{
			Target:    ns.Target,
			Router:    o.node.IsRouter,
			Override:  true,
			TargetMac: ie.Mac,
		}
		if o.sendNd(m.IfId, ns.Target, core.Ipv6AllNodes, core.MACKey{}, body) {
			o.stats.txNa++
		}
		return
	}

	var dstMac core.MACKey
	if !ns.SrcMac.IsZero() {
		o.learnLinkLayer(m.Src, m.IfId, ns.SrcMac)
		dstMac = ns.SrcMac
	} else if n := o.lookupNeigh(m.Src, m.IfId); n != nil && n.state != NEIGH_INCOMPLETE {
		dstMac = n.mac
	} else {
		dstMac = m.SrcMac
	}

	body := &NeighbourAdvertisement{
		Target:    ns.Target,
		Router:    o.node.IsRouter,
		Solicited: true,
		Override:  true,
		TargetMac: ie.Mac,
	}
	if o.sendNd(m.IfId, ns.Target, m.Src, dstMac, body) {
		o.stats.txNa++
	}
}

func (o *NdCtx) processNA(m *NdMessage, na *NeighbourAdvertisement) {
	ie := o.ift.Get(m.IfId)
	if a := ie.FindAddr(na.Target); a != nil {
		if a.State == core.ADDR_TENTATIVE {
			o.dadDuplicate(m.IfId, na.Target)
			return
		}
		o.stats.rxNaOwnAddress++
		log.Warningf("%s: %s advertises our address %s", o.node.Name, na.TargetMac, na.Target)
		return
	}

	n := o.lookupNeigh(na.Target, m.IfId)
	if n == nil {
		o.stats.rxNaNoEntry++
		return
	}

	if n.state == NEIGH_INCOMPLETE {
		if na.TargetMac.IsZero() {
			o.stats.rxNaNoTlla++
			return
		}
		n.isRouter = na.Router
		state := NEIGH_STALE
		if na.Solicited {
			state = NEIGH_REACHABLE
		}
		o.completeResolution(n, na.TargetMac, state)
		return
	}

	macDiffers := !na.TargetMac.IsZero() && na.TargetMac != n.mac
	if !na.Override && macDiffers {
		if n.state == NEIGH_REACHABLE {
			o.tctx.Stop(&n.timer)
			o.setState(n, NEIGH_STALE)
		}
		return
	}
	if macDiffers {
		n.mac = na.TargetMac
	}
	if na.Solicited {
		o.confirmReachable(n)
	} else if macDiffers {
		o.tctx.Stop(&n.timer)
		n.numSolicitsSent = 0
		o.setState(n, NEIGH_STALE)
	}

	wasRouter := n.isRouter
	n.isRouter = na.Router
	if wasRouter && !na.Router && n.isDefaultRouter {
		o.removeRouter(n.key)
	}
}
