package ipv6

import (
	"net/netip"

	"ndsim/emu/core"
)

// startNud STALE -> DELAY, the first probe is sent if no confirmation arrives in DelayFirstProbeTime
func (o *NdCtx) startNud(n *neighbour) {
	n.numSolicitsSent = 0
	o.setState(n, NEIGH_DELAY)
	o.armNeigh(n, o.cfg.DelayFirstProbeTime)
}

// ReachabilityConfirmed hint from an upper layer that the neighbour is reachable
func (o *NdCtx) ReachabilityConfirmed(addr netip.Addr, ifId int) bool {
	n := o.lookupNeigh(addr, ifId)
	if n == nil || n.state == NEIGH_INCOMPLETE {
		return false
	}
	o.stats.nudConfirmed++
	o.confirmReachable(n)
	return true
}

func (o *NdCtx) confirmReachable(n *neighbour) {
	n.numSolicitsSent = 0
	o.setState(n, NEIGH_REACHABLE)
	o.armNeigh(n, o.reachableTime(n.key.ifId))
}

func (o *NdCtx) onNeighTimer(n *neighbour) {
	switch n.state {
	case NEIGH_INCOMPLETE:
		o.onResolutionTimer(n)
	case NEIGH_REACHABLE:
		o.setState(n, NEIGH_STALE)
	case NEIGH_DELAY:
		n.numSolicitsSent = 0
		o.setState(n, NEIGH_PROBE)
		o.sendUnicastNs(n)
		o.armNeigh(n, o.retransTimer(n.key.ifId))
	case NEIGH_PROBE:
		if n.numSolicitsSent < o.cfg.MaxUnicastSolicit {
			o.sendUnicastNs(n)
			o.armNeigh(n, o.retransTimer(n.key.ifId))
			return
		}
		o.onUnreachable(n)
	}
}

// sendUnicastNs unicast solicitation to the cached mac
func (o *NdCtx) sendUnicastNs(n *neighbour) {
	n.numSolicitsSent++
	ie := o.ift.Get(n.key.ifId)
	src, ok := ie.SelectSource(n.key.addr)
	if !ok {
		o.stats.txErrNoSource++
		return
	}
	body := &NeighbourSolicitation{Target: n.key.addr, SrcMac: ie.Mac}
	if o.sendNd(n.key.ifId, src, n.key.addr, n.mac, body) {
		o.stats.txNsUnicast++
	}
}

func (o *NdCtx) onUnreachable(n *neighbour) {
	o.stats.nudUnreachable++
	key := n.key
	log.Infof("%s: neighbour %s if %d is unreachable", o.node.Name, key.addr, key.ifId)
	o.removeNeigh(n)
	o.event(core.MSG_ND_NEIGH_UNREACHABLE, key.ifId, key.addr)
}
