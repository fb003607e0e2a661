package ipv6

import (
	"net/netip"
	"sort"
	"time"

	"ndsim/emu/core"
)

type NeighState uint8

const (
	NEIGH_INCOMPLETE NeighState = 1
	NEIGH_REACHABLE  NeighState = 2
	NEIGH_STALE      NeighState = 3
	NEIGH_DELAY      NeighState = 4
	NEIGH_PROBE      NeighState = 5
)

func (o NeighState) String() string {
	switch o {
	case NEIGH_INCOMPLETE:
		return "incomplete"
	case NEIGH_REACHABLE:
		return "reachable"
	case NEIGH_STALE:
		return "stale"
	case NEIGH_DELAY:
		return "delay"
	case NEIGH_PROBE:
		return "probe"
	}
	return "unknown"
}

type neighKey struct {
	addr netip.Addr
	ifId int
}

type neighbour struct {
	key             neighKey
	h               handle
	state           NeighState
	mac             core.MACKey
	isRouter        bool
	isDefaultRouter bool
	numSolicitsSent uint32
	timer           core.CHTimerObj
	queue           pendingQueue
}

// NeighbourInfo a copy of a neighbour cache entry
type NeighbourInfo struct {
	Addr            netip.Addr
	IfId            int
	State           NeighState
	Mac             core.MACKey
	IsRouter        bool
	IsDefaultRouter bool
	SolicitsSent    uint32
	Queued          int
	TimerRemaining  time.Duration
}

func (o *NdCtx) lookupNeigh(addr netip.Addr, ifId int) *neighbour {
	h, ok := o.neighIndex[neighKey{addr: addr, ifId: ifId}]
	if !ok {
		return nil
	}
	return o.neighs.get(h)
}

func (o *NdCtx) createNeigh(addr netip.Addr, ifId int, state NeighState) *neighbour {
	h, n := o.neighs.alloc()
	n.h = h
	n.key = neighKey{addr: addr, ifId: ifId}
	n.state = state
	o.neighIndex[n.key] = h
	o.stats.neighAdd++
	o.stats.neighActive++
	o.countState(state)
	return n
}

func (o *NdCtx) countState(state NeighState) {
	switch state {
	case NEIGH_REACHABLE:
		o.stats.moveReachable++
	case NEIGH_STALE:
		o.stats.moveStale++
	case NEIGH_DELAY:
		o.stats.moveDelay++
	case NEIGH_PROBE:
		o.stats.moveProbe++
	}
}

func (o *NdCtx) setState(n *neighbour, state NeighState) {
	if n.state == state {
		return
	}
	log.Debugf("%s: neighbour %s if %d %s -> %s", o.node.Name, n.key.addr, n.key.ifId, n.state, state)
	n.state = state
	o.countState(state)
}

func (o *NdCtx) armNeigh(n *neighbour, d time.Duration) {
	o.startTimer(&n.timer, tmrNeigh, n.h, d)
}

// removeNeigh the queue is dropped, a default router entry leaves the router list and
// destinations routed through the neighbour go back to next-hop determination
func (o *NdCtx) removeNeigh(n *neighbour) {
	o.tctx.Stop(&n.timer)
	if q := n.queue.drain(); len(q) > 0 {
		o.stats.queueDropFlush += uint64(len(q))
	}
	key := n.key
	wasRouter := n.isDefaultRouter
	delete(o.neighIndex, key)
	o.neighs.release(n.h)
	o.stats.neighRemove++
	o.stats.neighActive--
	if wasRouter {
		o.removeRouter(key)
	}
	o.purgeDestCacheVia(key)
}

// learnLinkLayer update the entry from a link-layer address option, a new entry is STALE
func (o *NdCtx) learnLinkLayer(addr netip.Addr, ifId int, mac core.MACKey) *neighbour {
	n := o.lookupNeigh(addr, ifId)
	if n == nil {
		n = o.createNeigh(addr, ifId, NEIGH_STALE)
		n.mac = mac
		return n
	}
	if n.state == NEIGH_INCOMPLETE {
		o.completeResolution(n, mac, NEIGH_STALE)
		return n
	}
	if n.mac != mac {
		o.tctx.Stop(&n.timer)
		n.mac = mac
		n.numSolicitsSent = 0
		o.setState(n, NEIGH_STALE)
	}
	return n
}

func (o *NdCtx) neighInfo(n *neighbour) NeighbourInfo {
	return NeighbourInfo{
		Addr:            n.key.addr,
		IfId:            n.key.ifId,
		State:           n.state,
		Mac:             n.mac,
		IsRouter:        n.isRouter,
		IsDefaultRouter: n.isDefaultRouter,
		SolicitsSent:    n.numSolicitsSent,
		Queued:          n.queue.len(),
		TimerRemaining:  o.tctx.Remaining(&n.timer),
	}
}

// Lookup return a copy of the neighbour entry
func (o *NdCtx) Lookup(addr netip.Addr, ifId int) (NeighbourInfo, bool) {
	n := o.lookupNeigh(addr, ifId)
	if n == nil {
		return NeighbourInfo{}, false
	}
	return o.neighInfo(n), true
}

// Neighbours all the entries sorted by interface and address
func (o *NdCtx) Neighbours() []NeighbourInfo {
	r := make([]NeighbourInfo, 0, o.neighs.len())
	for _, h := range o.neighs.handles() {
		r = append(r, o.neighInfo(o.neighs.get(h)))
	}
	sort.Slice(r, func(i, j int) bool {
		if r[i].IfId != r[j].IfId {
			return r[i].IfId < r[j].IfId
		}
		return r[i].Addr.Less(r[j].Addr)
	})
	return r
}

// Invalidate remove the entry, packets waiting on it go through resolution again
func (o *NdCtx) Invalidate(addr netip.Addr, ifId int) bool {
	n := o.lookupNeigh(addr, ifId)
	if n == nil {
		return false
	}
	o.invalidate(n)
	return true
}

// InvalidateAll invalidate every entry of the interface
func (o *NdCtx) InvalidateAll(ifId int) int {
	cnt := 0
	for _, h := range o.neighs.handles() {
		n := o.neighs.get(h)
		if n == nil || n.key.ifId != ifId {
			continue
		}
		o.invalidate(n)
		cnt++
	}
	return cnt
}

func (o *NdCtx) invalidate(n *neighbour) {
	key := n.key
	pkts := n.queue.drain()
	o.removeNeigh(n)
	for _, p := range pkts {
		o.stats.queueRequeue++
		if err := o.SendViaNeighbour(key.addr, p.ifId, p.d); err != nil {
			log.Debugf("%s: requeue to %s failed: %v", o.node.Name, key.addr, err)
		}
	}
}
