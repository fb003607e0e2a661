package ipv6

import (
	"net/netip"
	"time"

	"ndsim/emu/core"
)

type rdRecord struct {
	h         handle
	ifId      int
	numRsSent uint32
	timer     core.CHTimerObj
}

// startRouterDiscovery the first solicitation is sent at once
func (o *NdCtx) startRouterDiscovery(ifId int) {
	ifc := o.getIfc(ifId)
	if ifc == nil || o.rds.get(ifc.rd) != nil {
		return
	}
	if o.cfg.MaxRtrSolicitations == 0 {
		return
	}
	h, r := o.rds.alloc()
	r.h = h
	r.ifId = ifId
	ifc.rd = h
	o.stats.rdStart++
	o.sendRs(r)
	o.startTimer(&r.timer, tmrRd, h, o.rsDelay(r.numRsSent))
}

// rsDelay the wait after solicitation number sent. Exponential backoff doubles the
// interval each time, the waits before the third solicitation and on get a random jitter.
func (o *NdCtx) rsDelay(sent uint32) time.Duration {
	d := o.cfg.RtrSolicitationInterval
	if o.cfg.RtrSolicitationBackoff == BACKOFF_EXPONENTIAL && sent > 1 {
		shift := sent - 1
		if shift > 16 {
			shift = 16
		}
		d <<= shift
	}
	if sent >= 2 && sent < o.cfg.MaxRtrSolicitations {
		d += o.sim.RandDuration(o.cfg.RtrSolicitationJitter)
	}
	return d
}

// sendRs from the link-local address with the source link-layer option, from the
// unspecified address without it while no link-local address is usable
func (o *NdCtx) sendRs(r *rdRecord) {
	r.numRsSent++
	ie := o.ift.Get(r.ifId)
	body := &RouterSolicitation{}
	src, ok := ie.LinkLocal()
	if ok {
		body.SrcMac = ie.Mac
	} else {
		src = netip.IPv6Unspecified()
	}
	if o.sendNd(r.ifId, src, core.Ipv6AllRouters, core.MACKey{}, body) {
		o.stats.txRs++
	}
}

func (o *NdCtx) onRdTimer(r *rdRecord) {
	if r.numRsSent < o.cfg.MaxRtrSolicitations {
		o.sendRs(r)
		o.startTimer(&r.timer, tmrRd, r.h, o.rsDelay(r.numRsSent))
		return
	}
	ifId := r.ifId
	o.releaseRd(r)
	o.stats.rdExhausted++
	log.Infof("%s: no router answered on if %d", o.node.Name, ifId)
	o.event(core.MSG_ND_RD_EXHAUSTED, ifId, nil)
}

func (o *NdCtx) releaseRd(r *rdRecord) {
	o.tctx.Stop(&r.timer)
	if ifc := o.getIfc(r.ifId); ifc != nil {
		ifc.rd = handle{}
	}
	o.rds.release(r.h)
}

// cancelRouterDiscovery stop soliciting, a router was heard or the interface stopped
func (o *NdCtx) cancelRouterDiscovery(ifId int) bool {
	ifc := o.getIfc(ifId)
	if ifc == nil {
		return false
	}
	r := o.rds.get(ifc.rd)
	if r == nil {
		return false
	}
	o.releaseRd(r)
	o.stats.rdDone++
	return true
}
