package ipv6

import (
	"net/netip"

	"ndsim/emu/core"
)

type dadRecord struct {
	h         handle
	key       neighKey
	numNsSent uint32
	timer     core.CHTimerObj
}

// startDad check a tentative address, it is promoted after DupAddrDetectTransmits
// retransmission intervals without an answer
func (o *NdCtx) startDad(ifId int, addr netip.Addr) {
	key := neighKey{addr: addr, ifId: ifId}
	if _, ok := o.dadIndex[key]; ok {
		return
	}
	o.sender.JoinSolicitedNode(ifId, addr)
	if o.cfg.DupAddrDetectTransmits == 0 {
		o.promoteAddress(ifId, addr)
		return
	}
	h, r := o.dads.alloc()
	r.h = h
	r.key = key
	o.dadIndex[key] = h
	o.stats.dadStart++
	log.Debugf("%s: start DAD %s if %d", o.node.Name, addr, ifId)
	o.sendDadNs(r)
	o.startTimer(&r.timer, tmrDad, h, o.retransTimer(ifId))
}

// sendDadNs unspecified source and no source link-layer option
func (o *NdCtx) sendDadNs(r *dadRecord) {
	r.numNsSent++
	body := &NeighbourSolicitation{Target: r.key.addr}
	if o.sendNd(r.key.ifId, netip.IPv6Unspecified(), core.Ipv6SolicitedNode(r.key.addr), core.MACKey{}, body) {
		o.stats.txNsDad++
	}
}

func (o *NdCtx) onDadTimer(r *dadRecord) {
	if r.numNsSent < o.cfg.DupAddrDetectTransmits {
		o.sendDadNs(r)
		o.startTimer(&r.timer, tmrDad, r.h, o.retransTimer(r.key.ifId))
		return
	}
	key := r.key
	o.releaseDad(r)
	o.promoteAddress(key.ifId, key.addr)
}

func (o *NdCtx) releaseDad(r *dadRecord) {
	o.tctx.Stop(&r.timer)
	delete(o.dadIndex, r.key)
	o.dads.release(r.h)
}

func (o *NdCtx) promoteAddress(ifId int, addr netip.Addr) {
	ie := o.ift.Get(ifId)
	if !ie.MakePermanent(addr) {
		return
	}
	if o.autoconfDeprecated(addr, ifId) {
		ie.SetDeprecated(addr, true)
	}
	o.stats.dadSucceeded++
	log.Infof("%s: %s if %d is unique", o.node.Name, addr, ifId)
	o.event(core.MSG_ND_DAD_SUCCEEDED, ifId, addr)
	if addr.IsLinkLocalUnicast() {
		o.onLinkLocalReady(ifId)
	}
}

// dadDuplicate the tentative address is removed from the interface and not retried
func (o *NdCtx) dadDuplicate(ifId int, addr netip.Addr) {
	key := neighKey{addr: addr, ifId: ifId}
	if h, ok := o.dadIndex[key]; ok {
		if r := o.dads.get(h); r != nil {
			o.releaseDad(r)
		}
	}
	if h, ok := o.autoIndex[key]; ok {
		if r := o.autos.get(h); r != nil {
			o.releaseAutoconf(r)
		}
	}
	o.sender.LeaveSolicitedNode(ifId, addr)
	o.ift.Get(ifId).RemoveAddress(addr)
	o.stats.dadDuplicate++
	log.Warningf("%s: duplicate address %s if %d", o.node.Name, addr, ifId)
	o.event(core.MSG_ND_DAD_DUPLICATE, ifId, addr)
}
