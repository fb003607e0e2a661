package ipv6

import (
	"net/netip"
	"time"

	"ndsim/emu/core"
)

// a valid lifetime below two hours from an unauthenticated advertisement can not shorten an address
const twoHours = 2 * time.Hour

// autoconfAddr an address formed from an advertised prefix
type autoconfAddr struct {
	h              handle
	key            neighKey
	validInfinite  bool
	deprecated     bool // preferred lifetime over, applies once DAD promotes the address
	validTimer     core.CHTimerObj
	preferredTimer core.CHTimerObj
}

// processAutoconfPrefix form an EUI-64 address from an autonomous /64 prefix, or refresh
// the lifetimes of the address formed before
func (o *NdCtx) processAutoconfPrefix(ifId int, pi *PrefixInformation) {
	if !o.cfg.Autoconf || !pi.Autonomous {
		return
	}
	prefix := pi.Prefix.Masked()
	if prefix.Bits() != 64 || prefix.Addr().IsLinkLocalUnicast() {
		return
	}
	if pi.PreferredLifetime > pi.ValidLifetime {
		return
	}
	ie := o.ift.Get(ifId)
	addr := core.Ipv6FromPrefix(prefix, core.Ipv6InterfaceID(ie.Mac))
	key := neighKey{addr: addr, ifId: ifId}

	if h, ok := o.autoIndex[key]; ok {
		r := o.autos.get(h)
		o.refreshValid(r, pi.ValidLifetime)
		o.setPreferred(r, pi.PreferredLifetime)
		return
	}
	if pi.ValidLifetime == 0 || ie.FindAddr(addr) != nil {
		return
	}

	ie.AssignTentative(addr, 64, true)
	h, r := o.autos.alloc()
	r.h = h
	r.key = key
	o.autoIndex[key] = h
	o.setValid(r, pi.ValidLifetime)
	o.setPreferred(r, pi.PreferredLifetime)
	o.stats.autoconfAdd++
	log.Infof("%s: autoconf %s if %d", o.node.Name, addr, ifId)
	o.event(core.MSG_ND_ADDR_AUTOCONF, ifId, addr)
	o.startDad(ifId, addr)
}

func (o *NdCtx) setValid(r *autoconfAddr, sec uint32) {
	o.tctx.Stop(&r.validTimer)
	r.validInfinite = sec == InfiniteLifetime
	if !r.validInfinite {
		o.startTimer(&r.validTimer, tmrAutoValid, r.h, secs(sec))
	}
}

// refreshValid take the advertised lifetime when it is above two hours or above the
// remaining one, otherwise the remaining lifetime is cut to two hours at most
func (o *NdCtx) refreshValid(r *autoconfAddr, sec uint32) {
	if sec == InfiniteLifetime {
		o.setValid(r, sec)
		return
	}
	adv := secs(sec)
	var remaining time.Duration
	if r.validInfinite {
		remaining = time.Duration(1<<63 - 1)
	} else {
		remaining = o.tctx.Remaining(&r.validTimer)
	}
	switch {
	case adv > twoHours || adv > remaining:
		o.setValid(r, sec)
	case remaining <= twoHours:
	default:
		o.setValid(r, uint32(twoHours/time.Second))
	}
}

func (o *NdCtx) setPreferred(r *autoconfAddr, sec uint32) {
	o.tctx.Stop(&r.preferredTimer)
	r.deprecated = sec == 0
	o.ift.Get(r.key.ifId).SetDeprecated(r.key.addr, r.deprecated)
	if sec != 0 && sec != InfiniteLifetime {
		o.startTimer(&r.preferredTimer, tmrAutoPreferred, r.h, secs(sec))
	}
}

func (o *NdCtx) onAutoPreferredExpire(r *autoconfAddr) {
	log.Debugf("%s: %s if %d deprecated", o.node.Name, r.key.addr, r.key.ifId)
	r.deprecated = true
	o.ift.Get(r.key.ifId).SetDeprecated(r.key.addr, true)
}

// autoconfDeprecated the address is autoconfigured and its preferred lifetime is over
func (o *NdCtx) autoconfDeprecated(addr netip.Addr, ifId int) bool {
	h, ok := o.autoIndex[neighKey{addr: addr, ifId: ifId}]
	if !ok {
		return false
	}
	r := o.autos.get(h)
	return r != nil && r.deprecated
}

func (o *NdCtx) onAutoValidExpire(r *autoconfAddr) {
	o.stats.autoconfExpire++
	log.Infof("%s: %s if %d expired", o.node.Name, r.key.addr, r.key.ifId)
	o.removeAutoconf(r)
}

// removeAutoconf the address leaves the interface
func (o *NdCtx) removeAutoconf(r *autoconfAddr) {
	key := r.key
	if h, ok := o.dadIndex[key]; ok {
		if d := o.dads.get(h); d != nil {
			o.releaseDad(d)
		}
	}
	o.releaseAutoconf(r)
	o.sender.LeaveSolicitedNode(key.ifId, key.addr)
	if ie := o.ift.Get(key.ifId); ie != nil {
		ie.RemoveAddress(key.addr)
	}
}

func (o *NdCtx) releaseAutoconf(r *autoconfAddr) {
	o.tctx.Stop(&r.validTimer)
	o.tctx.Stop(&r.preferredTimer)
	delete(o.autoIndex, r.key)
	o.autos.release(r.h)
}

// AutoconfAddresses the addresses formed from prefixes
func (o *NdCtx) AutoconfAddresses() []netip.Addr {
	r := make([]netip.Addr, 0, o.autos.len())
	for _, h := range o.autos.handles() {
		r = append(r, o.autos.get(h).key.addr)
	}
	return r
}
