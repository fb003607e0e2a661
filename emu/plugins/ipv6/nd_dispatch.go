package ipv6

import (
	"fmt"

	"ndsim/emu/core"
)

// validateNdMessage the checks of the message that are common to hosts and routers
func validateNdMessage(m *NdMessage) error {
	unspecified := !m.Src.IsValid() || m.Src.IsUnspecified()
	switch b := m.Body.(type) {
	case *RouterSolicitation:
		if unspecified && !b.SrcMac.IsZero() {
			return fmt.Errorf("rs from the unspecified address with a source link-layer option")
		}
	case *RouterAdvertisement:
		if !m.Src.IsLinkLocalUnicast() {
			return fmt.Errorf("ra source %s is not link-local", m.Src)
		}
	case *NeighbourSolicitation:
		if b.Target.IsMulticast() {
			return fmt.Errorf("ns target %s is multicast", b.Target)
		}
		if unspecified {
			if !core.IsIpv6SolicitedNode(m.Dst) {
				return fmt.Errorf("dad ns to %s", m.Dst)
			}
			if !b.SrcMac.IsZero() {
				return fmt.Errorf("dad ns with a source link-layer option")
			}
		}
	case *NeighbourAdvertisement:
		if b.Target.IsMulticast() {
			return fmt.Errorf("na target %s is multicast", b.Target)
		}
		if m.Dst.IsMulticast() && b.Solicited {
			return fmt.Errorf("solicited na to multicast %s", m.Dst)
		}
	case *Redirect:
		if !m.Src.IsLinkLocalUnicast() {
			return fmt.Errorf("redirect source %s is not link-local", m.Src)
		}
		if b.Destination.IsMulticast() {
			return fmt.Errorf("redirect destination %s is multicast", b.Destination)
		}
		if !b.Target.IsLinkLocalUnicast() && b.Target != b.Destination {
			return fmt.Errorf("redirect target %s", b.Target)
		}
	default:
		return fmt.Errorf("unknown message")
	}
	return nil
}

// HandleNdMessage entry of received ND messages, invalid messages are counted and dropped
func (o *NdCtx) HandleNdMessage(m *NdMessage) {
	if !o.IsActive(m.IfId) {
		o.stats.rxErrIfInactive++
		return
	}
	if m.HopLimit != NdHopLimit {
		o.stats.rxErrHopLimit++
		return
	}
	if m.Code != 0 {
		o.stats.rxErrCode++
		return
	}
	if err := validateNdMessage(m); err != nil {
		o.stats.rxErrInvalid++
		log.Debugf("%s: drop %s: %v", o.node.Name, m, err)
		return
	}

	switch b := m.Body.(type) {
	case *RouterSolicitation:
		o.stats.rxRs++
		o.processRS(m, b)
	case *RouterAdvertisement:
		o.stats.rxRa++
		o.processRA(m, b)
	case *NeighbourSolicitation:
		o.stats.rxNs++
		o.processNS(m, b)
	case *NeighbourAdvertisement:
		o.stats.rxNa++
		o.processNA(m, b)
	case *Redirect:
		o.stats.rxRedirect++
		o.processRedirect(m, b)
	}
}

// HandleMalformed a frame that could not be decoded as an ND message
func (o *NdCtx) HandleMalformed(ifId int, err error) {
	o.stats.rxErrMalformed++
	log.Debugf("%s: malformed nd message on if %d: %v", o.node.Name, ifId, err)
}
