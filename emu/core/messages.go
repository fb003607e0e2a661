package core

// event bus messages of a node, a is the interface id (int) unless written otherwise
const (
	MSG_IF_UP   = "if_up"   // interface became up (a=*InterfaceEntry)
	MSG_IF_DOWN = "if_down" // interface became down (a=*InterfaceEntry)

	MSG_ND_DAD_SUCCEEDED       = "nd_dad_ok"         // tentative address promoted (b=netip.Addr)
	MSG_ND_DAD_DUPLICATE       = "nd_dad_duplicate"  // tentative address abandoned (b=netip.Addr)
	MSG_ND_NEIGH_RESOLVED      = "nd_resolved"       // INCOMPLETE entry resolved (b=netip.Addr)
	MSG_ND_RESOLUTION_FAILED   = "nd_ar_failed"      // address resolution budget exhausted (b=netip.Addr)
	MSG_ND_NEIGH_UNREACHABLE   = "nd_unreachable"    // NUD unicast solicitations exhausted (b=netip.Addr)
	MSG_ND_DEFAULT_ROUTER_ADD  = "nd_dr_add"         // router added to the default router list (b=netip.Addr)
	MSG_ND_DEFAULT_ROUTER_DEL  = "nd_dr_del"         // router removed from the default router list (b=netip.Addr)
	MSG_ND_RD_EXHAUSTED        = "nd_rd_exhausted"   // no router answered the solicitations (b=nil)
	MSG_ND_ADDR_AUTOCONF       = "nd_autoconf"       // address derived from a prefix, DAD started (b=netip.Addr)
	MSG_ND_PREFIX_ADD          = "nd_prefix_add"     // on-link prefix learned (b=netip.Prefix)
	MSG_ND_PREFIX_DEL          = "nd_prefix_del"     // on-link prefix removed (b=netip.Prefix)
	MSG_ND_ROUTE_CHANGED       = "nd_route_changed"  // default route changed (b=netip.Addr, invalid if removed)
	MSG_IPV6_DATAGRAM_RECEIVED = "ipv6_datagram_rx"  // datagram delivered locally (b=*ipv6.Datagram)
)
