package ipv6

import (
	"fmt"
	"net/netip"

	"ndsim/emu/core"

	xipv6 "golang.org/x/net/ipv6"
)

/* Neighbor Discovery messages (RFC 4861 section 4)

NdBody is a closed set of variants, the dispatcher switches on the concrete type.
A zero MACKey means the link-layer address option is not present.
*/

const (
	NdHopLimit       = 255
	InfiniteLifetime = 0xffffffff // prefix lifetimes, seconds
)

type NdBody interface {
	Type() xipv6.ICMPType
	ndBody()
}

type RouterSolicitation struct {
	SrcMac core.MACKey
}

// PrefixInformation prefix option of a router advertisement, lifetimes are in seconds
type PrefixInformation struct {
	Prefix            netip.Prefix
	OnLink            bool
	Autonomous        bool
	ValidLifetime     uint32
	PreferredLifetime uint32
}

type RouterAdvertisement struct {
	CurHopLimit    uint8
	Managed        bool
	Other          bool
	RouterLifetime uint16 // seconds, zero means not a default router
	ReachableTime  uint32 // ms, zero means unspecified
	RetransTimer   uint32 // ms, zero means unspecified
	SrcMac         core.MACKey
	Mtu            uint32 // zero means no MTU option
	Prefixes       []PrefixInformation
}

type NeighbourSolicitation struct {
	Target netip.Addr
	SrcMac core.MACKey
}

type NeighbourAdvertisement struct {
	Target    netip.Addr
	Router    bool
	Solicited bool
	Override  bool
	TargetMac core.MACKey
}

type Redirect struct {
	Target      netip.Addr
	Destination netip.Addr
	TargetMac   core.MACKey
	Redirected  []byte // head of the redirected packet
}

func (o *RouterSolicitation) Type() xipv6.ICMPType     { return xipv6.ICMPTypeRouterSolicitation }
func (o *RouterAdvertisement) Type() xipv6.ICMPType    { return xipv6.ICMPTypeRouterAdvertisement }
func (o *NeighbourSolicitation) Type() xipv6.ICMPType  { return xipv6.ICMPTypeNeighborSolicitation }
func (o *NeighbourAdvertisement) Type() xipv6.ICMPType { return xipv6.ICMPTypeNeighborAdvertisement }
func (o *Redirect) Type() xipv6.ICMPType               { return xipv6.ICMPTypeRedirect }

func (o *RouterSolicitation) ndBody()     {}
func (o *RouterAdvertisement) ndBody()    {}
func (o *NeighbourSolicitation) ndBody()  {}
func (o *NeighbourAdvertisement) ndBody() {}
func (o *Redirect) ndBody()               {}

// NdMessage a Neighbor Discovery message with the fields of the headers that carry it
type NdMessage struct {
	IfId     int
	Src      netip.Addr
	Dst      netip.Addr
	HopLimit uint8
	Code     uint8
	SrcMac   core.MACKey
	DstMac   core.MACKey
	Body     NdBody
}

func (o *NdMessage) String() string {
	return fmt.Sprintf("%s if %d %s -> %s hlim %d", o.Body.Type(), o.IfId, o.Src, o.Dst, o.HopLimit)
}
