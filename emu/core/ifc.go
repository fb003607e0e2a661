package core

import (
	"fmt"
	"net/netip"
)

type AddrState uint8

const (
	ADDR_TENTATIVE  AddrState = 1 // under DAD, can't be used as a source
	ADDR_PREFERRED  AddrState = 2
	ADDR_DEPRECATED AddrState = 3 // preferred lifetime expired, still valid
)

func (o AddrState) String() string {
	switch o {
	case ADDR_TENTATIVE:
		return "tentative"
	case ADDR_PREFERRED:
		return "preferred"
	case ADDR_DEPRECATED:
		return "deprecated"
	default:
		return "unknown"
	}
}

// IfAddr one unicast address of an interface
type IfAddr struct {
	Addr      netip.Addr
	PrefixLen int
	State     AddrState
	Autoconf  bool // derived from a router advertisement prefix
}

func (o *IfAddr) Prefix() netip.Prefix {
	return netip.PrefixFrom(o.Addr, o.PrefixLen).Masked()
}

// InterfaceEntry one interface of a node, attached to a link port
type InterfaceEntry struct {
	Id       int
	Name     string
	Mac      MACKey
	Mtu      uint32
	HopLimit uint8
	port     *CLinkPort
	addrs    []*IfAddr
	table    *InterfaceTable
}

func (o *InterfaceEntry) String() string {
	return fmt.Sprintf("%s(%d)", o.Name, o.Id)
}

// IsUp the interface can send and receive
func (o *InterfaceEntry) IsUp() bool {
	return o.port != nil && o.port.IsUp()
}

func (o *InterfaceEntry) SetUp(up bool) {
	if o.port != nil {
		o.port.SetUp(up)
	}
}

func (o *InterfaceEntry) Port() *CLinkPort {
	return o.port
}

// Send hand a frame to the link layer
func (o *InterfaceEntry) Send(frame []byte) error {
	if o.port == nil {
		return ErrLinkDown
	}
	return o.port.Send(frame)
}

// OnRx RxHandler of the port
func (o *InterfaceEntry) OnRx(port *CLinkPort, frame []byte) {
	if o.table.rx != nil {
		o.table.rx.HandleRxFrame(o, frame)
	}
}

// Addresses return a copy of the addresses
func (o *InterfaceEntry) Addresses() []IfAddr {
	r := make([]IfAddr, 0, len(o.addrs))
	for _, a := range o.addrs {
		r = append(r, *a)
	}
	return r
}

// FindAddr return the address record, nil if it is not assigned
func (o *InterfaceEntry) FindAddr(addr netip.Addr) *IfAddr {
	for _, a := range o.addrs {
		if a.Addr == addr {
			return a
		}
	}
	return nil
}

// AssignTentative add an address in tentative state, false if it is already assigned
func (o *InterfaceEntry) AssignTentative(addr netip.Addr, prefixLen int, autoconf bool) bool {
	if o.FindAddr(addr) != nil {
		return false
	}
	o.addrs = append(o.addrs, &IfAddr{Addr: addr, PrefixLen: prefixLen, State: ADDR_TENTATIVE, Autoconf: autoconf})
	return true
}

// AssignPermanent add an address that does not require DAD
func (o *InterfaceEntry) AssignPermanent(addr netip.Addr, prefixLen int) bool {
	if o.FindAddr(addr) != nil {
		return false
	}
	o.addrs = append(o.addrs, &IfAddr{Addr: addr, PrefixLen: prefixLen, State: ADDR_PREFERRED})
	return true
}

// MakePermanent promote a tentative address
func (o *InterfaceEntry) MakePermanent(addr netip.Addr) bool {
	a := o.FindAddr(addr)
	if a == nil || a.State != ADDR_TENTATIVE {
		return false
	}
	a.State = ADDR_PREFERRED
	return true
}

// SetDeprecated mark an assigned address as deprecated
func (o *InterfaceEntry) SetDeprecated(addr netip.Addr, deprecated bool) {
	a := o.FindAddr(addr)
	if a == nil || a.State == ADDR_TENTATIVE {
		return
	}
	if deprecated {
		a.State = ADDR_DEPRECATED
	} else {
		a.State = ADDR_PREFERRED
	}
}

func (o *InterfaceEntry) RemoveAddress(addr netip.Addr) bool {
	for i, a := range o.addrs {
		if a.Addr == addr {
			o.addrs = append(o.addrs[:i], o.addrs[i+1:]...)
			return true
		}
	}
	return false
}

func (o *InterfaceEntry) IsTentative(addr netip.Addr) bool {
	a := o.FindAddr(addr)
	return a != nil && a.State == ADDR_TENTATIVE
}

// HasAddress the address is assigned and usable (not tentative)
func (o *InterfaceEntry) HasAddress(addr netip.Addr) bool {
	a := o.FindAddr(addr)
	return a != nil && a.State != ADDR_TENTATIVE
}

// LinkLocal return the usable link-local address
func (o *InterfaceEntry) LinkLocal() (netip.Addr, bool) {
	for _, a := range o.addrs {
		if a.State != ADDR_TENTATIVE && a.Addr.IsLinkLocalUnicast() {
			return a.Addr, true
		}
	}
	return netip.Addr{}, false
}

// SelectSource pick a source address for dst, link-local for link scope destinations
func (o *InterfaceEntry) SelectSource(dst netip.Addr) (netip.Addr, bool) {
	linkScope := dst.IsLinkLocalUnicast() || dst.IsLinkLocalMulticast() || dst.IsInterfaceLocalMulticast()
	if !linkScope {
		var deprecated netip.Addr
		for _, a := range o.addrs {
			if a.Addr.IsLinkLocalUnicast() {
				continue
			}
			switch a.State {
			case ADDR_PREFERRED:
				return a.Addr, true
			case ADDR_DEPRECATED:
				if !deprecated.IsValid() {
					deprecated = a.Addr
				}
			}
		}
		if deprecated.IsValid() {
			return deprecated, true
		}
	}
	return o.LinkLocal()
}

// IsSolicitedNodeOf return true if group is the solicited-node address of one of the addresses, tentative included
func (o *InterfaceEntry) IsSolicitedNodeOf(group netip.Addr) bool {
	for _, a := range o.addrs {
		if Ipv6SolicitedNode(a.Addr) == group {
			return true
		}
	}
	return false
}

// IfRxHandler get the frames of all the interfaces of a table
type IfRxHandler interface {
	HandleRxFrame(ie *InterfaceEntry, frame []byte)
}

// InterfaceTable the interfaces of one node, ids are stable and start from zero
type InterfaceTable struct {
	ifs    []*InterfaceEntry
	byName map[string]*InterfaceEntry
	rx     IfRxHandler
}

func NewInterfaceTable() *InterfaceTable {
	return &InterfaceTable{byName: make(map[string]*InterfaceEntry)}
}

func (o *InterfaceTable) SetRxHandler(rx IfRxHandler) {
	o.rx = rx
}

// AddInterface add an interface and attach it to the link (nil link for a detached interface)
func (o *InterfaceTable) AddInterface(name string, mac MACKey, link *CLink) (*InterfaceEntry, error) {
	if _, ok := o.byName[name]; ok {
		return nil, fmt.Errorf("interface %s already exists", name)
	}
	ie := &InterfaceEntry{
		Id:       len(o.ifs),
		Name:     name,
		Mac:      mac,
		Mtu:      1500,
		HopLimit: 64,
		table:    o,
	}
	if link != nil {
		ie.port = link.AddPort(mac, ie)
	}
	o.ifs = append(o.ifs, ie)
	o.byName[name] = ie
	return ie, nil
}

// Get return the interface by id, nil if it does not exist
func (o *InterfaceTable) Get(id int) *InterfaceEntry {
	if id < 0 || id >= len(o.ifs) {
		return nil
	}
	return o.ifs[id]
}

func (o *InterfaceTable) GetByName(name string) *InterfaceEntry {
	return o.byName[name]
}

func (o *InterfaceTable) Interfaces() []*InterfaceEntry {
	return o.ifs
}

func (o *InterfaceTable) Len() int {
	return len(o.ifs)
}

// FindByAddress return the interface that owns a usable address
func (o *InterfaceTable) FindByAddress(addr netip.Addr) *InterfaceEntry {
	for _, ie := range o.ifs {
		if ie.HasAddress(addr) {
			return ie
		}
	}
	return nil
}

func (o *InterfaceTable) IsLocalAddress(addr netip.Addr) bool {
	return o.FindByAddress(addr) != nil
}
