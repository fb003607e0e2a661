package core

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/gaissmai/bart"
)

type RouteSource uint8

const (
	ROUTE_STATIC  RouteSource = 1
	ROUTE_ONLINK  RouteSource = 2 // on-link prefix learned from a router advertisement
	ROUTE_DEFAULT RouteSource = 3 // default route via the selected default router
)

func (o RouteSource) String() string {
	switch o {
	case ROUTE_STATIC:
		return "static"
	case ROUTE_ONLINK:
		return "onlink"
	case ROUTE_DEFAULT:
		return "default"
	default:
		return "unknown"
	}
}

var defaultPrefix6 = netip.MustParsePrefix("::/0")

// Route6 one ipv6 route, an invalid NextHop means the prefix is on-link
type Route6 struct {
	Prefix  netip.Prefix
	NextHop netip.Addr
	IfId    int
	Source  RouteSource
}

func (o Route6) String() string {
	nh := "onlink"
	if o.NextHop.IsValid() {
		nh = o.NextHop.String()
	}
	return fmt.Sprintf("%s via %s if %d (%s)", o.Prefix, nh, o.IfId, o.Source)
}

func (o Route6) IsOnLink() bool {
	return !o.NextHop.IsValid()
}

type RoutingTable6Stats struct {
	add    uint64
	remove uint64
	active uint64
}

// RoutingTable6 longest prefix match table, one route per prefix
type RoutingTable6 struct {
	tbl    *bart.Table[*Route6]
	routes map[netip.Prefix]*Route6
	stats  RoutingTable6Stats
	Cdb    *CCounterDb
}

func NewRoutingTable6() *RoutingTable6 {
	o := new(RoutingTable6)
	o.tbl = new(bart.Table[*Route6])
	o.routes = make(map[netip.Prefix]*Route6)
	o.Cdb = NewCCounterDb("rt6")
	o.Cdb.Add(&CCounterRec{
		Counter:  &o.stats.add,
		Name:     "add",
		Help:     "routes added or replaced",
		Unit:     "ops",
		DumpZero: false,
		Info:     ScINFO})
	o.Cdb.Add(&CCounterRec{
		Counter:  &o.stats.remove,
		Name:     "remove",
		Help:     "routes removed",
		Unit:     "ops",
		DumpZero: false,
		Info:     ScINFO})
	o.Cdb.Add(&CCounterRec{
		Counter:  &o.stats.active,
		Name:     "active",
		Help:     "routes in the table",
		Unit:     "routes",
		DumpZero: false,
		Info:     ScINFO})
	return o
}

// AddRoute add or replace the route of the prefix
func (o *RoutingTable6) AddRoute(r Route6) {
	r.Prefix = r.Prefix.Masked()
	nr := r
	if _, ok := o.routes[r.Prefix]; !ok {
		o.stats.active++
	}
	o.routes[r.Prefix] = &nr
	o.tbl.Insert(r.Prefix, &nr)
	o.stats.add++
}

// AddRouteNoReplace add the route unless the prefix has a route of another source, false if it was not added
func (o *RoutingTable6) AddRouteNoReplace(r Route6) bool {
	if cur, ok := o.routes[r.Prefix.Masked()]; ok && cur.Source != r.Source {
		return false
	}
	o.AddRoute(r)
	return true
}

func (o *RoutingTable6) RemoveRoute(prefix netip.Prefix) bool {
	prefix = prefix.Masked()
	if _, ok := o.routes[prefix]; !ok {
		return false
	}
	delete(o.routes, prefix)
	o.tbl.Delete(prefix)
	o.stats.remove++
	o.stats.active--
	return true
}

// Get return the route of an exact prefix
func (o *RoutingTable6) Get(prefix netip.Prefix) (Route6, bool) {
	r, ok := o.routes[prefix.Masked()]
	if !ok {
		return Route6{}, false
	}
	return *r, true
}

// Lookup longest prefix match
func (o *RoutingTable6) Lookup(dst netip.Addr) (Route6, bool) {
	r, ok := o.tbl.Lookup(dst)
	if !ok || r == nil {
		return Route6{}, false
	}
	return *r, true
}

// RemoveRoutesVia retract every route that uses the next hop on the interface, return the number of routes removed
func (o *RoutingTable6) RemoveRoutesVia(nextHop netip.Addr, ifId int) int {
	var l []netip.Prefix
	for p, r := range o.routes {
		if r.NextHop == nextHop && r.IfId == ifId {
			l = append(l, p)
		}
	}
	for _, p := range l {
		o.RemoveRoute(p)
	}
	return len(l)
}

// RemoveRoutesOfIf remove all the routes of an interface with the given source
func (o *RoutingTable6) RemoveRoutesOfIf(ifId int, source RouteSource) int {
	var l []netip.Prefix
	for p, r := range o.routes {
		if r.IfId == ifId && r.Source == source {
			l = append(l, p)
		}
	}
	for _, p := range l {
		o.RemoveRoute(p)
	}
	return len(l)
}

func (o *RoutingTable6) SetDefaultRoute(nextHop netip.Addr, ifId int) {
	o.AddRoute(Route6{Prefix: defaultPrefix6, NextHop: nextHop, IfId: ifId, Source: ROUTE_DEFAULT})
}

func (o *RoutingTable6) DefaultRoute() (Route6, bool) {
	return o.Get(defaultPrefix6)
}

// RemoveDefaultRoute remove ::/0 only if it was installed by router discovery
func (o *RoutingTable6) RemoveDefaultRoute() bool {
	r, ok := o.routes[defaultPrefix6]
	if !ok || r.Source != ROUTE_DEFAULT {
		return false
	}
	return o.RemoveRoute(defaultPrefix6)
}

// Routes return a copy of the table sorted by prefix
func (o *RoutingTable6) Routes() []Route6 {
	r := make([]Route6, 0, len(o.routes))
	for _, v := range o.routes {
		r = append(r, *v)
	}
	sort.Slice(r, func(i, j int) bool {
		if r[i].Prefix.Addr() != r[j].Prefix.Addr() {
			return r[i].Prefix.Addr().Less(r[j].Prefix.Addr())
		}
		return r[i].Prefix.Bits() < r[j].Prefix.Bits()
	})
	return r
}

func (o *RoutingTable6) Len() int {
	return len(o.routes)
}
