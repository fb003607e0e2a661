// Copyright (c) 2020 Cisco Systems and/or its affiliates.
// Licensed under the Apache License, Version 2.0 (the "License");
// that can be found in the LICENSE file in the root of the source
// tree.

package topo

import (
	"fmt"
	"net/netip"
	"time"

	"ndsim/emu/core"
	"ndsim/emu/plugins/ipv6"
)

type trafficStats struct {
	txPing    uint64
	txUdp     uint64
	txErr     uint64
	rxDeliver uint64
}

func newTrafficStatsDb(o *trafficStats) *core.CCounterDb {
	db := core.NewCCounterDb("traffic")
	db.Add(&core.CCounterRec{
		Counter:  &o.txPing,
		Name:     "txPing",
		Help:     "echo requests sent",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.txUdp,
		Name:     "txUdp",
		Help:     "udp datagrams sent",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	db.Add(&core.CCounterRec{
		Counter:  &o.txErr,
		Name:     "txErr",
		Help:     "send failed, no route or no source",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScERROR})
	db.Add(&core.CCounterRec{
		Counter:  &o.rxDeliver,
		Name:     "rxDeliver",
		Help:     "datagrams delivered to the nodes",
		Unit:     "pkts",
		DumpZero: false,
		Info:     core.ScINFO})
	return db
}

// trafficJob one traffic entry, the timer fires once per packet
type trafficJob struct {
	topo     *Topology
	node     *ipv6.PluginIpv6Node
	dst      netip.Addr
	ifHint   int
	udp      bool
	port     uint16
	data     []byte
	left     uint32
	seq      uint16
	interval time.Duration
	timer    core.CHTimerObj
}

func (o *trafficJob) OnEvent(a, b interface{}) {
	o.send()
	o.left--
	if o.left > 0 {
		o.topo.tctx.Start(&o.timer, o.interval)
	}
}

func (o *trafficJob) send() {
	o.seq++
	stats := &o.topo.stats
	var err error
	if o.udp {
		var src netip.Addr
		src, err = o.node.SourceFor(o.dst, o.ifHint)
		if err == nil {
			var d *ipv6.Datagram
			d, err = ipv6.NewUdpDatagram(src, o.dst, 1024+o.seq, o.port, o.data)
			if err == nil {
				err = o.node.Output(d, o.ifHint)
			}
		}
		if err == nil {
			stats.txUdp++
		}
	} else {
		err = o.node.SendPing(o.dst, o.ifHint, 1, o.seq, o.data)
		if err == nil {
			stats.txPing++
		}
	}
	if err != nil {
		stats.txErr++
		log.Warningf("%s: send to %s: %v", o.node.Node.Name, o.dst, err)
	}
}

// Topology a simulation built from a topology file
type Topology struct {
	Sim   *core.CSimCtx
	tctx  *core.TimerCtx
	jobs  []*trafficJob
	stats trafficStats
}

// Build create the links, the nodes with their ipv6 plugin, and the traffic. Static
// addresses are tentative and go through DAD when the simulation starts.
func Build(t *TopoYaml) (*Topology, error) {
	tick := core.DefaultTimerTick
	if t.TickMs != 0 {
		tick = time.Duration(t.TickMs) * time.Millisecond
	}
	o := new(Topology)
	o.Sim = core.NewSimCtx(tick, t.Seed)
	o.tctx = o.Sim.GetTimerCtx()
	o.Sim.Cdbv.Add(newTrafficStatsDb(&o.stats))

	for _, l := range t.Links {
		if _, err := o.Sim.AddLink(l.Name, time.Duration(l.LatencyMs)*time.Millisecond); err != nil {
			return nil, err
		}
	}
	for i := range t.Nodes {
		if err := o.addNode(&t.Nodes[i]); err != nil {
			return nil, fmt.Errorf("node %s: %w", t.Nodes[i].Name, err)
		}
	}
	for i := range t.Traffic {
		if err := o.addTraffic(&t.Traffic[i]); err != nil {
			return nil, fmt.Errorf("traffic %d: %w", i, err)
		}
	}
	log.Infof("topology: %d links %d nodes %d traffic", len(t.Links), len(t.Nodes), len(o.jobs))
	return o, nil
}

func (o *Topology) addNode(n *NodeYaml) error {
	node, err := o.Sim.AddNode(n.Name, n.Router)
	if err != nil {
		return err
	}
	for _, iy := range n.Interfaces {
		link := o.Sim.GetLink(iy.Link)
		if link == nil {
			return fmt.Errorf("interface %s: no link %s", iy.Name, iy.Link)
		}
		mac, err := core.ParseMACKey(iy.Mac)
		if err != nil {
			return err
		}
		ie, err := node.AddInterface(iy.Name, mac, link)
		if err != nil {
			return err
		}
		for _, a := range iy.Addresses {
			p, err := netip.ParsePrefix(a)
			if err != nil {
				return err
			}
			if !ie.AssignTentative(p.Addr(), p.Bits(), false) {
				return fmt.Errorf("interface %s: address %s assigned twice", iy.Name, a)
			}
			if !p.Addr().IsLinkLocalUnicast() {
				node.Rt6.AddRoute(core.Route6{Prefix: p.Masked(), IfId: ie.Id, Source: core.ROUTE_STATIC})
			}
		}
	}
	for _, r := range n.Routes {
		ie := node.Ift.GetByName(r.If)
		if ie == nil {
			return fmt.Errorf("route %s: no interface %s", r.Prefix, r.If)
		}
		route := core.Route6{Prefix: netip.MustParsePrefix(r.Prefix).Masked(), IfId: ie.Id, Source: core.ROUTE_STATIC}
		if r.Via != "" {
			route.NextHop = netip.MustParseAddr(r.Via)
		}
		node.Rt6.AddRoute(route)
	}

	initJson, err := n.NdJson()
	if err != nil {
		return err
	}
	if err := node.PluginCtx.AddPlugin(ipv6.IPV6_PLUG, initJson); err != nil {
		return err
	}
	ipv6.GetIpv6Node(node).Deliver = func(ifId int, d *ipv6.Datagram) {
		o.stats.rxDeliver++
	}
	return nil
}

func (o *Topology) addTraffic(ty *TrafficYaml) error {
	node := o.Sim.GetNode(ty.From)
	if node == nil {
		return fmt.Errorf("no node %s", ty.From)
	}
	job := &trafficJob{
		topo:     o,
		node:     ipv6.GetIpv6Node(node),
		dst:      netip.MustParseAddr(ty.To),
		ifHint:   -1,
		udp:      ty.Kind == "udp",
		port:     ty.Port,
		data:     make([]byte, ty.Size),
		left:     ty.Count,
		interval: time.Duration(ty.IntervalMs) * time.Millisecond,
	}
	if ty.If != "" {
		ie := node.Ift.GetByName(ty.If)
		if ie == nil {
			return fmt.Errorf("no interface %s", ty.If)
		}
		job.ifHint = ie.Id
	}
	if job.left == 0 {
		job.left = 1
	}
	if job.udp && job.port == 0 {
		job.port = 9
	}
	job.timer.SetCB(job, nil, nil)
	o.jobs = append(o.jobs, job)
	return nil
}

// Start the nodes and schedule the traffic, at_ms counts from now
func (o *Topology) Start(at []time.Duration) {
	o.Sim.Start()
	for i, job := range o.jobs {
		o.tctx.Start(&job.timer, at[i])
	}
}

// Run start the simulation and run it for duration
func (o *Topology) Run(t *TopoYaml, duration time.Duration) {
	at := make([]time.Duration, len(t.Traffic))
	for i, ty := range t.Traffic {
		at[i] = time.Duration(ty.AtMs) * time.Millisecond
	}
	o.Start(at)
	o.Sim.MainLoopSim(duration)
}

// Stop remove the plugins, advertising routers send their final advertisement
func (o *Topology) Stop() {
	for _, job := range o.jobs {
		o.tctx.Stop(&job.timer)
	}
	o.Sim.Stop()
}

// Node the ipv6 plugin of a node, nil if there is no such node
func (o *Topology) Node(name string) *ipv6.PluginIpv6Node {
	node := o.Sim.GetNode(name)
	if node == nil {
		return nil
	}
	return ipv6.GetIpv6Node(node)
}
