// Copyright (c) 2020 Cisco Systems and/or its affiliates.
// Licensed under the Apache License, Version 2.0 (the "License");
// that can be found in the LICENSE file in the root of the source
// tree.

package core

import (
	"fmt"
)

/* CNodeCtx one simulated node (host or router)

A node owns its interface table, its ipv6 routing table and its plugins.
The network layer plugin registers itself as the rx handler of the interface table.
*/

type CNodeStats struct {
	rxFrames    uint64
	rxNoHandler uint64
	ifUp        uint64
	ifDown      uint64
}

func newNodeStatsDb(o *CNodeStats) *CCounterDb {
	db := NewCCounterDb("node")
	db.Add(&CCounterRec{
		Counter:  &o.rxFrames,
		Name:     "rxFrames",
		Help:     "frames received on all the interfaces",
		Unit:     "pkts",
		DumpZero: false,
		Info:     ScINFO})
	db.Add(&CCounterRec{
		Counter:  &o.rxNoHandler,
		Name:     "rxNoHandler",
		Help:     "frames dropped, no network layer",
		Unit:     "pkts",
		DumpZero: false,
		Info:     ScERROR})
	db.Add(&CCounterRec{
		Counter:  &o.ifUp,
		Name:     "ifUp",
		Help:     "interface up events",
		Unit:     "ops",
		DumpZero: false,
		Info:     ScINFO})
	db.Add(&CCounterRec{
		Counter:  &o.ifDown,
		Name:     "ifDown",
		Help:     "interface down events",
		Unit:     "ops",
		DumpZero: false,
		Info:     ScINFO})
	return db
}

type CNodeCtx struct {
	Name      string
	Sim       *CSimCtx
	IsRouter  bool
	Ift       *InterfaceTable
	Rt6       *RoutingTable6
	PluginCtx *PluginCtx
	Cdbv      *CCounterDbVec
	rx        IfRxHandler
	stats     CNodeStats
}

// NewNodeCtx create a node, use CSimCtx.AddNode to add it to a simulation
func NewNodeCtx(sim *CSimCtx, name string, isRouter bool) *CNodeCtx {
	o := new(CNodeCtx)
	o.Name = name
	o.Sim = sim
	o.IsRouter = isRouter
	o.Ift = NewInterfaceTable()
	o.Ift.SetRxHandler(o)
	o.Rt6 = NewRoutingTable6()
	o.PluginCtx = NewPluginCtx(o)
	o.Cdbv = NewCCounterDbVec(name)
	o.Cdbv.Add(newNodeStatsDb(&o.stats))
	o.Cdbv.Add(o.Rt6.Cdb)
	return o
}

// SetRxHandler set the network layer of the node
func (o *CNodeCtx) SetRxHandler(rx IfRxHandler) {
	o.rx = rx
}

func (o *CNodeCtx) HandleRxFrame(ie *InterfaceEntry, frame []byte) {
	o.stats.rxFrames++
	if o.rx == nil {
		o.stats.rxNoHandler++
		return
	}
	o.rx.HandleRxFrame(ie, frame)
}

// AddInterface add an interface attached to the link
func (o *CNodeCtx) AddInterface(name string, mac MACKey, link *CLink) (*InterfaceEntry, error) {
	ie, err := o.Ift.AddInterface(name, mac, link)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", o.Name, err)
	}
	return ie, nil
}

// SetInterfaceUp change the state of the interface and notify the plugins
func (o *CNodeCtx) SetInterfaceUp(ifId int, up bool) error {
	ie := o.Ift.Get(ifId)
	if ie == nil {
		return ErrNoInterface
	}
	if ie.IsUp() == up {
		return nil
	}
	ie.SetUp(up)
	if up {
		o.stats.ifUp++
		o.PluginCtx.BroadcastMsg(nil, MSG_IF_UP, ie, nil)
	} else {
		o.stats.ifDown++
		o.PluginCtx.BroadcastMsg(nil, MSG_IF_DOWN, ie, nil)
	}
	return nil
}

// Start notify the plugins that all the interfaces that are up are active
func (o *CNodeCtx) Start() {
	for _, ie := range o.Ift.Interfaces() {
		if ie.IsUp() {
			o.PluginCtx.BroadcastMsg(nil, MSG_IF_UP, ie, nil)
		}
	}
}

func (o *CNodeCtx) OnRemove() {
	o.PluginCtx.OnRemove()
}

func (o *CNodeCtx) GetTimerCtx() *TimerCtx {
	return o.Sim.GetTimerCtx()
}
