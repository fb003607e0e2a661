// Copyright (c) 2020 Cisco Systems and/or its affiliates.
// Licensed under the Apache License, Version 2.0 (the "License");
// that can be found in the LICENSE file in the root of the source
// tree.

package core

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-playground/validator"
	"github.com/intel-go/fastjson"
)

/* CSimCtx simulation context includes
   1. the nodes and the links of the topology
   2. instance of timerw for schedule events, the only clock of the simulation
   3. the random source, seeded so a run can be reproduced

Everything runs in the goroutine that calls MainLoopSim.
*/

type CSimCtxStats struct {
	addNode uint64
	addLink uint64
}

type CSimCtx struct {
	timerctx *TimerCtx
	Rand     *rand.Rand
	Seed     int64
	links    []*CLink
	mapLinks map[string]*CLink
	nodes    []*CNodeCtx
	mapNodes map[string]*CNodeCtx
	stats    CSimCtxStats
	validate *validator.Validate
	Cdbv     *CCounterDbVec
}

func NewSimCtx(tick time.Duration, seed int64) *CSimCtx {
	o := new(CSimCtx)
	o.timerctx = NewTimerCtx(tick)
	o.Seed = seed
	o.Rand = rand.New(rand.NewSource(seed))
	o.mapLinks = make(map[string]*CLink)
	o.mapNodes = make(map[string]*CNodeCtx)
	o.validate = validator.New()
	o.Cdbv = NewCCounterDbVec("sim")
	o.Cdbv.Add(o.timerctx.Cdb)

	db := NewCCounterDb("sim")
	db.Add(&CCounterRec{
		Counter:  &o.stats.addNode,
		Name:     "addNode",
		Help:     "nodes added",
		Unit:     "ops",
		DumpZero: false,
		Info:     ScINFO})
	db.Add(&CCounterRec{
		Counter:  &o.stats.addLink,
		Name:     "addLink",
		Help:     "links added",
		Unit:     "ops",
		DumpZero: false,
		Info:     ScINFO})
	o.Cdbv.Add(db)
	return o
}

// MainLoopSim advance the simulated clock by duration, all the events up to this time are handled
func (o *CSimCtx) MainLoopSim(duration time.Duration) {
	maxticks := o.timerctx.DurationToTicks(duration)
	for tick := uint64(0); tick < maxticks; tick++ {
		o.timerctx.HandleTicks()
	}
}

func (o *CSimCtx) GetTimerCtx() *TimerCtx {
	return o.timerctx
}

// Now the simulated time
func (o *CSimCtx) Now() time.Duration {
	return o.timerctx.Now()
}

// RandDuration uniform random duration in [0,max]
func (o *CSimCtx) RandDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(o.Rand.Int63n(int64(max) + 1))
}

// RandRange uniform random duration in [min,max]
func (o *CSimCtx) RandRange(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + o.RandDuration(max-min)
}

func (o *CSimCtx) UnmarshalValidate(data []byte, v interface{}) error {
	err := fastjson.Unmarshal(data, v)
	if err != nil {
		return err
	}
	err = o.validate.Struct(v)
	if err != nil {
		return err
	}
	return nil
}

// Validate run the struct validation only
func (o *CSimCtx) Validate(v interface{}) error {
	return o.validate.Struct(v)
}

func (o *CSimCtx) AddLink(name string, latency time.Duration) (*CLink, error) {
	if _, ok := o.mapLinks[name]; ok {
		return nil, fmt.Errorf("link %s already exists", name)
	}
	l := NewLink(o.timerctx, name, latency)
	o.links = append(o.links, l)
	o.mapLinks[name] = l
	o.stats.addLink++
	return l, nil
}

func (o *CSimCtx) GetLink(name string) *CLink {
	return o.mapLinks[name]
}

func (o *CSimCtx) Links() []*CLink {
	return o.links
}

func (o *CSimCtx) AddNode(name string, isRouter bool) (*CNodeCtx, error) {
	if _, ok := o.mapNodes[name]; ok {
		return nil, fmt.Errorf("node %s already exists", name)
	}
	n := NewNodeCtx(o, name, isRouter)
	o.nodes = append(o.nodes, n)
	o.mapNodes[name] = n
	o.stats.addNode++
	return n, nil
}

func (o *CSimCtx) GetNode(name string) *CNodeCtx {
	return o.mapNodes[name]
}

func (o *CSimCtx) Nodes() []*CNodeCtx {
	return o.nodes
}

// Start the nodes, in the order they were added
func (o *CSimCtx) Start() {
	for _, n := range o.nodes {
		n.Start()
	}
}

// Stop remove the plugins of all the nodes, pending timers of the plugins are stopped
func (o *CSimCtx) Stop() {
	for _, n := range o.nodes {
		n.OnRemove()
	}
}

// MarshalValues the counters of the simulation, the links and the nodes
func (o *CSimCtx) MarshalValues(zero bool) map[string]interface{} {
	m := make(map[string]interface{})
	if r := o.Cdbv.MarshalValues(zero); len(r) > 0 {
		m["sim"] = r
	}
	for _, l := range o.links {
		if r := l.Cdb.MarshalValues(zero); len(r) > 0 {
			m[l.Cdb.Name] = r
		}
	}
	for _, n := range o.nodes {
		if r := n.Cdbv.MarshalValues(zero); len(r) > 0 {
			m["node/"+n.Name] = r
		}
	}
	return m
}

// MarshalIndent the counters as json text, keys are sorted
func (o *CSimCtx) MarshalIndent(zero bool) string {
	res, _ := json.MarshalIndent(o.MarshalValues(zero), "", "  ")
	return string(res)
}
