// Copyright (c) 2020 Cisco Systems and/or its affiliates.
// Licensed under the Apache License, Version 2.0 (the "License");
// that can be found in the LICENSE file in the root of the source
// tree.

package core

import (
	"time"
)

/* CLink a simulated Ethernet segment

Every port that is attached to the link gets the frames sent by the other ports
after the link latency (at least one tick). Unicast frames are delivered only to the
port with the same mac, multicast and broadcast frames to all the ports that are up.
Frames sent on the same tick are delivered in the order they were sent.
*/

type CLinkStats struct {
	txPkts       uint64
	txBytes      uint64
	rxPkts       uint64
	rxBytes      uint64
	dropFilter   uint64
	dropPortDown uint64
	dropTxDown   uint64
	captureErr   uint64
}

func newLinkStatsDb(o *CLinkStats, name string) *CCounterDb {
	db := NewCCounterDb("link/" + name)
	db.Add(&CCounterRec{
		Counter:  &o.txPkts,
		Name:     "txPkts",
		Help:     "tx frames",
		Unit:     "pkts",
		DumpZero: false,
		Info:     ScINFO})
	db.Add(&CCounterRec{
		Counter:  &o.txBytes,
		Name:     "txBytes",
		Help:     "tx bytes",
		Unit:     "bytes",
		DumpZero: false,
		Info:     ScINFO})
	db.Add(&CCounterRec{
		Counter:  &o.rxPkts,
		Name:     "rxPkts",
		Help:     "frames delivered to ports",
		Unit:     "pkts",
		DumpZero: false,
		Info:     ScINFO})
	db.Add(&CCounterRec{
		Counter:  &o.rxBytes,
		Name:     "rxBytes",
		Help:     "bytes delivered to ports",
		Unit:     "bytes",
		DumpZero: false,
		Info:     ScINFO})
	db.Add(&CCounterRec{
		Counter:  &o.dropFilter,
		Name:     "dropFilter",
		Help:     "frames dropped by the link filter",
		Unit:     "pkts",
		DumpZero: false,
		Info:     ScWARNING})
	db.Add(&CCounterRec{
		Counter:  &o.dropPortDown,
		Name:     "dropPortDown",
		Help:     "frames not delivered, port is down",
		Unit:     "pkts",
		DumpZero: false,
		Info:     ScWARNING})
	db.Add(&CCounterRec{
		Counter:  &o.dropTxDown,
		Name:     "dropTxDown",
		Help:     "send on a port that is down",
		Unit:     "pkts",
		DumpZero: false,
		Info:     ScERROR})
	db.Add(&CCounterRec{
		Counter:  &o.captureErr,
		Name:     "captureErr",
		Help:     "capture write errors",
		Unit:     "pkts",
		DumpZero: false,
		Info:     ScERROR})
	return db
}

// RxHandler get the frames of a port
type RxHandler interface {
	OnRx(port *CLinkPort, frame []byte)
}

// LinkFilter return false to drop the frame before it is delivered
type LinkFilter func(src *CLinkPort, frame []byte) bool

// CLinkPort one attachment point of a link
type CLinkPort struct {
	link *CLink
	Id   int
	Mac  MACKey
	up   bool
	rx   RxHandler
}

func (o *CLinkPort) Link() *CLink {
	return o.link
}

func (o *CLinkPort) IsUp() bool {
	return o.up
}

func (o *CLinkPort) SetUp(up bool) {
	o.up = up
}

// Send queue a frame on the link, fails only when the port is down
func (o *CLinkPort) Send(frame []byte) error {
	if !o.up {
		o.link.stats.dropTxDown++
		return ErrLinkDown
	}
	o.link.send(o, frame)
	return nil
}

type linkFrameEvent struct {
	timer CHTimerObj
	link  *CLink
	src   *CLinkPort
	data  []byte
}

func (o *linkFrameEvent) OnEvent(a, b interface{}) {
	o.link.deliver(o.src, o.data)
}

type CLink struct {
	Name         string
	Latency      time.Duration
	Filter       LinkFilter
	tctx         *TimerCtx
	latencyTicks uint64
	ports        []*CLinkPort
	capture      *CCapture
	stats        CLinkStats
	Cdb          *CCounterDb
}

// NewLink create a link, latency is rounded to ticks and is at least one tick
func NewLink(tctx *TimerCtx, name string, latency time.Duration) *CLink {
	o := new(CLink)
	o.Name = name
	o.Latency = latency
	o.tctx = tctx
	o.latencyTicks = tctx.DurationToTicks(latency)
	if o.latencyTicks == 0 {
		o.latencyTicks = 1
	}
	o.Cdb = newLinkStatsDb(&o.stats, name)
	return o
}

// AddPort attach a new port, the port is up
func (o *CLink) AddPort(mac MACKey, rx RxHandler) *CLinkPort {
	p := &CLinkPort{link: o, Id: len(o.ports), Mac: mac, up: true, rx: rx}
	o.ports = append(o.ports, p)
	return p
}

func (o *CLink) Ports() []*CLinkPort {
	return o.ports
}

// SetCapture write every frame sent on the link to the capture
func (o *CLink) SetCapture(c *CCapture) {
	o.capture = c
}

func (o *CLink) send(src *CLinkPort, frame []byte) {
	if o.Filter != nil && !o.Filter(src, frame) {
		o.stats.dropFilter++
		return
	}
	o.stats.txPkts++
	o.stats.txBytes += uint64(len(frame))

	if o.capture != nil {
		if err := o.capture.Write(o.tctx.Now(), frame); err != nil {
			o.stats.captureErr++
			log.Warningf("link %s capture: %v", o.Name, err)
		}
	}

	ev := &linkFrameEvent{link: o, src: src, data: append([]byte(nil), frame...)}
	ev.timer.SetCB(ev, nil, nil)
	o.tctx.StartTicks(&ev.timer, o.latencyTicks)
}

func (o *CLink) deliver(src *CLinkPort, frame []byte) {
	if len(frame) < 14 {
		return
	}
	var dst MACKey
	copy(dst[:], frame[0:6])
	for _, p := range o.ports {
		if p == src || p.rx == nil {
			continue
		}
		if !dst.IsMulticast() && dst != p.Mac {
			continue
		}
		if !p.up {
			o.stats.dropPortDown++
			continue
		}
		o.stats.rxPkts++
		o.stats.rxBytes += uint64(len(frame))
		p.rx.OnRx(p, append([]byte(nil), frame...))
	}
}
