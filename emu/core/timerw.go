// Copyright (c) 2020 Cisco Systems and/or its affiliates.
// Licensed under the Apache License, Version 2.0 (the "License");
// that can be found in the LICENSE file in the root of the source
// tree.

package core

/* CNATimerWheel

Hashed timer wheel with an absolute expiration tick per timer object.
A timer that is further than one revolution away stays in its bucket and is
skipped until its tick arrives, so every event fires on exactly the tick it
was scheduled for (the simulation depends on this).

tw, rc := NewTimerW(1024)

tw.Start(tmr, ticks)
tw.Stop(tmr)
tw.OnTick() // should be called every tick

Events expiring on the same tick are called in the order they were started.
A callback may start or stop any timer, including timers that expire on the
current tick and were not called yet.
*/

const (
	RC_HTW_OK               = 0
	RC_HTW_ERR_NO_RESOURCES = -1
	RC_HTW_ERR_TIMER_IS_ON  = -2
	RC_HTW_ERR_NO_LOG2      = -3
)

type RCtw int

//convert errn to string
func (o RCtw) String() string {

	switch o {
	case RC_HTW_OK:
		return "RC_HTW_OK"
	case RC_HTW_ERR_NO_RESOURCES:
		return "RC_HTW_ERR_NO_RESOURCES"
	case RC_HTW_ERR_TIMER_IS_ON:
		return "RC_HTW_ERR_TIMER_IS_ON"
	case RC_HTW_ERR_NO_LOG2:
		return "RC_HTW_ERR_NO_LOG2"
	default:
		return "Unknown RC_HTW_ERR"
	}
}

// CHTimerOnEvent callback interface
type CHTimerOnEvent interface {
	OnEvent(a, b interface{})
}

// CHTimerObj timer object, should be embedded inside the object that owns it
type CHTimerObj struct {
	next   *CHTimerObj
	prev   *CHTimerObj
	list   *cHTimerList
	expire uint64
	cb     CHTimerOnEvent // callback interface
	cbA    interface{}    // callback A args
	cbB    interface{}    // callback B args
}

func (o *CHTimerObj) SetCB(cb CHTimerOnEvent, a interface{}, b interface{}) {
	o.cb = cb
	o.cbA = a
	o.cbB = b
}

func (o *CHTimerObj) call() {
	o.cb.OnEvent(o.cbA, o.cbB)
}

// IsRunning return true if the timer is armed (or is about to be called on this tick)
func (o *CHTimerObj) IsRunning() bool {
	return o.next != nil
}

// Expire return the absolute tick of the timer, valid only while running
func (o *CHTimerObj) Expire() uint64 {
	return o.expire
}

func (o *CHTimerObj) detach() {
	if o.next == nil {
		panic(" next can't zero ")
	}
	o.prev.next = o.next
	o.next.prev = o.prev
	o.next = nil
	o.prev = nil
	o.list.count--
	o.list = nil
}

// cHTimerList list with a sentinel
type cHTimerList struct {
	head  CHTimerObj
	count uint32
}

func (o *cHTimerList) init() {
	o.head.next = &o.head
	o.head.prev = &o.head
	o.count = 0
}

func (o *cHTimerList) isEmpty() bool {
	return o.head.next == &o.head
}

func (o *cHTimerList) append(tmr *CHTimerObj) {
	tmr.next = &o.head
	tmr.prev = o.head.prev
	o.head.prev.next = tmr
	o.head.prev = tmr
	tmr.list = o
	o.count++
}

func (o *cHTimerList) popFirst() *CHTimerObj {
	if o.isEmpty() {
		return nil
	}
	first := o.head.next
	first.detach()
	return first
}

func utlIslog2(num uint32) bool {
	return num != 0 && (num&(num-1)) == 0
}

// CNATimerWheel struct
type CNATimerWheel struct {
	buckets      []cHTimerList
	wheelMask    uint64
	ticks        uint64
	activeTimers uint64
	firing       cHTimerList // expired on the current tick and waiting to be called
}

// NewTimerW create a new TW with number of buckets (should be log2)
func NewTimerW(size uint32) (*CNATimerWheel, RCtw) {
	o := new(CNATimerWheel)
	if !utlIslog2(size) {
		return nil, RC_HTW_ERR_NO_LOG2
	}
	o.buckets = make([]cHTimerList, size)
	for i := range o.buckets {
		o.buckets[i].init()
	}
	o.wheelMask = uint64(size - 1)
	o.firing.init()
	return o, RC_HTW_OK
}

// Ticks return the current tick
func (o *CNATimerWheel) Ticks() uint64 {
	return o.ticks
}

// ActiveTimers number of armed timers
func (o *CNATimerWheel) ActiveTimers() uint64 {
	return o.activeTimers
}

// Start schedule a timer event, ticks from now. zero is treated as the next tick
func (o *CNATimerWheel) Start(tmr *CHTimerObj, ticks uint64) RCtw {
	if tmr.IsRunning() {
		return RC_HTW_ERR_TIMER_IS_ON
	}
	if ticks == 0 {
		ticks = 1
	}
	tmr.expire = o.ticks + ticks
	o.buckets[tmr.expire&o.wheelMask].append(tmr)
	o.activeTimers++
	return RC_HTW_OK
}

// Stop the timer, it is safe to call it on a stopped timer
func (o *CNATimerWheel) Stop(tmr *CHTimerObj) {
	if tmr.IsRunning() {
		tmr.detach()
		o.activeTimers--
	}
}

// OnTick advance the wheel by one tick and call all the expired events
func (o *CNATimerWheel) OnTick() {
	o.ticks++
	b := &o.buckets[o.ticks&o.wheelMask]

	for t := b.head.next; t != &b.head; {
		n := t.next
		if t.expire == o.ticks {
			t.detach()
			o.firing.append(t)
		}
		t = n
	}

	for {
		event := o.firing.popFirst()
		if event == nil {
			break
		}
		o.activeTimers--
		event.call()
	}
}
