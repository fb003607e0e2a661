// Copyright (c) 2020 Cisco Systems and/or its affiliates.
// Licensed under the Apache License, Version 2.0 (the "License");
// that can be found in the LICENSE file in the root of the source
// tree.

package core

import (
	"time"
)

/* timer context there is one per simulation
   the clock is the number of ticks, it moves only when the main loop calls HandleTicks
*/

/* ticks */
const (
	DefaultTimerTick = 10 * time.Millisecond
	eTIMERW_BUCKETS  = 1024
)

type TimerCtx struct {
	TickDuration time.Duration // the duration of the tick
	timerw       *CNATimerWheel
	Ticks        uint64
	Cdb          *CCounterDb
}

// NewTimerCtx create a context, tick is the simulated duration of one tick
func NewTimerCtx(tick time.Duration) *TimerCtx {
	o := new(TimerCtx)
	if tick <= 0 {
		tick = DefaultTimerTick
	}
	o.TickDuration = tick
	timerw, rc := NewTimerW(eTIMERW_BUCKETS)
	if rc != RC_HTW_OK {
		panic("can't init timew " + rc.String())
	}
	o.timerw = timerw
	o.Cdb = NewCCounterDb("timerw")
	o.Cdb.Add(&CCounterRec{
		Counter:  &o.timerw.activeTimers,
		Name:     "activeTimer",
		Help:     "active timers",
		Unit:     "timers",
		DumpZero: false,
		Info:     ScINFO})
	o.Cdb.Add(&CCounterRec{
		Counter:  &o.Ticks,
		Name:     "ticks",
		Help:     "ticks",
		Unit:     "ops",
		DumpZero: false,
		Info:     ScINFO})

	return o
}

func (o *TimerCtx) ActiveTimers() uint64 {
	return o.timerw.ActiveTimers()
}

func (o *TimerCtx) IsRunning(tmr *CHTimerObj) bool {
	return tmr.IsRunning()
}

// Stop the timer, make sure it is not running
func (o *TimerCtx) Stop(tmr *CHTimerObj) {
	o.timerw.Stop(tmr)
}

// Now return the simulated time since the start
func (o *TimerCtx) Now() time.Duration {
	return time.Duration(o.Ticks) * o.TickDuration
}

// DurationToTicks convert to ticks, a non zero duration is at least one tick
func (o *TimerCtx) DurationToTicks(duration time.Duration) uint64 {
	if duration <= 0 {
		return 0
	}
	ticks := uint64(duration / o.TickDuration)
	if ticks == 0 {
		ticks = 1
	}
	return ticks
}

// TicksToDuration the reverse of DurationToTicks
func (o *TimerCtx) TicksToDuration(ticks uint64) time.Duration {
	return time.Duration(ticks) * o.TickDuration
}

// StartTicks start the timer using ticks instead of time
func (o *TimerCtx) StartTicks(tmr *CHTimerObj, ticks uint64) {
	if rc := o.timerw.Start(tmr, ticks); rc != RC_HTW_OK {
		panic("StartTicks " + rc.String())
	}
}

// Start timer by duration
func (o *TimerCtx) Start(tmr *CHTimerObj, duration time.Duration) {
	o.StartTicks(tmr, o.DurationToTicks(duration))
}

// Restart stop the timer in case it is running and start it again
func (o *TimerCtx) Restart(tmr *CHTimerObj, duration time.Duration) {
	o.timerw.Stop(tmr)
	o.Start(tmr, duration)
}

// Remaining the time left until the timer expires, zero if it is not running
func (o *TimerCtx) Remaining(tmr *CHTimerObj) time.Duration {
	if !tmr.IsRunning() {
		return 0
	}
	return o.TicksToDuration(tmr.Expire() - o.Ticks)
}

// HandleTicks should be called only by main loop
func (o *TimerCtx) HandleTicks() {
	o.Ticks++
	o.timerw.OnTick()
}
