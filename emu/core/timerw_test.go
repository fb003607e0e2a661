package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type myTest1Stats struct {
	ticks     uint32
	firstTick uint64
	fired     []uint32
}

type myEventTest struct {
	CHTimerObj
	id      uint32
	dTick   uint64
	restart bool
	timerw  *CNATimerWheel
	stats   *myTest1Stats
}

func (o *myEventTest) OnEvent(a, b interface{}) {
	if o.restart {
		o.timerw.Start(&o.CHTimerObj, 2)
	}
	o.stats.ticks++
	o.stats.fired = append(o.stats.fired, o.id)
	if o.stats.firstTick == 0 {
		o.stats.firstTick = o.timerw.Ticks()
	}
}

func newTestWheel(t *testing.T, size uint32) *CNATimerWheel {
	timerw, rc := NewTimerW(size)
	if rc != RC_HTW_OK {
		t.Fatalf("can't init timew %s", rc.String())
	}
	return timerw
}

func TestTimerw1(t *testing.T) {
	timerw := newTestWheel(t, 1024)
	var i, numEvent uint32
	numEvent = 2

	var events = make([]myEventTest, numEvent)
	var globalStats myTest1Stats

	for i = 0; i < numEvent; i++ {
		e := &events[i]
		e.id = i + 1
		e.dTick = uint64(10 + i)
		e.restart = true
		e.timerw = timerw
		e.stats = &globalStats
		e.SetCB(&events[i], nil, nil)
		timerw.Start(&e.CHTimerObj, e.dTick)
	}

	for i = 0; i < 100; i++ {
		timerw.OnTick()
	}
	if globalStats.firstTick != 10 {
		t.Fatalf(" first tick should be 10, got %d", globalStats.firstTick)
	}
	// event 1: 10,12..100 (46) event 2: 11,13..99 (45)
	if globalStats.ticks != 91 {
		t.Fatalf(" expected 91 events, got %d", globalStats.ticks)
	}
	if timerw.ActiveTimers() != 2 {
		t.Fatalf(" expected 2 active timers, got %d", timerw.ActiveTimers())
	}
}

func TestTimerwLongerThanRevolution(t *testing.T) {
	timerw := newTestWheel(t, 16)
	var stats myTest1Stats
	e := &myEventTest{id: 1, timerw: timerw, stats: &stats}
	e.SetCB(e, nil, nil)
	timerw.Start(&e.CHTimerObj, 50)

	for i := 0; i < 49; i++ {
		timerw.OnTick()
	}
	if stats.ticks != 0 {
		t.Fatalf(" timer fired before its tick, at %d", stats.firstTick)
	}
	timerw.OnTick()
	if stats.ticks != 1 || stats.firstTick != 50 {
		t.Fatalf(" timer should fire exactly at 50, %+v", stats)
	}
	if timerw.ActiveTimers() != 0 {
		t.Fatalf(" no timer should be active")
	}
}

func TestTimerwSameTickOrder(t *testing.T) {
	timerw := newTestWheel(t, 8)
	var stats myTest1Stats
	events := make([]myEventTest, 5)
	for i := range events {
		e := &events[i]
		e.id = uint32(i + 1)
		e.timerw = timerw
		e.stats = &stats
		e.SetCB(e, nil, nil)
	}
	// all expire on tick 20, started in a mixed order
	for _, i := range []int{2, 0, 4, 1, 3} {
		timerw.Start(&events[i].CHTimerObj, 20)
	}
	for i := 0; i < 20; i++ {
		timerw.OnTick()
	}
	if diff := cmp.Diff([]uint32{3, 1, 5, 2, 4}, stats.fired); diff != "" {
		t.Fatalf("firing order mismatch (-want +got):\n%s", diff)
	}
}

type stopOtherEvent struct {
	CHTimerObj
	timerw *CNATimerWheel
	other  *CHTimerObj
	fired  *int
}

func (o *stopOtherEvent) OnEvent(a, b interface{}) {
	*o.fired++
	if o.other != nil {
		o.timerw.Stop(o.other)
	}
}

func TestTimerwStopPendingOnSameTick(t *testing.T) {
	timerw := newTestWheel(t, 1024)
	var fired int
	second := &stopOtherEvent{timerw: timerw, fired: &fired}
	first := &stopOtherEvent{timerw: timerw, fired: &fired, other: &second.CHTimerObj}
	first.SetCB(first, nil, nil)
	second.SetCB(second, nil, nil)

	timerw.Start(&first.CHTimerObj, 5)
	timerw.Start(&second.CHTimerObj, 5)
	for i := 0; i < 10; i++ {
		timerw.OnTick()
	}
	if fired != 1 {
		t.Fatalf(" the stopped timer should not fire, fired %d", fired)
	}
	if timerw.ActiveTimers() != 0 {
		t.Fatalf(" active timers %d", timerw.ActiveTimers())
	}
}

func TestTimerwStartRunning(t *testing.T) {
	timerw := newTestWheel(t, 1024)
	var stats myTest1Stats
	e := &myEventTest{id: 1, timerw: timerw, stats: &stats}
	e.SetCB(e, nil, nil)
	if rc := timerw.Start(&e.CHTimerObj, 3); rc != RC_HTW_OK {
		t.Fatalf(" start failed %s", rc.String())
	}
	if rc := timerw.Start(&e.CHTimerObj, 3); rc != RC_HTW_ERR_TIMER_IS_ON {
		t.Fatalf(" expected RC_HTW_ERR_TIMER_IS_ON got %s", rc.String())
	}
	timerw.Stop(&e.CHTimerObj)
	timerw.Stop(&e.CHTimerObj)
	if e.IsRunning() {
		t.Fatalf(" timer should be stopped")
	}
}

func TestTimerwNoLog2(t *testing.T) {
	if _, rc := NewTimerW(1000); rc != RC_HTW_ERR_NO_LOG2 {
		t.Fatalf(" expected RC_HTW_ERR_NO_LOG2 got %s", rc.String())
	}
}

func TestTimerCtxDuration(t *testing.T) {
	tctx := NewTimerCtx(0)
	if tctx.TickDuration != DefaultTimerTick {
		t.Fatalf(" default tick %v", tctx.TickDuration)
	}
	if v := tctx.DurationToTicks(DefaultTimerTick / 2); v != 1 {
		t.Fatalf(" a non zero duration should be at least one tick, got %d", v)
	}
	if v := tctx.DurationToTicks(0); v != 0 {
		t.Fatalf(" zero duration %d", v)
	}

	var stats myTest1Stats
	e := &myEventTest{id: 1, timerw: tctx.timerw, stats: &stats}
	e.SetCB(e, nil, nil)
	tctx.Start(&e.CHTimerObj, 100*DefaultTimerTick)
	for i := 0; i < 40; i++ {
		tctx.HandleTicks()
	}
	if r := tctx.Remaining(&e.CHTimerObj); r != 60*DefaultTimerTick {
		t.Fatalf(" remaining %v", r)
	}
	tctx.Restart(&e.CHTimerObj, 10*DefaultTimerTick)
	for i := 0; i < 10; i++ {
		tctx.HandleTicks()
	}
	if stats.ticks != 1 || stats.firstTick != 50 {
		t.Fatalf(" restart failed %+v", stats)
	}
	if tctx.Now() != 50*DefaultTimerTick {
		t.Fatalf(" now %v", tctx.Now())
	}
	if tctx.Cdb.Val("ticks") != 50 {
		t.Fatalf(" ticks counter %d", tctx.Cdb.Val("ticks"))
	}
}
