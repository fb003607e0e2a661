package core

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type testCounters struct {
	rx   uint64
	tx   uint64
	drop uint32
}

func newTestCounterDb(name string, s *testCounters) *CCounterDb {
	db := NewCCounterDb(name)
	db.Add(&CCounterRec{
		Counter:  &s.rx,
		Name:     "rx",
		Help:     "rx packets",
		Unit:     "pkts",
		DumpZero: false,
		Info:     ScINFO})
	db.Add(&CCounterRec{
		Counter:  &s.tx,
		Name:     "tx",
		Help:     "tx packets",
		Unit:     "pkts",
		DumpZero: true,
		Info:     ScINFO})
	db.Add(&CCounterRec{
		Counter:  &s.drop,
		Name:     "drop",
		Help:     "drop packets",
		Unit:     "pkts",
		DumpZero: false,
		Info:     ScERROR})
	return db
}

func TestCounters1(t *testing.T) {
	var s testCounters
	db := newTestCounterDb("c1", &s)
	s.rx = 17
	s.drop = 2

	if db.Val("rx") != 17 || db.Val("drop") != 2 || db.Val("tx") != 0 {
		t.Fatalf(" bad values %v", db.Snapshot())
	}
	if db.Val("no-such") != 0 {
		t.Fatalf(" unknown counter should be zero")
	}

	want := map[string]uint64{"rx": 17, "drop": 2}
	if diff := cmp.Diff(want, db.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	// tx is dump zero
	m := db.MarshalValues(false)
	if _, ok := m["tx"]; !ok {
		t.Fatalf(" tx should be marshaled even when zero")
	}

	db.ClearValues()
	if s.rx != 0 || s.drop != 0 {
		t.Fatalf(" clear failed %+v", s)
	}
}

func TestCountersVec(t *testing.T) {
	var s1, s2 testCounters
	vec := NewCCounterDbVec("vec")
	vec.Add(newTestCounterDb("a", &s1))
	vec.Add(newTestCounterDb("b", &s2))
	s1.rx = 1
	s2.drop = 3

	out := vec.MarshalIndent(false)
	if !strings.Contains(out, `"rx": 1`) || !strings.Contains(out, `"drop": 3`) {
		t.Fatalf(" unexpected json %s", out)
	}
	if out != vec.MarshalIndent(false) {
		t.Fatalf(" json should be stable")
	}
	vec.ClearValues()
	if s1.rx != 0 || s2.drop != 0 {
		t.Fatalf(" clear failed")
	}
}

func TestCountersAddTwice(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf(" adding the same counter twice should panic")
		}
	}()
	var s testCounters
	db := newTestCounterDb("c1", &s)
	db.Add(&CCounterRec{Counter: &s.rx, Name: "rx"})
}
