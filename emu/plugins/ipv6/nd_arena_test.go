package ipv6

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestArenaGenerations(t *testing.T) {
	var a arena[neighbour]
	h1, n1 := a.alloc()
	h2, _ := a.alloc()
	if a.get(h1) != n1 || a.len() != 2 {
		t.Fatalf("alloc")
	}
	if !a.release(h1) || a.release(h1) {
		t.Fatalf("release")
	}
	if a.get(h1) != nil {
		t.Fatalf("stale handle resolved")
	}
	h3, _ := a.alloc()
	if h3.idx != h1.idx || h3.gen == h1.gen {
		t.Fatalf("slot not reused with a new generation %v %v", h1, h3)
	}
	if a.get(h1) != nil || a.get(handle{}) != nil || a.get(handle{idx: 99, gen: 1}) != nil {
		t.Fatalf("invalid handle resolved")
	}
	if diff := cmp.Diff([]handle{h3, h2}, a.handles(), cmp.AllowUnexported(handle{})); diff != "" {
		t.Fatalf("handles (-want +got):\n%s", diff)
	}
}

func TestPendingQueuePolicies(t *testing.T) {
	pkt := func(n byte) pendingPacket {
		return pendingPacket{d: &Datagram{Payload: []byte{n}}}
	}
	ids := func(pkts []pendingPacket) []byte {
		var r []byte
		for _, p := range pkts {
			r = append(r, p.d.Payload[0])
		}
		return r
	}

	var q pendingQueue
	for i := byte(1); i <= 2; i++ {
		if q.push(pkt(i), 2, QUEUE_DROP_OLDEST) != nil {
			t.Fatalf("dropped below the limit")
		}
	}
	if dropped := q.push(pkt(3), 2, QUEUE_DROP_OLDEST); dropped == nil || dropped.d.Payload[0] != 1 {
		t.Fatalf("drop-oldest dropped %v", dropped)
	}
	if diff := cmp.Diff([]byte{2, 3}, ids(q.drain())); diff != "" {
		t.Fatalf("drop-oldest (-want +got):\n%s", diff)
	}
	if q.len() != 0 {
		t.Fatalf("drain left %d", q.len())
	}

	q.push(pkt(1), 1, QUEUE_REJECT_NEW)
	if dropped := q.push(pkt(2), 1, QUEUE_REJECT_NEW); dropped == nil || dropped.d.Payload[0] != 2 {
		t.Fatalf("reject-new dropped %v", dropped)
	}
	if diff := cmp.Diff([]byte{1}, ids(q.drain())); diff != "" {
		t.Fatalf("reject-new (-want +got):\n%s", diff)
	}
}
