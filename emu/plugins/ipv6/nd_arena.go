package ipv6

// handle stable reference to an arena record, a released slot gets a new generation
// so a handle that outlived its record resolves to nil
type handle struct {
	idx uint32
	gen uint32
}

func (o handle) IsValid() bool {
	return o.gen != 0
}

type arenaSlot[T any] struct {
	gen uint32
	val *T
}

// arena records never move, so timers embedded in a record keep a valid address
type arena[T any] struct {
	slots  []arenaSlot[T]
	free   []uint32
	active int
}

func (o *arena[T]) alloc() (handle, *T) {
	var idx uint32
	if n := len(o.free); n > 0 {
		idx = o.free[n-1]
		o.free = o.free[:n-1]
	} else {
		idx = uint32(len(o.slots))
		o.slots = append(o.slots, arenaSlot[T]{})
	}
	s := &o.slots[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.val = new(T)
	o.active++
	return handle{idx: idx, gen: s.gen}, s.val
}

// get return nil for a stale handle
func (o *arena[T]) get(h handle) *T {
	if !h.IsValid() || int(h.idx) >= len(o.slots) {
		return nil
	}
	s := &o.slots[h.idx]
	if s.gen != h.gen || s.val == nil {
		return nil
	}
	return s.val
}

func (o *arena[T]) release(h handle) bool {
	if o.get(h) == nil {
		return false
	}
	s := &o.slots[h.idx]
	s.val = nil
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	o.free = append(o.free, h.idx)
	o.active--
	return true
}

func (o *arena[T]) len() int {
	return o.active
}

// handles return the live handles in slot order, safe to release while iterating the result
func (o *arena[T]) handles() []handle {
	r := make([]handle, 0, o.active)
	for i := range o.slots {
		if o.slots[i].val != nil {
			r = append(r, handle{idx: uint32(i), gen: o.slots[i].gen})
		}
	}
	return r
}
