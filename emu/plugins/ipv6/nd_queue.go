package ipv6

type pendingPacket struct {
	d    *Datagram
	ifId int
}

// pendingQueue bounded fifo of the packets waiting for address resolution
type pendingQueue struct {
	pkts []pendingPacket
}

func (o *pendingQueue) len() int {
	return len(o.pkts)
}

// push return the packet that was dropped, nil if none. With QUEUE_REJECT_NEW the dropped packet is p
func (o *pendingQueue) push(p pendingPacket, limit uint32, policy QueuePolicy) *pendingPacket {
	if uint32(len(o.pkts)) < limit {
		o.pkts = append(o.pkts, p)
		return nil
	}
	if policy == QUEUE_REJECT_NEW {
		return &p
	}
	oldest := o.pkts[0]
	o.pkts = append(o.pkts[1:], p)
	return &oldest
}

// drain return the packets in the order they were queued and clear the queue
func (o *pendingQueue) drain() []pendingPacket {
	r := o.pkts
	o.pkts = nil
	return r
}
