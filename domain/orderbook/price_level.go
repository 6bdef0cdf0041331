package orderbook

// PriceLevel is a FIFO queue of orders at a single price, ordered by
// order ID.
type PriceLevel struct {
	Price uint64

	head *Order
	tail *Order

	Volume     uint64
	OrderCount int
}

// insert links o at its ID position. Orders normally arrive in ID order
// and land at the tail; a remainder drained late by the crank walks back
// to its admission slot.
func (p *PriceLevel) insert(o *Order) {
	o.level = p
	p.Volume += o.Remaining
	p.OrderCount++

	at := p.tail
	for at != nil && at.ID > o.ID {
		at = at.prev
	}

	if at == nil {
		o.prev = nil
		o.next = p.head
		if p.head != nil {
			p.head.prev = o
		} else {
			p.tail = o
		}
		p.head = o
		return
	}

	o.prev = at
	o.next = at.next
	if at.next != nil {
		at.next.prev = o
	} else {
		p.tail = o
	}
	at.next = o
}

func (p *PriceLevel) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	o.next, o.prev, o.level = nil, nil, nil

	p.Volume -= o.Remaining
	p.OrderCount--
}

// reduce accounts for size traded by the order at the head.
func (p *PriceLevel) reduce(size uint64) {
	p.Volume -= size
}

func (p *PriceLevel) Empty() bool {
	return p.head == nil
}

// Head returns the oldest order at this price.
func (p *PriceLevel) Head() *Order {
	return p.head
}
