package orderbook

// Side of an order.
type Side uint8

const (
	Buy Side = iota
	Sell
)

// Opposite returns the side an order of s trades against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) Valid() bool { return s == Buy || s == Sell }

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// OrderType decides what happens to the part of an order that does not
// match on admission.
type OrderType uint8

const (
	// GTC rests until filled or cancelled.
	GTC OrderType = iota
	// FOK fills completely inside the admitting invocation or is rejected.
	FOK
	// IOC matches what it can and releases the rest.
	IOC
	// PostOnly rests without taking liquidity or is rejected.
	PostOnly
)

func (t OrderType) Valid() bool { return t <= PostOnly }

// Rests reports whether an unmatched remainder of t joins the book.
func (t OrderType) Rests() bool { return t == GTC || t == PostOnly }

func (t OrderType) String() string {
	switch t {
	case GTC:
		return "gtc"
	case FOK:
		return "fok"
	case IOC:
		return "ioc"
	case PostOnly:
		return "post_only"
	default:
		return "unknown"
	}
}

// Order is a resting or in-flight order.
//
// Price is in quote minor units per base unit; Size and Remaining are
// in base minor units. ID is assigned at admission and is the FIFO
// tie-break inside a price level.
type Order struct {
	ID        uint64
	Owner     uint64
	Side      Side
	Type      OrderType
	Price     uint64
	Size      uint64
	Remaining uint64
	Timestamp int64

	level *PriceLevel
	next  *Order
	prev  *Order
}

// Filled is the part of the order that has traded.
func (o *Order) Filled() uint64 {
	return o.Size - o.Remaining
}

// Crosses reports whether o would trade against a resting order at price.
func (o *Order) Crosses(price uint64) bool {
	if o.Side == Buy {
		return o.Price >= price
	}
	return o.Price <= price
}

// Detached returns a copy of o that is not linked into any level.
func (o *Order) Detached() Order {
	c := *o
	c.level, c.next, c.prev = nil, nil, nil
	return c
}

// Next is a read-only traversal helper.
func (o *Order) Next() *Order {
	return o.next
}
