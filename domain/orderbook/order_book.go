package orderbook

import (
	"clob/domain/errs"

	"github.com/google/btree"
	"github.com/pkg/errors"
)

// MaxOrdersPerSide is the default cap on resting orders per side.
const MaxOrdersPerSide = 2048

const btreeDegree = 32

// Book holds the resting orders of one instrument. It is single-writer
// and deterministic: levels live in price-ordered trees, orders inside a
// level in ID order. The id index is only used for lookup.
type Book struct {
	bids *btree.BTreeG[*PriceLevel]
	asks *btree.BTreeG[*PriceLevel]

	orders   map[uint64]*Order
	counts   [2]int
	capacity int
}

// NewBook creates an empty book holding at most capacity orders per side.
func NewBook(capacity int) *Book {
	if capacity <= 0 {
		capacity = MaxOrdersPerSide
	}
	return &Book{
		// best bid first
		bids: btree.NewG(btreeDegree, func(a, b *PriceLevel) bool {
			return a.Price > b.Price
		}),
		// best ask first
		asks: btree.NewG(btreeDegree, func(a, b *PriceLevel) bool {
			return a.Price < b.Price
		}),
		orders:   make(map[uint64]*Order),
		capacity: capacity,
	}
}

func (b *Book) side(s Side) *btree.BTreeG[*PriceLevel] {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// ---- mutation ----

// Insert places o at its price level behind every order with a lower ID.
// The caller guarantees o does not cross unless it deliberately parks a
// crossed remainder for the next crank.
func (b *Book) Insert(o *Order) error {
	if o.Price == 0 {
		return errors.Wrapf(errs.ErrInvalidPrice, "order %d", o.ID)
	}
	if o.Size == 0 || o.Remaining == 0 || o.Remaining > o.Size {
		return errors.Wrapf(errs.ErrInvalidSize, "order %d size=%d remaining=%d", o.ID, o.Size, o.Remaining)
	}
	if !o.Side.Valid() {
		return errors.Wrapf(errs.ErrInvalidOrderType, "order %d side %d", o.ID, o.Side)
	}
	if _, ok := b.orders[o.ID]; ok {
		return errors.Errorf("order %d already resting", o.ID)
	}
	if b.counts[o.Side] >= b.capacity {
		return errors.Wrapf(errs.ErrBookCapacityExceeded, "%s side holds %d orders", o.Side, b.counts[o.Side])
	}

	tree := b.side(o.Side)
	lvl, ok := tree.Get(&PriceLevel{Price: o.Price})
	if !ok {
		lvl = &PriceLevel{Price: o.Price}
		tree.ReplaceOrInsert(lvl)
	}

	o.next, o.prev = nil, nil
	lvl.insert(o)
	b.orders[o.ID] = o
	b.counts[o.Side]++
	return nil
}

// Fill records size traded by a resting order.
func (b *Book) Fill(o *Order, size uint64) error {
	if o.level == nil {
		return errors.Wrapf(errs.ErrNotFound, "order %d is not resting", o.ID)
	}
	if size > o.Remaining {
		return errors.Wrapf(errs.ErrArithmeticOverflow, "fill %d exceeds remaining %d", size, o.Remaining)
	}
	o.Remaining -= size
	o.level.reduce(size)
	return nil
}

// RemoveFilled removes an order whose remaining size reached zero, and
// its level when that leaves the level empty.
func (b *Book) RemoveFilled(lvl *PriceLevel, o *Order) error {
	if o.Remaining != 0 {
		return errors.Errorf("order %d still has %d remaining", o.ID, o.Remaining)
	}
	if o.level != lvl {
		return errors.Wrapf(errs.ErrNotFound, "order %d not at level %d", o.ID, lvl.Price)
	}
	b.unlink(o)
	return nil
}

// Remove unlinks a resting order regardless of its remaining size.
func (b *Book) Remove(id uint64) (*Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return nil, errors.Wrapf(errs.ErrNotFound, "order %d", id)
	}
	b.unlink(o)
	return o, nil
}

func (b *Book) unlink(o *Order) {
	lvl := o.level
	lvl.unlink(o)
	if lvl.Empty() {
		b.side(o.Side).Delete(lvl)
	}
	delete(b.orders, o.ID)
	b.counts[o.Side]--
}

// ---- queries ----

// Best returns the best level on side s, or nil when the side is empty.
func (b *Book) Best(s Side) *PriceLevel {
	lvl, ok := b.side(s).Min()
	if !ok {
		return nil
	}
	return lvl
}

// BestOpposite returns the best level an order on side s trades against.
func (b *Book) BestOpposite(s Side) *PriceLevel {
	return b.Best(s.Opposite())
}

// Crosses reports whether a limit order on side s at price would trade.
func (b *Book) Crosses(s Side, price uint64) bool {
	lvl := b.BestOpposite(s)
	if lvl == nil {
		return false
	}
	if s == Buy {
		return price >= lvl.Price
	}
	return price <= lvl.Price
}

// Crossed reports whether best bid >= best ask.
func (b *Book) Crossed() bool {
	bid, ask := b.Best(Buy), b.Best(Sell)
	return bid != nil && ask != nil && bid.Price >= ask.Price
}

// Sweep walks the resting orders a taker on side s with the given limit
// would trade against, in priority order, stopping after maxFills orders
// or once size is covered. It returns the number of orders touched and
// the size they cover.
func (b *Book) Sweep(s Side, limit, size uint64, maxFills int) (fills int, covered uint64) {
	b.side(s.Opposite()).Ascend(func(lvl *PriceLevel) bool {
		if s == Buy && lvl.Price > limit || s == Sell && lvl.Price < limit {
			return false
		}
		for o := lvl.head; o != nil; o = o.next {
			if fills >= maxFills || covered >= size {
				return false
			}
			fills++
			covered += min(o.Remaining, size-covered)
		}
		return fills < maxFills && covered < size
	})
	return fills, covered
}

// Order looks up a resting order by id.
func (b *Book) Order(id uint64) (*Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// Len returns the number of resting orders on side s.
func (b *Book) Len(s Side) int { return b.counts[s] }

// Capacity is the per-side cap on resting orders.
func (b *Book) Capacity() int { return b.capacity }

// Levels returns the number of price levels on side s.
func (b *Book) Levels(s Side) int { return b.side(s).Len() }

// ---- traversal helpers ----

// Walk visits the levels of side s from best to worst until fn returns false.
func (b *Book) Walk(s Side, fn func(*PriceLevel) bool) {
	b.side(s).Ascend(func(lvl *PriceLevel) bool {
		return fn(lvl)
	})
}

// WalkOrders visits the orders of side s in priority order.
func (b *Book) WalkOrders(s Side, fn func(*Order) bool) {
	b.Walk(s, func(lvl *PriceLevel) bool {
		for o := lvl.head; o != nil; o = o.next {
			if !fn(o) {
				return false
			}
		}
		return true
	})
}

// LevelView is an aggregated price level.
type LevelView struct {
	Price  uint64
	Volume uint64
	Orders int
}

// Depth returns up to n aggregated levels of side s, best first. n <= 0
// returns every level.
func (b *Book) Depth(s Side, n int) []LevelView {
	out := make([]LevelView, 0, b.Levels(s))
	b.Walk(s, func(lvl *PriceLevel) bool {
		if n > 0 && len(out) == n {
			return false
		}
		out = append(out, LevelView{Price: lvl.Price, Volume: lvl.Volume, Orders: lvl.OrderCount})
		return true
	})
	return out
}
