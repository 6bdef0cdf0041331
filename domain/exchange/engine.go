package exchange

import (
	"clob/domain/errs"
	"clob/domain/matching"
	"clob/domain/orderbook"
	"clob/domain/vault"

	"github.com/pkg/errors"
)

const (
	DefaultMatchBudget      = 32
	DefaultMaxItemsPerCrank = 8
)

// Params bounds the work of one invocation.
type Params struct {
	// MatchBudget is the number of fills one invocation may perform.
	MatchBudget int
	// MaxItemsPerCrank caps the pending items a single crank dequeues.
	MaxItemsPerCrank int
}

// Engine runs admission, cancellation and crank invocations against
// decoded instrument and group state. It keeps no state of its own
// between invocations and does no locking: the caller holds the group
// for the whole invocation and persists the state afterwards.
//
// Every operation returns a nil result when it failed without changing
// state. A non-nil result means state changed and must be persisted,
// even when it comes with ErrRingBufferFull.
type Engine struct {
	params Params
}

func NewEngine(p Params) *Engine {
	if p.MatchBudget <= 0 {
		p.MatchBudget = DefaultMatchBudget
	}
	if p.MaxItemsPerCrank <= 0 {
		p.MaxItemsPerCrank = DefaultMaxItemsPerCrank
	}
	return &Engine{params: p}
}

func (e *Engine) Params() Params { return e.params }

// Resolver loads the other instruments of a group during a crank. It
// must return the same *Instrument for repeated calls with one id.
type Resolver interface {
	Instrument(id uint64) (*Instrument, error)
}

// OrderRequest is a validated, authorised order from the host.
type OrderRequest struct {
	Owner uint64
	Side  orderbook.Side
	Type  orderbook.OrderType
	Price uint64
	Size  uint64
}

type SubmitResult struct {
	OrderID        uint64
	Reports        []ExecutionReport
	Resting        bool
	QueuedForCrank bool
	// Released is the reservation returned for an IOC remainder.
	Released uint64
}

type CancelResult struct {
	OrderID  uint64
	Asset    vault.Asset
	Released uint64
}

type CrankResult struct {
	Drained   int
	Requeued  int
	Remaining uint64
	Uncrossed bool
	Consumed  int
	Reports   []ExecutionReport
}

// obligation is what an order on side at price reserves for size.
func obligation(side orderbook.Side, price, size uint64) (vault.Asset, uint64, error) {
	if side == orderbook.Sell {
		return vault.Base, size, nil
	}
	n, err := vault.Notional(price, size)
	return vault.Quote, n, err
}

func (e *Engine) limit(inst *Instrument, budget int) int {
	return int(min(uint64(budget), inst.Reports.Free()))
}

// ---- admission ----

// SubmitOrder admits a new order: validate, reserve, match in-line up to
// the budget, then rest, release or queue the remainder.
func (e *Engine) SubmitOrder(g *Group, inst *Instrument, req OrderRequest, now int64) (*SubmitResult, error) {
	if inst.Group != g.ID {
		return nil, errors.Wrapf(errs.ErrNotFound, "instrument %d not in group %d", inst.ID, g.ID)
	}
	if req.Price == 0 {
		return nil, errors.Wrap(errs.ErrInvalidPrice, "price must be positive")
	}
	if req.Size == 0 {
		return nil, errors.Wrap(errs.ErrInvalidSize, "size must be positive")
	}
	if !req.Side.Valid() {
		return nil, errors.Wrapf(errs.ErrInvalidOrderType, "side %d", req.Side)
	}
	if !req.Type.Valid() {
		return nil, errors.Wrapf(errs.ErrInvalidOrderType, "type %d", req.Type)
	}

	asset, amount, err := obligation(req.Side, req.Price, req.Size)
	if err != nil {
		return nil, err
	}

	book := inst.Book
	crosses := book.Crosses(req.Side, req.Price)
	if req.Type == orderbook.PostOnly && crosses {
		return nil, errors.Wrapf(errs.ErrPostOnlyWouldCross, "%s at %d", req.Side, req.Price)
	}

	// Orders that cross while earlier work of this instrument is queued,
	// or while a parked order leaves its book crossed, go behind that
	// work instead of trading ahead of it.
	queueBehind := crosses && (inst.PendingTotal() > 0 || book.Crossed())
	limit := e.limit(inst, e.params.MatchBudget)

	needsPending := queueBehind
	var filled bool
	if crosses && !queueBehind {
		fills, covered := book.Sweep(req.Side, req.Price, req.Size, limit+1)
		if req.Type == orderbook.FOK && (covered < req.Size || fills > limit) {
			return nil, errors.Wrapf(errs.ErrFillOrKillFailed, "%d of %d fillable in %d fills", covered, req.Size, limit)
		}
		needsPending = fills > limit
		filled = covered == req.Size && fills <= limit
	}
	if req.Type == orderbook.FOK && (!crosses || queueBehind) {
		return nil, errors.Wrapf(errs.ErrFillOrKillFailed, "%s at %d", req.Side, req.Price)
	}
	// an order filled completely in-line never takes a slot of its side
	if req.Type.Rests() && !filled && book.Len(req.Side)+int(inst.Pending[req.Side]) >= book.Capacity() {
		return nil, errors.Wrapf(errs.ErrBookCapacityExceeded, "instrument %d %s side", inst.ID, req.Side)
	}
	if needsPending && req.Type != orderbook.GTC && g.Pending.Full() {
		return nil, errors.Wrapf(errs.ErrRingBufferFull, "group %d pending work", g.ID)
	}

	if err := inst.Ledger.Reserve(req.Owner, asset, amount); err != nil {
		return nil, err
	}

	inst.LastOrderID++
	o := &orderbook.Order{
		ID:        inst.LastOrderID,
		Owner:     req.Owner,
		Side:      req.Side,
		Type:      req.Type,
		Price:     req.Price,
		Size:      req.Size,
		Remaining: req.Size,
		Timestamp: now,
	}
	res := &SubmitResult{OrderID: o.ID}

	if queueBehind {
		return e.park(g, inst, o, 0, res)
	}

	m, err := matching.Match(o, book, inst.Ledger, limit)
	if err != nil {
		return nil, err
	}
	if res.Reports, err = e.record(inst, m.Fills, now); err != nil {
		return nil, err
	}
	if o.Remaining == 0 {
		return res, nil
	}
	if !m.Exhausted {
		if res.Resting, res.Released, err = e.dispose(inst, o); err != nil {
			return nil, err
		}
		return res, nil
	}
	return e.park(g, inst, o, len(m.Fills), res)
}

// park queues o on the group ring. When the ring is full a GTC remainder
// rests in the book as it is, possibly crossed, and the next crank on
// the instrument uncrosses it.
func (e *Engine) park(g *Group, inst *Instrument, o *orderbook.Order, consumed int, res *SubmitResult) (*SubmitResult, error) {
	w := PendingWork{Instrument: inst.ID, Order: o.Detached(), Consumed: uint32(consumed)}
	if g.Pending.Enqueue(w) {
		inst.Pending[o.Side]++
		res.QueuedForCrank = true
		return res, nil
	}
	if o.Type != orderbook.GTC {
		return nil, errors.Wrapf(errs.ErrRingBufferFull, "group %d pending work", g.ID)
	}
	if err := inst.Book.Insert(o); err != nil {
		return nil, err
	}
	res.Resting = true
	return res, errors.Wrapf(errs.ErrRingBufferFull, "group %d pending work, order %d rests", g.ID, o.ID)
}

// dispose settles a remainder that no longer crosses: resting types join
// the book, the others release their reservation.
func (e *Engine) dispose(inst *Instrument, o *orderbook.Order) (resting bool, released uint64, err error) {
	if o.Type.Rests() {
		return true, 0, inst.Book.Insert(o)
	}
	asset, amount, err := obligation(o.Side, o.Price, o.Remaining)
	if err != nil {
		return false, 0, err
	}
	return false, amount, inst.Ledger.Release(o.Owner, asset, amount)
}

func (e *Engine) record(inst *Instrument, fills []matching.Fill, now int64) ([]ExecutionReport, error) {
	if len(fills) == 0 {
		return nil, nil
	}
	out := make([]ExecutionReport, 0, len(fills))
	for _, f := range fills {
		inst.LastReportSeq++
		r := ExecutionReport{
			Seq:         inst.LastReportSeq,
			Instrument:  inst.ID,
			BuyOrderID:  f.BuyOrderID(),
			SellOrderID: f.SellOrderID(),
			Buyer:       f.Buyer(),
			Seller:      f.Seller(),
			Price:       f.Price,
			Size:        f.Size,
			Aggressor:   f.TakerSide,
			Timestamp:   now,
		}
		if !inst.Reports.Enqueue(r) {
			return nil, errors.Wrapf(errs.ErrRingBufferFull, "instrument %d reports", inst.ID)
		}
		out = append(out, r)
	}
	return out, nil
}

// ---- cancellation ----

// CancelOrder removes a resting order of owner and releases what it
// still reserves. Orders queued as pending work are not in the book and
// are not found.
func (e *Engine) CancelOrder(inst *Instrument, orderID, owner uint64) (*CancelResult, error) {
	o, ok := inst.Book.Order(orderID)
	if !ok {
		return nil, errors.Wrapf(errs.ErrNotFound, "order %d on instrument %d", orderID, inst.ID)
	}
	if o.Owner != owner {
		return nil, errors.Wrapf(errs.ErrUnauthorized, "order %d is not owned by %d", orderID, owner)
	}
	asset, amount, err := obligation(o.Side, o.Price, o.Remaining)
	if err != nil {
		return nil, err
	}
	if err := inst.Ledger.Release(owner, asset, amount); err != nil {
		return nil, err
	}
	if _, err := inst.Book.Remove(orderID); err != nil {
		return nil, err
	}
	return &CancelResult{OrderID: orderID, Asset: asset, Released: amount}, nil
}

// ---- crank ----

// Crank drains the group's pending work with one invocation's budget.
// Items are taken from the head; an item still crossing when its pass
// runs out of budget goes back to the tail. Budget left after the ring
// is served uncrosses a book of inst that a full pending ring left
// crossed at rest.
func (e *Engine) Crank(g *Group, inst *Instrument, res Resolver, now int64) (*CrankResult, error) {
	if inst.Group != g.ID {
		return nil, errors.Wrapf(errs.ErrNotFound, "instrument %d not in group %d", inst.ID, g.ID)
	}

	budget := e.params.MatchBudget
	out := &CrankResult{}

	var blocked bool
	var blockedOn uint64
	for items := 0; budget > 0 && items < e.params.MaxItemsPerCrank; items++ {
		w, ok := g.Pending.Peek()
		if !ok {
			break
		}
		target := inst
		if w.Instrument != inst.ID {
			t, err := res.Instrument(w.Instrument)
			if err != nil {
				return nil, errors.Wrapf(err, "pending work for instrument %d", w.Instrument)
			}
			target = t
		}

		o := w.Order
		// an item admitted after the order that left its book crossed
		// waits until that order has traded
		if target.Book.Crossed() && o.ID > crossingOrder(target.Book) {
			limit := e.limit(target, budget)
			if limit == 0 {
				blocked, blockedOn = true, target.ID
				break
			}
			reports, err := e.uncross(target, limit, now)
			if err != nil {
				return nil, err
			}
			budget -= len(reports)
			out.Consumed += len(reports)
			out.Reports = append(out.Reports, reports...)
			if target == inst {
				out.Uncrossed = !target.Book.Crossed()
			}
			if target.Book.Crossed() || budget == 0 {
				break
			}
		}

		limit := e.limit(target, budget)
		crosses := target.Book.Crosses(o.Side, o.Price)
		if crosses && limit == 0 {
			blocked, blockedOn = true, target.ID
			break
		}

		g.Pending.Dequeue()
		target.Pending[o.Side]--

		if crosses {
			m, err := matching.Match(&o, target.Book, target.Ledger, limit)
			if err != nil {
				return nil, err
			}
			reports, err := e.record(target, m.Fills, now)
			if err != nil {
				return nil, err
			}
			budget -= len(m.Fills)
			out.Consumed += len(m.Fills)
			out.Reports = append(out.Reports, reports...)
			w.Consumed += uint32(len(m.Fills))
			w.Passes++

			if o.Remaining > 0 && m.Exhausted {
				w.Order = o
				// the dequeue above freed a slot
				g.Pending.Enqueue(w)
				target.Pending[o.Side]++
				out.Requeued++
				continue
			}
		}

		if o.Remaining > 0 {
			if _, _, err := e.dispose(target, &o); err != nil {
				return nil, err
			}
		}
		out.Drained++
	}

	if budget > 0 && inst.Book.Crossed() && !pendingBefore(g, inst.ID, crossingOrder(inst.Book)) {
		if inst.Reports.Free() == 0 {
			blocked, blockedOn = true, inst.ID
		} else {
			reports, err := e.uncross(inst, budget, now)
			if err != nil {
				return nil, err
			}
			out.Consumed += len(reports)
			out.Reports = append(out.Reports, reports...)
			out.Uncrossed = !inst.Book.Crossed()
		}
	}

	out.Remaining = g.Pending.Len()
	if out.Drained == 0 && out.Requeued == 0 && out.Consumed == 0 {
		if blocked {
			return nil, errors.Wrapf(errs.ErrRingBufferFull, "report ring of instrument %d", blockedOn)
		}
		return nil, errors.Wrapf(errs.ErrCrankEmpty, "group %d", g.ID)
	}
	return out, nil
}

// crossingOrder returns the id of the newer of the two best orders of a
// crossed book, the order an uncross pass trades first.
func crossingOrder(b *orderbook.Book) uint64 {
	return max(b.Best(orderbook.Buy).Head().ID, b.Best(orderbook.Sell).Head().ID)
}

// pendingBefore reports whether the ring still holds an item of
// instrument admitted before order id.
func pendingBefore(g *Group, instrument, id uint64) bool {
	var found bool
	g.Pending.Each(func(_ uint64, w PendingWork) bool {
		found = w.Instrument == instrument && w.Order.ID < id
		return !found
	})
	return found
}

// uncross matches the newer of the two best orders against the book
// until the book no longer crosses or the budget runs out. The older
// order sets the price.
func (e *Engine) uncross(inst *Instrument, budget int, now int64) ([]ExecutionReport, error) {
	var out []ExecutionReport
	for inst.Book.Crossed() {
		limit := e.limit(inst, budget-len(out))
		if limit == 0 {
			break
		}
		bid := inst.Book.Best(orderbook.Buy).Head()
		ask := inst.Book.Best(orderbook.Sell).Head()
		taker := bid
		if ask.ID > bid.ID {
			taker = ask
		}
		if _, err := inst.Book.Remove(taker.ID); err != nil {
			return nil, err
		}

		m, err := matching.Match(taker, inst.Book, inst.Ledger, limit)
		if err != nil {
			return nil, err
		}
		reports, err := e.record(inst, m.Fills, now)
		if err != nil {
			return nil, err
		}
		out = append(out, reports...)

		if taker.Remaining > 0 {
			if err := inst.Book.Insert(taker); err != nil {
				return nil, err
			}
		}
		if len(m.Fills) == 0 {
			break
		}
	}
	return out, nil
}
