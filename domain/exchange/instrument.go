package exchange

import (
	"clob/domain/errs"
	"clob/domain/orderbook"
	"clob/domain/vault"
	"clob/infra/ring"

	"github.com/pkg/errors"
)

const (
	// MaxAssetIDLen is the width of an asset id in the instrument record.
	MaxAssetIDLen = 16
	// DefaultPendingCapacity is the pending-work ring size of a new group.
	DefaultPendingCapacity = 4096
	// DefaultReportCapacity is the execution-report ring size of a new instrument.
	DefaultReportCapacity = 200
)

// ExecutionReport is the immutable record of one fill.
type ExecutionReport struct {
	Seq         uint64
	Instrument  uint64
	BuyOrderID  uint64
	SellOrderID uint64
	Buyer       uint64
	Seller      uint64
	Price       uint64
	Size        uint64
	Aggressor   orderbook.Side
	Timestamp   int64
}

// PendingWork is the unmatched remainder of an order whose admission or
// previous crank pass ran out of budget while it still crossed.
type PendingWork struct {
	Instrument uint64
	Order      orderbook.Order
	// Consumed counts the units of work spent on the order so far.
	Consumed uint32
	// Passes counts the crank passes that resumed the order.
	Passes uint32
}

// Instrument is one base/quote pair with its book, escrow ledger and
// execution-report ring.
type Instrument struct {
	ID    uint64
	Group uint64
	Base  string
	Quote string

	Book    *orderbook.Book
	Ledger  *vault.Ledger
	Reports *ring.Ring[ExecutionReport]

	LastOrderID   uint64
	LastReportSeq uint64
	// Pending counts, per side, the items of this instrument queued on
	// the group ring. They count against the book capacity of their side.
	Pending [2]uint32
}

// InstrumentParams sizes a new instrument.
type InstrumentParams struct {
	MaxOrdersPerSide int
	ReportCapacity   uint64
}

func (p InstrumentParams) withDefaults() InstrumentParams {
	if p.MaxOrdersPerSide <= 0 {
		p.MaxOrdersPerSide = orderbook.MaxOrdersPerSide
	}
	if p.ReportCapacity == 0 {
		p.ReportCapacity = DefaultReportCapacity
	}
	return p
}

// NewInstrument creates an empty instrument.
func NewInstrument(id, group uint64, base, quote string, p InstrumentParams) (*Instrument, error) {
	for _, a := range []string{base, quote} {
		if a == "" || len(a) > MaxAssetIDLen {
			return nil, errors.Wrapf(errs.ErrInvalidAsset, "asset %q", a)
		}
	}
	if base == quote {
		return nil, errors.Wrapf(errs.ErrInvalidAsset, "base and quote are both %q", base)
	}
	p = p.withDefaults()
	return &Instrument{
		ID:      id,
		Group:   group,
		Base:    base,
		Quote:   quote,
		Book:    orderbook.NewBook(p.MaxOrdersPerSide),
		Ledger:  vault.NewLedger(),
		Reports: ring.New[ExecutionReport](p.ReportCapacity),
	}, nil
}

// PendingTotal is the number of this instrument's items on the group ring.
func (i *Instrument) PendingTotal() uint32 {
	return i.Pending[orderbook.Buy] + i.Pending[orderbook.Sell]
}

// PeekReports returns up to n reports from the head of the report ring,
// or all of them when n <= 0.
func (i *Instrument) PeekReports(n int) []ExecutionReport {
	if n <= 0 || uint64(n) > i.Reports.Len() {
		n = int(i.Reports.Len())
	}
	out := make([]ExecutionReport, 0, n)
	i.Reports.Each(func(_ uint64, r ExecutionReport) bool {
		if len(out) == n {
			return false
		}
		out = append(out, r)
		return true
	})
	return out
}

// AckReports drops every report with a sequence up to and including
// through. It returns the number of reports dropped.
func (i *Instrument) AckReports(through uint64) uint64 {
	var n uint64
	i.Reports.Each(func(_ uint64, r ExecutionReport) bool {
		if r.Seq > through {
			return false
		}
		n++
		return true
	})
	return i.Reports.Discard(n)
}

// Group is an authority-scoped set of instruments sharing one
// pending-work ring.
type Group struct {
	ID          uint64
	Authority   uint64
	Instruments []uint64
	Pending     *ring.Ring[PendingWork]
}

// NewGroup creates a group with an empty pending ring.
func NewGroup(id, authority uint64, pendingCapacity uint64) *Group {
	if pendingCapacity == 0 {
		pendingCapacity = DefaultPendingCapacity
	}
	return &Group{
		ID:        id,
		Authority: authority,
		Pending:   ring.New[PendingWork](pendingCapacity),
	}
}

// AddInstrument registers an instrument id with the group.
func (g *Group) AddInstrument(id uint64) {
	g.Instruments = append(g.Instruments, id)
}

// Owns reports whether the group lists instrument id.
func (g *Group) Owns(id uint64) bool {
	for _, i := range g.Instruments {
		if i == id {
			return true
		}
	}
	return false
}
