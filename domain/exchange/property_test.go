package exchange

import (
	"bytes"
	"testing"

	"clob/domain/errs"
	"clob/domain/orderbook"
	"clob/domain/vault"

	"github.com/pkg/errors"
	"pgregory.net/rapid"
)

type model struct {
	e    *Engine
	g    *Group
	inst *Instrument
	now  int64
}

func (m *model) snapshot() []byte {
	return append(EncodeGroup(m.g), EncodeInstrument(m.inst)...)
}

// checkReservations verifies that every reserved unit is backed by a
// resting order or a queued item and that custody matches the balances.
func (m *model) checkReservations(t *rapid.T) {
	want := map[uint64]*[2]uint64{}
	add := func(o orderbook.Order) {
		r, ok := want[o.Owner]
		if !ok {
			r = &[2]uint64{}
			want[o.Owner] = r
		}
		if o.Side == orderbook.Buy {
			r[vault.Quote] += o.Price * o.Remaining
		} else {
			r[vault.Base] += o.Remaining
		}
	}
	for _, s := range []orderbook.Side{orderbook.Buy, orderbook.Sell} {
		m.inst.Book.WalkOrders(s, func(o *orderbook.Order) bool {
			add(o.Detached())
			return true
		})
	}
	var pending [2]uint32
	m.g.Pending.Each(func(_ uint64, w PendingWork) bool {
		add(w.Order)
		pending[w.Order.Side]++
		return true
	})
	if pending != m.inst.Pending {
		t.Fatalf("pending counters %v, ring holds %v", m.inst.Pending, pending)
	}

	for _, id := range m.inst.Ledger.Accounts() {
		var exp [2]uint64
		if r, ok := want[id]; ok {
			exp = *r
		}
		for _, a := range []vault.Asset{vault.Base, vault.Quote} {
			if got := m.inst.Ledger.Balance(id, a).Reserved; got != exp[a] {
				t.Fatalf("account %d %s reserved %d, orders need %d", id, a, got, exp[a])
			}
		}
	}
	for _, a := range []vault.Asset{vault.Base, vault.Quote} {
		if m.inst.Ledger.Total(a) != m.inst.Ledger.Custody(a) {
			t.Fatalf("%s custody %d, balances sum to %d", a, m.inst.Ledger.Custody(a), m.inst.Ledger.Total(a))
		}
	}
}

func (m *model) checkRecords(t *rapid.T) {
	g, err := DecodeGroup(EncodeGroup(m.g))
	if err != nil {
		t.Fatalf("decode group: %v", err)
	}
	inst, err := DecodeInstrument(EncodeInstrument(m.inst))
	if err != nil {
		t.Fatalf("decode instrument: %v", err)
	}
	if !bytes.Equal(EncodeGroup(g), EncodeGroup(m.g)) || !bytes.Equal(EncodeInstrument(inst), EncodeInstrument(m.inst)) {
		t.Fatalf("records differ after a round trip")
	}
}

func (m *model) submit(t *rapid.T) {
	req := OrderRequest{
		Owner: rapid.Uint64Range(1, 3).Draw(t, "owner"),
		Side:  orderbook.Side(rapid.IntRange(0, 1).Draw(t, "side")),
		Type:  orderbook.OrderType(rapid.IntRange(0, 3).Draw(t, "type")),
		Price: rapid.Uint64Range(1, 12).Draw(t, "price"),
		Size:  rapid.Uint64Range(1, 6).Draw(t, "size"),
	}
	before := m.snapshot()
	m.now++
	res, err := m.e.SubmitOrder(m.g, m.inst, req, m.now)
	if res == nil {
		if err == nil {
			t.Fatalf("nil result without error")
		}
		if !bytes.Equal(before, m.snapshot()) {
			t.Fatalf("rejected %+v changed state: %v", req, err)
		}
		return
	}
	if err != nil && !errors.Is(err, errs.ErrRingBufferFull) {
		t.Fatalf("submit %+v: %v", req, err)
	}
	if res.Resting && res.QueuedForCrank {
		t.Fatalf("order %d both resting and queued", res.OrderID)
	}
}

func (m *model) cancel(t *rapid.T) {
	var ids []orderbook.Order
	for _, s := range []orderbook.Side{orderbook.Buy, orderbook.Sell} {
		m.inst.Book.WalkOrders(s, func(o *orderbook.Order) bool {
			ids = append(ids, o.Detached())
			return true
		})
	}
	if len(ids) == 0 {
		return
	}
	o := rapid.SampledFrom(ids).Draw(t, "cancel")
	if _, err := m.e.CancelOrder(m.inst, o.ID, o.Owner); err != nil {
		t.Fatalf("cancel %d: %v", o.ID, err)
	}
}

func (m *model) crank(t *rapid.T) error {
	before := m.snapshot()
	m.now++
	res, err := m.e.Crank(m.g, m.inst, nil, m.now)
	if res == nil {
		if !errors.Is(err, errs.ErrCrankEmpty) && !errors.Is(err, errs.ErrRingBufferFull) {
			t.Fatalf("crank: %v", err)
		}
		if !bytes.Equal(before, m.snapshot()) {
			t.Fatalf("failed crank changed state: %v", err)
		}
		return err
	}
	if err != nil {
		t.Fatalf("crank returned result and %v", err)
	}
	return nil
}

func TestEngineInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := NewGroup(1, 1, rapid.Uint64Range(1, 3).Draw(t, "pendingCap"))
		inst, err := NewInstrument(1, 1, "B", "Q", InstrumentParams{
			MaxOrdersPerSide: rapid.IntRange(2, 8).Draw(t, "bookCap"),
			ReportCapacity:   rapid.Uint64Range(1, 6).Draw(t, "reportCap"),
		})
		if err != nil {
			t.Fatalf("new instrument: %v", err)
		}
		g.AddInstrument(inst.ID)
		for owner := uint64(1); owner <= 3; owner++ {
			_ = inst.Ledger.Deposit(owner, vault.Base, 1_000)
			_ = inst.Ledger.Deposit(owner, vault.Quote, 100_000)
		}
		m := &model{
			e: NewEngine(Params{
				MatchBudget:      rapid.IntRange(1, 4).Draw(t, "budget"),
				MaxItemsPerCrank: rapid.IntRange(1, 3).Draw(t, "items"),
			}),
			g:    g,
			inst: inst,
		}

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 9).Draw(t, "op") {
			case 0, 1:
				_ = m.crank(t)
			case 2:
				m.cancel(t)
			case 3:
				m.inst.AckReports(m.inst.LastReportSeq)
			default:
				m.submit(t)
			}
			m.checkReservations(t)
			m.checkRecords(t)
		}

		// with a consumer acking reports, cranking drains all work
		for i := 0; ; i++ {
			if i > 1_000 {
				t.Fatalf("work not drained: %d pending, crossed=%v", m.g.Pending.Len(), m.inst.Book.Crossed())
			}
			err := m.crank(t)
			if errors.Is(err, errs.ErrCrankEmpty) {
				break
			}
			if errors.Is(err, errs.ErrRingBufferFull) {
				m.inst.AckReports(m.inst.LastReportSeq)
			}
			m.checkReservations(t)
		}
		if !m.g.Pending.Empty() || m.inst.PendingTotal() != 0 {
			t.Fatalf("pending work left after drain")
		}
		if m.inst.Book.Crossed() {
			t.Fatalf("book crossed after drain")
		}
	})
}
