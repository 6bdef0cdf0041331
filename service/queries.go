package service

import (
	"sort"

	"clob/domain/exchange"
	"clob/domain/orderbook"
	"clob/domain/vault"
)

// Queries read committed records and take no locks: every record is
// written whole by one batch.

type BookView struct {
	Instrument uint64
	Bids       []orderbook.LevelView
	Asks       []orderbook.LevelView
	Crossed    bool
}

// Book returns up to depth levels per side, best first. A depth of 0
// returns every level.
func (s *Service) Book(instrument uint64, depth int) (*BookView, error) {
	inst, err := s.loadInstrument(instrument)
	if err != nil {
		return nil, err
	}
	return &BookView{
		Instrument: instrument,
		Bids:       inst.Book.Depth(orderbook.Buy, depth),
		Asks:       inst.Book.Depth(orderbook.Sell, depth),
		Crossed:    inst.Book.Crossed(),
	}, nil
}

type BalanceView struct {
	Base  vault.Balance
	Quote vault.Balance
}

func (s *Service) Balance(instrument, account uint64) (*BalanceView, error) {
	inst, err := s.loadInstrument(instrument)
	if err != nil {
		return nil, err
	}
	return &BalanceView{
		Base:  inst.Ledger.Balance(account, vault.Base),
		Quote: inst.Ledger.Balance(account, vault.Quote),
	}, nil
}

type InstrumentInfo struct {
	ID            uint64
	Group         uint64
	Base          string
	Quote         string
	LastOrderID   uint64
	LastReportSeq uint64
	BookCapacity  int
	Resting       [2]int
	Pending       [2]uint32
	ReportsQueued uint64
	Custody       [2]uint64
}

func (s *Service) Instrument(id uint64) (*InstrumentInfo, error) {
	inst, err := s.loadInstrument(id)
	if err != nil {
		return nil, err
	}
	return &InstrumentInfo{
		ID:            inst.ID,
		Group:         inst.Group,
		Base:          inst.Base,
		Quote:         inst.Quote,
		LastOrderID:   inst.LastOrderID,
		LastReportSeq: inst.LastReportSeq,
		BookCapacity:  inst.Book.Capacity(),
		Resting:       [2]int{inst.Book.Len(orderbook.Buy), inst.Book.Len(orderbook.Sell)},
		Pending:       inst.Pending,
		ReportsQueued: inst.Reports.Len(),
		Custody:       [2]uint64{inst.Ledger.Custody(vault.Base), inst.Ledger.Custody(vault.Quote)},
	}, nil
}

type GroupInfo struct {
	ID          uint64
	Authority   uint64
	Instruments []uint64
	Pending     uint64
	Capacity    uint64
}

func (s *Service) Group(id uint64) (*GroupInfo, error) {
	g, err := s.loadGroup(id)
	if err != nil {
		return nil, err
	}
	return &GroupInfo{
		ID:          g.ID,
		Authority:   g.Authority,
		Instruments: g.Instruments,
		Pending:     g.Pending.Len(),
		Capacity:    g.Pending.Cap(),
	}, nil
}

// PeekReports returns up to limit undrained reports of instrument, oldest
// first, reading the report slots straight from the stored record.
func (s *Service) PeekReports(instrument uint64, limit int) ([]exchange.ExecutionReport, error) {
	rec, err := s.store.Instrument(instrument)
	if err != nil {
		return nil, err
	}
	head, tail, err := exchange.ReportCursors(rec)
	if err != nil {
		return nil, err
	}
	if limit > 0 && tail-head > uint64(limit) {
		tail = head + uint64(limit)
	}
	out := make([]exchange.ExecutionReport, 0, tail-head)
	for c := head; c < tail; c++ {
		r, err := exchange.ReportAt(rec, c)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Instruments returns the ids of every instrument, by group then
// creation order.
func (s *Service) Instruments() ([]uint64, error) {
	groups, err := s.store.Groups()
	if err != nil {
		return nil, err
	}
	var out []uint64
	for _, id := range groups {
		g, err := s.loadGroup(id)
		if err != nil {
			return nil, err
		}
		out = append(out, g.Instruments...)
	}
	return out, nil
}

// CrankCandidates returns instruments a crank would make progress on:
// the instrument at the head of every non-empty pending ring and every
// instrument whose book was left crossed.
func (s *Service) CrankCandidates() ([]uint64, error) {
	groups, err := s.store.Groups()
	if err != nil {
		return nil, err
	}
	seen := map[uint64]struct{}{}
	for _, id := range groups {
		rec, err := s.store.Group(id)
		if err != nil {
			return nil, err
		}
		head, tail, err := exchange.PendingCursors(rec)
		if err != nil {
			return nil, err
		}
		if head == tail {
			continue
		}
		w, err := exchange.PendingAt(rec, head)
		if err != nil {
			return nil, err
		}
		seen[w.Instrument] = struct{}{}
	}

	s.crossedMu.Lock()
	for id := range s.crossed {
		seen[id] = struct{}{}
	}
	s.crossedMu.Unlock()

	out := make([]uint64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
