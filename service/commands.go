package service

import (
	"context"
	"strconv"
	"time"

	"clob/domain/errs"
	"clob/domain/exchange"
	"clob/domain/orderbook"
	"clob/domain/vault"
	"clob/infra/logging"
	"clob/infra/wal/entry"

	"github.com/pkg/errors"
)

//
// ──────────────────────────────────────────────────────────
// Provisioning
// ──────────────────────────────────────────────────────────
//

// CreateInstrumentGroup provisions a group with an empty pending ring and
// returns its id.
func (s *Service) CreateInstrumentGroup(ctx context.Context, authority uint64) (uint64, error) {
	defer s.metrics.Observe("create_group", time.Now())
	op := createGroupOp{Authority: authority, PendingCapacity: s.cfg.PendingCapacity}
	return s.createGroup(ctx, op, s.now(), 0)
}

func (s *Service) createGroup(ctx context.Context, op createGroupOp, now int64, seq uint64) (uint64, error) {
	if op.Authority == 0 {
		return 0, errors.Wrap(errs.ErrUnauthorized, "group authority must be set")
	}
	inv := invocation{
		typ:       entry.RecordCreateGroup,
		group:     op.Group,
		now:       now,
		seq:       seq,
		create:    true,
		provision: true,
		payload:   func() []byte { return op.encode() },
	}
	inv.run = func(t *txn) (bool, error) {
		if op.Group == 0 {
			op.Group = s.lastGroup + 1
		}
		t.group = exchange.NewGroup(op.Group, op.Authority, op.PendingCapacity)
		t.lastGroup = op.Group
		return true, nil
	}
	if _, err := s.execute(ctx, inv); err != nil {
		return 0, err
	}
	if seq == 0 {
		s.log.Info("group created", logging.Group(op.Group), logging.Uint64("authority", op.Authority))
	}
	return op.Group, nil
}

type CreateInstrumentRequest struct {
	Group     uint64
	Authority uint64
	Base      string
	Quote     string
}

// CreateInstrument provisions an instrument in a group. Only the group
// authority may do so.
func (s *Service) CreateInstrument(ctx context.Context, req CreateInstrumentRequest) (uint64, error) {
	defer s.metrics.Observe("create_instrument", time.Now())
	op := createInstrumentOp{
		Group:          req.Group,
		Authority:      req.Authority,
		Base:           req.Base,
		Quote:          req.Quote,
		BookCapacity:   uint64(s.cfg.MaxOrdersPerSide),
		ReportCapacity: s.cfg.ReportCapacity,
	}
	return s.createInstrument(ctx, op, s.now(), 0)
}

func (s *Service) createInstrument(ctx context.Context, op createInstrumentOp, now int64, seq uint64) (uint64, error) {
	inv := invocation{
		typ:       entry.RecordCreateInstrument,
		group:     op.Group,
		now:       now,
		seq:       seq,
		provision: true,
		payload:   func() []byte { return op.encode() },
	}
	inv.run = func(t *txn) (bool, error) {
		if t.group.Authority != op.Authority {
			return false, errors.Wrapf(errs.ErrUnauthorized, "%d is not the authority of group %d", op.Authority, op.Group)
		}
		if op.Instrument == 0 {
			op.Instrument = s.lastInstrument + 1
		}
		inst, err := exchange.NewInstrument(op.Instrument, op.Group, op.Base, op.Quote, exchange.InstrumentParams{
			MaxOrdersPerSide: int(op.BookCapacity),
			ReportCapacity:   op.ReportCapacity,
		})
		if err != nil {
			return false, err
		}
		t.group.AddInstrument(inst.ID)
		t.instruments[inst.ID] = inst
		t.lastInstrument = inst.ID
		return true, nil
	}
	if _, err := s.execute(ctx, inv); err != nil {
		return 0, err
	}
	if seq == 0 {
		s.log.Info("instrument created",
			logging.Instrument(op.Instrument),
			logging.Group(op.Group),
			logging.String("base", op.Base),
			logging.String("quote", op.Quote))
	}
	return op.Instrument, nil
}

//
// ──────────────────────────────────────────────────────────
// Funding
// ──────────────────────────────────────────────────────────
//

func (s *Service) Deposit(ctx context.Context, instrument, account uint64, asset vault.Asset, amount uint64) error {
	defer s.metrics.Observe("deposit", time.Now())
	return s.fund(ctx, entry.RecordDeposit, fundOp{Instrument: instrument, Account: account, Asset: asset, Amount: amount}, s.now(), 0)
}

// Withdraw moves available funds out of custody. Reserved funds cannot
// be withdrawn.
func (s *Service) Withdraw(ctx context.Context, instrument, account uint64, asset vault.Asset, amount uint64) error {
	defer s.metrics.Observe("withdraw", time.Now())
	return s.fund(ctx, entry.RecordWithdraw, fundOp{Instrument: instrument, Account: account, Asset: asset, Amount: amount}, s.now(), 0)
}

func (s *Service) fund(ctx context.Context, typ entry.RecordType, op fundOp, now int64, seq uint64) error {
	group, err := s.store.GroupOf(op.Instrument)
	if err != nil {
		return err
	}
	inv := invocation{typ: typ, group: group, now: now, seq: seq, payload: func() []byte { return op.encode() }}
	inv.run = func(t *txn) (bool, error) {
		inst, err := t.Instrument(op.Instrument)
		if err != nil {
			return false, err
		}
		if typ == entry.RecordDeposit {
			err = inst.Ledger.Deposit(op.Account, op.Asset, op.Amount)
		} else {
			err = inst.Ledger.Withdraw(op.Account, op.Asset, op.Amount)
		}
		return err == nil, err
	}
	_, err = s.execute(ctx, inv)
	return err
}

//
// ──────────────────────────────────────────────────────────
// Trading
// ──────────────────────────────────────────────────────────
//

type SubmitRequest struct {
	Instrument uint64
	Owner      uint64
	Side       orderbook.Side
	Type       orderbook.OrderType
	Price      uint64
	Size       uint64
}

// SubmitOrder admits an order. A result comes back whenever state
// changed, including together with ErrRingBufferFull when a GTC order
// was left resting because the pending ring was full.
func (s *Service) SubmitOrder(ctx context.Context, req SubmitRequest) (*exchange.SubmitResult, error) {
	defer s.metrics.Observe("submit", time.Now())
	op := submitOp(req)
	res, err := s.submit(ctx, op, s.now(), 0)
	s.metrics.OrderSubmitted(req.Type.String(), submitOutcome(res, err))
	if res != nil {
		s.metrics.Fills(strconv.FormatUint(req.Instrument, 10), len(res.Reports))
	}
	switch {
	case res != nil && err != nil:
		s.log.Warn("pending ring full, order rests crossed",
			logging.Instrument(req.Instrument),
			logging.OrderID(res.OrderID),
			logging.Error(err))
	case err != nil:
		s.log.Debug("order rejected", logging.Instrument(req.Instrument), logging.Error(err))
	}
	return res, err
}

func submitOutcome(res *exchange.SubmitResult, err error) string {
	switch {
	case res == nil:
		return "rejected:" + errs.KindOf(err).String()
	case err != nil:
		return "parked"
	case res.QueuedForCrank:
		return "queued"
	case res.Resting:
		return "resting"
	case res.Released > 0:
		return "released"
	default:
		return "filled"
	}
}

func (s *Service) submit(ctx context.Context, op submitOp, now int64, seq uint64) (*exchange.SubmitResult, error) {
	group, err := s.store.GroupOf(op.Instrument)
	if err != nil {
		return nil, err
	}
	var res *exchange.SubmitResult
	inv := invocation{typ: entry.RecordSubmit, group: group, now: now, seq: seq, payload: func() []byte { return op.encode() }}
	inv.run = func(t *txn) (bool, error) {
		inst, err := t.Instrument(op.Instrument)
		if err != nil {
			return false, err
		}
		res, err = s.engine.SubmitOrder(t.group, inst, exchange.OrderRequest{
			Owner: op.Owner,
			Side:  op.Side,
			Type:  op.Type,
			Price: op.Price,
			Size:  op.Size,
		}, now)
		return res != nil, err
	}
	if _, err := s.execute(ctx, inv); err != nil {
		if res != nil && errors.Is(err, errs.ErrRingBufferFull) {
			return res, err
		}
		return nil, err
	}
	return res, nil
}

// CancelOrder removes a resting order of owner and releases its
// reservation.
func (s *Service) CancelOrder(ctx context.Context, instrument, orderID, owner uint64) (*exchange.CancelResult, error) {
	defer s.metrics.Observe("cancel", time.Now())
	return s.cancel(ctx, cancelOp{Instrument: instrument, OrderID: orderID, Owner: owner}, s.now(), 0)
}

func (s *Service) cancel(ctx context.Context, op cancelOp, now int64, seq uint64) (*exchange.CancelResult, error) {
	group, err := s.store.GroupOf(op.Instrument)
	if err != nil {
		return nil, err
	}
	var res *exchange.CancelResult
	inv := invocation{typ: entry.RecordCancel, group: group, now: now, seq: seq, payload: func() []byte { return op.encode() }}
	inv.run = func(t *txn) (bool, error) {
		inst, err := t.Instrument(op.Instrument)
		if err != nil {
			return false, err
		}
		res, err = s.engine.CancelOrder(inst, op.OrderID, op.Owner)
		return res != nil, err
	}
	if _, err := s.execute(ctx, inv); err != nil {
		return nil, err
	}
	return res, nil
}

// Crank serves the pending work of the instrument's group and uncrosses
// the instrument's book. Anyone may crank.
func (s *Service) Crank(ctx context.Context, instrument uint64) (*exchange.CrankResult, error) {
	defer s.metrics.Observe("crank", time.Now())
	res, err := s.crank(ctx, instrumentOp{Instrument: instrument}, s.now(), 0)
	switch {
	case err == nil:
		s.metrics.Crank("progress")
		s.metrics.Fills(strconv.FormatUint(instrument, 10), len(res.Reports))
		s.log.Debug("crank",
			logging.Instrument(instrument),
			logging.Int("drained", res.Drained),
			logging.Int("requeued", res.Requeued),
			logging.Uint64("remaining", res.Remaining),
			logging.Bool("uncrossed", res.Uncrossed))
	case errors.Is(err, errs.ErrCrankEmpty):
		s.metrics.Crank("empty")
	case errors.Is(err, errs.ErrRingBufferFull):
		s.metrics.Crank("blocked")
	default:
		s.metrics.Crank("error")
	}
	return res, err
}

func (s *Service) crank(ctx context.Context, op instrumentOp, now int64, seq uint64) (*exchange.CrankResult, error) {
	group, err := s.store.GroupOf(op.Instrument)
	if err != nil {
		return nil, err
	}
	var res *exchange.CrankResult
	inv := invocation{typ: entry.RecordCrank, group: group, now: now, seq: seq, payload: func() []byte { return op.encode() }}
	inv.run = func(t *txn) (bool, error) {
		inst, err := t.Instrument(op.Instrument)
		if err != nil {
			return false, err
		}
		res, err = s.engine.Crank(t.group, inst, t, now)
		return res != nil, err
	}
	if _, err := s.execute(ctx, inv); err != nil {
		return nil, err
	}
	return res, nil
}

// AckReports drops the reports of instrument up to and including
// through, once the consumer has archived them.
func (s *Service) AckReports(ctx context.Context, instrument, through uint64) (uint64, error) {
	defer s.metrics.Observe("ack_reports", time.Now())
	return s.ack(ctx, instrumentOp{Instrument: instrument, Through: through}, s.now(), 0)
}

func (s *Service) ack(ctx context.Context, op instrumentOp, now int64, seq uint64) (uint64, error) {
	group, err := s.store.GroupOf(op.Instrument)
	if err != nil {
		return 0, err
	}
	var dropped uint64
	inv := invocation{typ: entry.RecordAckReports, group: group, now: now, seq: seq, payload: func() []byte { return op.encode() }}
	inv.run = func(t *txn) (bool, error) {
		inst, err := t.Instrument(op.Instrument)
		if err != nil {
			return false, err
		}
		dropped = inst.AckReports(op.Through)
		return dropped > 0, nil
	}
	if _, err := s.execute(ctx, inv); err != nil {
		return 0, err
	}
	return dropped, nil
}
