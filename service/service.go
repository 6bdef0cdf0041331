package service

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"clob/config/encoding"
	"clob/domain/errs"
	"clob/domain/exchange"
	"clob/infra/logging"
	"clob/infra/metrics"
	"clob/infra/store"
	"clob/infra/wal/entry"

	"github.com/pkg/errors"
)

type Config struct {
	MatchBudget      int    `long:"match-budget" description:"fills one invocation may perform"`
	MaxItemsPerCrank int    `long:"max-items-per-crank"`
	PendingCapacity  uint64 `long:"pending-capacity" description:"pending-work ring size of new groups"`
	ReportCapacity   uint64 `long:"report-capacity" description:"execution-report ring size of new instruments"`
	MaxOrdersPerSide int    `long:"max-orders-per-side"`

	SnapshotDir      string            `long:"snapshot-dir"`
	SnapshotInterval encoding.Duration `long:"snapshot-interval" description:"0 disables periodic snapshots"`
	SnapshotKeep     int               `long:"snapshot-keep"`
}

func NewDefaultConfig(root string) Config {
	return Config{
		MatchBudget:      exchange.DefaultMatchBudget,
		MaxItemsPerCrank: exchange.DefaultMaxItemsPerCrank,
		PendingCapacity:  exchange.DefaultPendingCapacity,
		ReportCapacity:   exchange.DefaultReportCapacity,
		MaxOrdersPerSide: 2048,
		SnapshotDir:      filepath.Join(root, "snapshots"),
		SnapshotInterval: encoding.Duration{Duration: 10 * time.Minute},
		SnapshotKeep:     3,
	}
}

type Service struct {
	log     *logging.Logger
	cfg     Config
	engine  *exchange.Engine
	store   *store.Store
	journal *entry.WAL
	metrics *metrics.Metrics
	clock   func() time.Time

	// quiesce is held shared by every write and exclusively by snapshots.
	quiesce sync.RWMutex
	// provision serialises id assignment with the commit that records it.
	provision      sync.Mutex
	lastGroup      uint64
	lastInstrument uint64

	groupsMu sync.Mutex
	groups   map[uint64]*sync.Mutex

	crossedMu sync.Mutex
	crossed   map[uint64]struct{}
}

func New(log *logging.Logger, cfg Config, st *store.Store, journal *entry.WAL, m *metrics.Metrics) (*Service, error) {
	s := &Service{
		log: log.Named("service"),
		cfg: cfg,
		engine: exchange.NewEngine(exchange.Params{
			MatchBudget:      cfg.MatchBudget,
			MaxItemsPerCrank: cfg.MaxItemsPerCrank,
		}),
		store:   st,
		journal: journal,
		metrics: m,
		clock:   time.Now,
		groups:  map[uint64]*sync.Mutex{},
		crossed: map[uint64]struct{}{},
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// reload reads the id counters and the crossed books from the store.
func (s *Service) reload() error {
	var err error
	if s.lastGroup, s.lastInstrument, err = s.store.LastIDs(); err != nil {
		return err
	}
	ids, err := s.Instruments()
	if err != nil {
		return err
	}
	for _, id := range ids {
		inst, err := s.loadInstrument(id)
		if err != nil {
			return err
		}
		s.markCrossed(inst)
	}
	return nil
}

func (s *Service) groupLock(id uint64) *sync.Mutex {
	s.groupsMu.Lock()
	defer s.groupsMu.Unlock()
	mu, ok := s.groups[id]
	if !ok {
		mu = &sync.Mutex{}
		s.groups[id] = mu
	}
	return mu
}

func (s *Service) markCrossed(inst *exchange.Instrument) {
	s.crossedMu.Lock()
	defer s.crossedMu.Unlock()
	if inst.Book.Crossed() {
		s.crossed[inst.ID] = struct{}{}
	} else {
		delete(s.crossed, inst.ID)
	}
}

func (s *Service) loadGroup(id uint64) (*exchange.Group, error) {
	rec, err := s.store.Group(id)
	if err != nil {
		return nil, err
	}
	return exchange.DecodeGroup(rec)
}

func (s *Service) loadInstrument(id uint64) (*exchange.Instrument, error) {
	rec, err := s.store.Instrument(id)
	if err != nil {
		return nil, err
	}
	return exchange.DecodeInstrument(rec)
}

// txn is the state one invocation works on. Instruments are decoded on
// first use and all of them are written back on commit.
type txn struct {
	s           *Service
	group       *exchange.Group
	instruments map[uint64]*exchange.Instrument

	lastGroup      uint64
	lastInstrument uint64
}

// Instrument implements exchange.Resolver.
func (t *txn) Instrument(id uint64) (*exchange.Instrument, error) {
	if inst, ok := t.instruments[id]; ok {
		return inst, nil
	}
	inst, err := t.s.loadInstrument(id)
	if err != nil {
		return nil, err
	}
	if t.group != nil && inst.Group != t.group.ID {
		return nil, errors.Wrapf(errs.ErrNotFound, "instrument %d not in group %d", id, t.group.ID)
	}
	t.instruments[id] = inst
	return inst, nil
}

// invocation is one journaled write.
type invocation struct {
	typ     entry.RecordType
	group   uint64
	now     int64
	// payload is encoded after run, which may assign ids.
	payload func() []byte
	// seq is set when the invocation comes from the journal.
	seq uint64
	// create skips loading the group: run provides it.
	create    bool
	provision bool
	run       func(t *txn) (changed bool, err error)
}

// execute runs inv under the locks of its group. When run reports a
// change the invocation is journaled and the records it touched are
// committed with the journal sequence. run's error is returned either
// way. An invocation that changed nothing is neither journaled nor
// committed.
func (s *Service) execute(ctx context.Context, inv invocation) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.quiesce.RLock()
	defer s.quiesce.RUnlock()

	if !inv.create {
		mu := s.groupLock(inv.group)
		mu.Lock()
		defer mu.Unlock()
	}
	if inv.provision {
		s.provision.Lock()
		defer s.provision.Unlock()
	}

	if inv.seq != 0 {
		applied, err := s.store.Applied(inv.group)
		if err != nil {
			return 0, err
		}
		if applied >= inv.seq {
			return inv.seq, nil
		}
	}

	t := &txn{s: s, instruments: map[uint64]*exchange.Instrument{}}
	if !inv.create {
		g, err := s.loadGroup(inv.group)
		if err != nil {
			return 0, err
		}
		t.group = g
	}

	changed, runErr := inv.run(t)
	if !changed {
		return 0, runErr
	}

	seq := inv.seq
	if seq == 0 {
		var err error
		if seq, err = s.journal.Append(inv.typ, inv.now, inv.payload()); err != nil {
			return 0, errors.Wrap(err, "journaling invocation")
		}
	}
	if err := s.commit(t, seq); err != nil {
		s.log.Error("commit failed after journal append",
			logging.String("type", inv.typ.String()),
			logging.Uint64("seq", seq),
			logging.Error(err))
		return 0, err
	}
	return seq, runErr
}

func (s *Service) commit(t *txn, seq uint64) error {
	b := s.store.NewBatch()
	if err := s.stage(b, t, seq); err != nil {
		b.Discard()
		return err
	}
	if err := b.Commit(); err != nil {
		return err
	}

	// only provisioning invocations set these, under s.provision
	if t.lastGroup != 0 {
		s.lastGroup = max(s.lastGroup, t.lastGroup)
	}
	if t.lastInstrument != 0 {
		s.lastInstrument = max(s.lastInstrument, t.lastInstrument)
	}
	g := strconv.FormatUint(t.group.ID, 10)
	s.metrics.PendingDepth(g, t.group.Pending.Len())
	for _, inst := range t.instruments {
		s.markCrossed(inst)
		s.metrics.ReportDepth(strconv.FormatUint(inst.ID, 10), inst.Reports.Len())
	}
	return nil
}

func (s *Service) stage(b *store.Batch, t *txn, seq uint64) error {
	if err := b.PutGroup(t.group.ID, exchange.EncodeGroup(t.group)); err != nil {
		return err
	}
	for id, inst := range t.instruments {
		if err := b.PutInstrument(id, inst.Group, exchange.EncodeInstrument(inst)); err != nil {
			return err
		}
	}
	if err := b.SetApplied(t.group.ID, seq); err != nil {
		return err
	}
	if t.lastGroup != 0 {
		if err := b.SetLastGroup(max(s.lastGroup, t.lastGroup)); err != nil {
			return err
		}
	}
	if t.lastInstrument != 0 {
		if err := b.SetLastInstrument(max(s.lastInstrument, t.lastInstrument)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) now() int64 {
	return s.clock().UnixNano()
}
