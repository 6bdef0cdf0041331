//lint:file-ignore SA5008 duplicated struct tags are ok for config

// Package reporter moves execution reports out of the engine. Each pass
// archives the undrained reports of every instrument in the outbox,
// acknowledges them so their ring slots free up, then publishes what the
// outbox holds. Delivery is at least once.
package reporter

import (
	"context"
	"time"

	"clob/config/encoding"
	"clob/domain/exchange"
	"clob/infra/kafka"
	"clob/infra/logging"
	"clob/infra/metrics"
	"clob/infra/wal/exit"

	"github.com/pkg/errors"
)

type Config struct {
	Enabled  encoding.Bool     `long:"enabled"`
	Driver   string            `long:"driver" choice:"sarama" choice:"kafka-go" choice:"log"`
	Brokers  []string          `long:"broker" description:"kafka broker address, may be repeated"`
	Topic    string            `long:"topic"`
	Interval encoding.Duration `long:"interval" description:"time between passes"`
	// BatchSize bounds the reports drained per instrument and published per
	// batch in one pass.
	BatchSize  int    `long:"batch-size"`
	MaxRetries uint32 `long:"max-retries" description:"failed publishes before a report is left for an operator"`
}

func NewDefaultConfig() Config {
	return Config{
		Enabled:    true,
		Driver:     DriverLog,
		Brokers:    []string{"localhost:9092"},
		Topic:      "clob.execution-reports",
		Interval:   encoding.Duration{Duration: 250 * time.Millisecond},
		BatchSize:  256,
		MaxRetries: 10,
	}
}

// Source is the part of the service the reporter drains.
type Source interface {
	Instruments() ([]uint64, error)
	PeekReports(instrument uint64, limit int) ([]exchange.ExecutionReport, error)
	AckReports(ctx context.Context, instrument, through uint64) (uint64, error)
}

type Reporter struct {
	log       *logging.Logger
	cfg       Config
	source    Source
	outbox    *exit.ExitWAL
	publisher Publisher
	metrics   *metrics.Metrics
}

func New(log *logging.Logger, cfg Config, source Source, outbox *exit.ExitWAL, publisher Publisher, m *metrics.Metrics) *Reporter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}
	return &Reporter{
		log:       log.Named("reporter"),
		cfg:       cfg,
		source:    source,
		outbox:    outbox,
		publisher: publisher,
		metrics:   m,
	}
}

// Start runs a pass every cfg.Interval until ctx is done.
func (r *Reporter) Start(ctx context.Context) {
	r.log.Info("reporter started", logging.Duration("interval", r.cfg.Interval.Duration))
	go func() {
		ticker := time.NewTicker(r.cfg.Interval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.log.Info("reporter stopped")
				return
			case <-ticker.C:
				if err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
					r.log.Error("report pass failed", logging.Error(err))
				}
			}
		}
	}()
}

// RunOnce drains, publishes and purges once. Acknowledged outbox records
// are only purged after a pass in which every drain succeeded, so a
// report is never archived twice.
func (r *Reporter) RunOnce(ctx context.Context) error {
	_, drainErr := r.Drain(ctx)
	if _, err := r.Flush(ctx); err != nil {
		return err
	}
	if drainErr != nil {
		return drainErr
	}
	if _, err := r.outbox.PurgeAcked(); err != nil {
		return errors.Wrap(err, "purging outbox")
	}
	return nil
}

// Drain archives the undrained reports of every instrument and
// acknowledges them. It returns how many reports it archived.
func (r *Reporter) Drain(ctx context.Context) (int, error) {
	ids, err := r.source.Instruments()
	if err != nil {
		return 0, err
	}
	total := 0
	var firstErr error
	for _, id := range ids {
		n, err := r.drainInstrument(ctx, id)
		total += n
		if err != nil {
			r.log.Warn("draining reports failed", logging.Instrument(id), logging.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return total, firstErr
}

func (r *Reporter) drainInstrument(ctx context.Context, id uint64) (int, error) {
	reports, err := r.source.PeekReports(id, r.cfg.BatchSize)
	if err != nil || len(reports) == 0 {
		return 0, err
	}
	entries := make([]exit.Entry, len(reports))
	for i, rep := range reports {
		entries[i] = exit.Entry{
			Key:     exit.Key{Instrument: id, Seq: rep.Seq},
			Payload: EncodeReport(rep),
		}
	}
	added, err := r.outbox.PutNew(entries)
	if err != nil {
		return 0, errors.Wrap(err, "archiving reports")
	}
	through := reports[len(reports)-1].Seq
	if _, err := r.source.AckReports(ctx, id, through); err != nil {
		return added, errors.Wrapf(err, "acknowledging reports through %d", through)
	}
	return added, nil
}

// Flush publishes the outbox records that are not acknowledged yet and
// returns how many were acknowledged by the broker. Records left SENT by
// a crash are published again.
func (r *Reporter) Flush(ctx context.Context) (int, error) {
	var (
		keys []exit.Key
		recs []exit.ExitRecord
	)
	collect := func(k exit.Key, rec exit.ExitRecord) error {
		if rec.State == exit.StateFailed && rec.Retries >= r.cfg.MaxRetries {
			return nil
		}
		keys = append(keys, k)
		recs = append(recs, rec)
		return nil
	}
	for _, state := range []exit.ExitState{exit.StateSent, exit.StateNew, exit.StateFailed} {
		if err := r.outbox.ScanByState(state, r.cfg.BatchSize, collect); err != nil {
			return 0, err
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, len(keys))
	for i, k := range keys {
		if err := r.outbox.UpdateState(k, exit.StateSent, recs[i].Retries); err != nil {
			return 0, err
		}
		msgs[i] = kafka.Message{Key: messageKey(k.Instrument), Value: recs[i].Payload}
	}

	if err := r.publisher.Publish(ctx, msgs); err != nil {
		r.metrics.Published("failed", len(msgs))
		for i, k := range keys {
			retries := recs[i].Retries + 1
			if uerr := r.outbox.UpdateState(k, exit.StateFailed, retries); uerr != nil {
				return 0, uerr
			}
			if retries == r.cfg.MaxRetries {
				r.log.Error("report given up after retries",
					logging.Instrument(k.Instrument),
					logging.Uint64("seq", k.Seq),
					logging.Uint32("retries", retries))
			}
		}
		return 0, errors.Wrap(err, "publishing reports")
	}

	for _, k := range keys {
		if err := r.outbox.UpdateState(k, exit.StateAcked, 0); err != nil {
			return 0, err
		}
	}
	r.metrics.Published("acked", len(msgs))
	r.log.Debug("reports published", logging.Int("count", len(msgs)))
	return len(msgs), nil
}

func (r *Reporter) Close() error {
	return r.publisher.Close()
}
