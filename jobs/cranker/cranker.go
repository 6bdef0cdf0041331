// Package cranker keeps pending work moving by cranking every instrument
// that has queued items or a crossed book.
package cranker

import (
	"context"
	"time"

	"clob/config/encoding"
	"clob/domain/errs"
	"clob/domain/exchange"
	"clob/infra/logging"

	"github.com/pkg/errors"
)

type Config struct {
	Enabled  encoding.Bool     `long:"enabled"`
	Interval encoding.Duration `long:"interval" description:"time between passes"`
	// MaxPasses bounds the cranks of one instrument per pass.
	MaxPasses int `long:"max-passes"`
}

func NewDefaultConfig() Config {
	return Config{
		Enabled:   true,
		Interval:  encoding.Duration{Duration: 100 * time.Millisecond},
		MaxPasses: 16,
	}
}

// Target is the part of the service the cranker drives.
type Target interface {
	CrankCandidates() ([]uint64, error)
	Crank(ctx context.Context, instrument uint64) (*exchange.CrankResult, error)
}

type Cranker struct {
	log    *logging.Logger
	cfg    Config
	target Target
}

func New(log *logging.Logger, cfg Config, target Target) *Cranker {
	if cfg.MaxPasses <= 0 {
		cfg.MaxPasses = 1
	}
	return &Cranker{log: log.Named("cranker"), cfg: cfg, target: target}
}

func (c *Cranker) Start(ctx context.Context) {
	c.log.Info("cranker started", logging.Duration("interval", c.cfg.Interval.Duration))
	go func() {
		ticker := time.NewTicker(c.cfg.Interval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				c.log.Info("cranker stopped")
				return
			case <-ticker.C:
				if _, err := c.RunOnce(ctx); err != nil && ctx.Err() == nil {
					c.log.Error("crank pass failed", logging.Error(err))
				}
			}
		}
	}()
}

// RunOnce cranks each candidate until it reports nothing to do, is
// blocked by a full report ring, or MaxPasses is reached. It returns the
// number of cranks that made progress.
func (c *Cranker) RunOnce(ctx context.Context) (int, error) {
	ids, err := c.target.CrankCandidates()
	if err != nil {
		return 0, err
	}
	progress := 0
	for _, id := range ids {
		for i := 0; i < c.cfg.MaxPasses; i++ {
			if err := ctx.Err(); err != nil {
				return progress, err
			}
			_, err := c.target.Crank(ctx, id)
			if errors.Is(err, errs.ErrCrankEmpty) {
				break
			}
			if errors.Is(err, errs.ErrRingBufferFull) {
				c.log.Debug("crank blocked until reports are drained", logging.Instrument(id))
				break
			}
			if err != nil {
				c.log.Warn("crank failed", logging.Instrument(id), logging.Error(err))
				break
			}
			progress++
		}
	}
	return progress, nil
}
