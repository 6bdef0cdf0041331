package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"clob/api/grpcserver"
	"clob/config"
	"clob/infra/logging"
	"clob/infra/metrics"
	"clob/infra/wal/exit"
	"clob/jobs/cranker"
	"clob/jobs/reporter"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
)

type ServeCmd struct {
	RootPathFlag
	config.Config
}

var serveCmd ServeCmd

func (cmd *ServeCmd) Execute(_ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := logging.NewLoggerFromConfig(logging.NewDefaultConfig(), logging.InfoLevel)
	defer log.AtExit()

	// flags are parsed again on every reload so they keep precedence
	// over the file
	watcher, err := config.NewWatcher(ctx, log, cmd.RootPath, config.Use(parseFlags))
	if err != nil {
		return err
	}
	cfg := watcher.Get()

	log = logging.NewLoggerFromConfig(cfg.Logging, cfg.LogLevel.Get())
	defer log.AtExit()
	watcher.OnConfigUpdate(func(c config.Config) {
		if log.GetLevel() != c.LogLevel.Get() {
			log.Info("updating log level",
				logging.String("old", log.GetLevel().String()),
				logging.String("new", c.LogLevel.String()))
			log.SetLevel(c.LogLevel.Get())
		}
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, log, cfg.Metrics, reg); err != nil {
				log.Error("metrics server stopped", logging.Error(err))
			}
		}()
	}

	n, err := openNode(log, &cfg, reg)
	if err != nil {
		return err
	}
	defer n.close(log)
	if err := n.svc.Recover(ctx, cfg.Journal.Dir); err != nil {
		return err
	}
	n.svc.StartSnapshotJob(ctx)

	if cfg.Cranker.Enabled {
		cranker.New(log, cfg.Cranker, n.svc).Start(ctx)
	}

	if cfg.Reporter.Enabled {
		outbox, err := exit.Open(log, cfg.Outbox)
		if err != nil {
			return err
		}
		defer outbox.Close()
		pub, err := reporter.NewPublisher(log, cfg.Reporter)
		if err != nil {
			return err
		}
		rep := reporter.New(log, cfg.Reporter, n.svc, outbox, pub, n.metrics)
		defer rep.Close()
		rep.Start(ctx)
	}

	return grpcserver.NewServer(log, cfg.API, n.svc).Start(ctx, nil)
}

func Serve(ctx context.Context, parser *flags.Parser) error {
	serveCmd = ServeCmd{Config: config.NewDefaultConfig("./clob")}
	cmd, err := parser.AddCommand("serve", "Runs the exchange", "Recovers the record store and serves the API until interrupted", &serveCmd)
	if err != nil {
		return err
	}
	// Print nested groups under parent's name using `::` as the separator.
	for _, parent := range cmd.Groups() {
		for _, grp := range parent.Groups() {
			grp.ShortDescription = parent.ShortDescription + "::" + grp.ShortDescription
		}
	}
	return nil
}
