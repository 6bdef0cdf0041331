package main

import (
	"clob/config"
	"clob/infra/logging"
	"clob/infra/metrics"
	"clob/infra/store"
	"clob/infra/wal/entry"
	"clob/service"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
)

type RootPathFlag struct {
	RootPath string `long:"root-path" description:"directory holding clob.toml and the data directories" default:"./clob"`
}

// loadConfig reads the configuration under root and applies the
// command-line flags over it.
func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.Read(root)
	if err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFlags(cfg *config.Config) error {
	_, err := flags.NewParser(cfg, flags.Default|flags.IgnoreUnknown).Parse()
	return err
}

// node is the storage stack shared by the commands.
type node struct {
	store   *store.Store
	journal *entry.WAL
	metrics *metrics.Metrics
	svc     *service.Service
}

func openNode(log *logging.Logger, cfg *config.Config, reg prometheus.Registerer) (*node, error) {
	st, err := store.Open(log, cfg.Store)
	if err != nil {
		return nil, err
	}
	journal, err := entry.Open(log, cfg.Journal)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	var m *metrics.Metrics
	if reg != nil {
		if m, err = metrics.New(reg); err != nil {
			_ = journal.Close()
			_ = st.Close()
			return nil, err
		}
	}
	svc, err := service.New(log, cfg.Service, st, journal, m)
	if err != nil {
		_ = journal.Close()
		_ = st.Close()
		return nil, err
	}
	return &node{store: st, journal: journal, metrics: m, svc: svc}, nil
}

func (n *node) close(log *logging.Logger) {
	if err := n.journal.Close(); err != nil {
		log.Error("closing journal", logging.Error(err))
	}
	if err := n.store.Close(); err != nil {
		log.Error("closing store", logging.Error(err))
	}
}
