package main

import (
	"context"
	"fmt"

	"clob/infra/logging"

	"github.com/jessevdk/go-flags"
)

type SnapshotCmd struct {
	RootPathFlag
}

var snapshotCmd SnapshotCmd

// Execute recovers the store, writes a snapshot and truncates the journal
// behind it.
func (cmd *SnapshotCmd) Execute(_ []string) error {
	cfg, err := loadConfig(cmd.RootPath)
	if err != nil {
		return err
	}
	log := logging.NewLoggerFromConfig(cfg.Logging, cfg.LogLevel.Get())
	defer log.AtExit()

	n, err := openNode(log, cfg, nil)
	if err != nil {
		return err
	}
	defer n.close(log)
	if err := n.svc.Recover(context.Background(), cfg.Journal.Dir); err != nil {
		return err
	}
	path, err := n.svc.Snapshot()
	if err != nil {
		return err
	}
	fmt.Printf("snapshot written to %s\n", path)
	return nil
}

func Snapshot(ctx context.Context, parser *flags.Parser) error {
	_, err := parser.AddCommand("snapshot", "Writes a snapshot", "Writes a snapshot of the record store and truncates the journal", &snapshotCmd)
	return err
}
