package main

import (
	"context"

	"clob/infra/logging"

	"github.com/jessevdk/go-flags"
)

type ReplayCmd struct {
	RootPathFlag
}

var replayCmd ReplayCmd

// Execute brings the record store up to date with the journal and exits.
func (cmd *ReplayCmd) Execute(_ []string) error {
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
	return n.svc.Recover(context.Background(), cfg.Journal.Dir)
}

func Replay(ctx context.Context, parser *flags.Parser) error {
	_, err := parser.AddCommand("replay", "Replays the journal", "Replays the journal into the record store without serving", &replayCmd)
	return err
}
