package main

import (
	"context"
	"fmt"

	"clob/config"

	"github.com/jessevdk/go-flags"
)

type InitCmd struct {
	RootPathFlag
	Force bool `short:"f" long:"force" description:"overwrite an existing configuration"`
}

var initCmd InitCmd

func (cmd *InitCmd) Execute(_ []string) error {
	path, err := config.Write(cmd.RootPath, config.NewDefaultConfig(cmd.RootPath), cmd.Force)
	if err != nil {
		return err
	}
	fmt.Printf("configuration written to %s\n", path)
	return nil
}

func Init(ctx context.Context, parser *flags.Parser) error {
	initCmd = InitCmd{}
	_, err := parser.AddCommand("init", "Writes a default configuration", "Writes clob.toml with the default configuration under the root path", &initCmd)
	return err
}
