package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

var (
	// CLIVersion is set at build time.
	CLIVersion = "v0.1.0+dev"
	// CLIVersionHash is the commit the binary was built from.
	CLIVersionHash = ""
)

// Subcommand is the signature of a sub command that can be registered.
type Subcommand func(context.Context, *flags.Parser) error

// Register registers one or more subcommands.
func Register(ctx context.Context, parser *flags.Parser, cmds ...Subcommand) error {
	for _, fn := range cmds {
		if err := fn(ctx, parser); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := Main(context.Background()); err != nil {
		os.Exit(1)
	}
}

func Main(ctx context.Context) error {
	parser := flags.NewParser(&struct{}{}, flags.Default)

	if err := Register(ctx, parser,
		Init,
		Serve,
		Replay,
		Snapshot,
		Version,
	); err != nil {
		fmt.Printf("%+v\n", err)
		return err
	}

	if _, err := parser.Parse(); err != nil {
		if t, ok := err.(*flags.Error); ok && t.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
		}
		return err
	}
	return nil
}
