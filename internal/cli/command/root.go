// Package command provides CLI command definitions for stashkv-cli.
//
// It uses urfave/cli/v2 for command parsing.
package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/stashkv/stashkv/internal/cli/client"
	"github.com/stashkv/stashkv/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "stashkv-cli",
		Usage:   "stashkv command-line client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			PingCommand(),
			EchoCommand(),
			GetCommand(),
			SetCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "stashkv server address",
			EnvVars: []string{"STASHKV_SERVER"},
			Value:   "localhost:6379",
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "connection and command timeout",
			Value:   5 * time.Second,
		},
	}
}

// dial opens a connection using the global flags.
func dial(c *cli.Context) (*client.Client, error) {
	return client.Dial(c.String("server"), c.Duration("timeout"))
}

// run executes one command against the server and prints the reply.
func run(c *cli.Context, tokens ...string) error {
	conn, err := dial(c)
	if err != nil {
		return err
	}
	defer conn.Close()

	reply, err := conn.Do(tokens...)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, reply.String())
	return nil
}
