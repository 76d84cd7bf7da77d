package command

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
)

// PingCommand checks server liveness.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check that the server is alive",
		Action: func(c *cli.Context) error {
			return run(c, "PING")
		},
	}
}

// EchoCommand sends a message and prints it back.
func EchoCommand() *cli.Command {
	return &cli.Command{
		Name:      "echo",
		Usage:     "Echo a message off the server",
		ArgsUsage: "<message>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("echo requires exactly one argument")
			}
			return run(c, "ECHO", c.Args().Get(0))
		},
	}
}

// GetCommand fetches a key.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get the value of a key",
		ArgsUsage: "<key>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("get requires exactly one argument")
			}
			return run(c, "GET", c.Args().Get(0))
		},
	}
}

// SetCommand stores a key, optionally with a TTL in milliseconds.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Set a key to a value",
		ArgsUsage: "<key> <value>",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "px",
				Usage: "expire the key after `MILLIS` milliseconds",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("set requires exactly two arguments")
			}
			key, value := c.Args().Get(0), c.Args().Get(1)
			if millis := c.Int64("px"); millis > 0 {
				return run(c, "SET", key, value, "PX", strconv.FormatInt(millis, 10))
			}
			return run(c, "SET", key, value)
		},
	}
}
