package protocol

import "time"

// Command is a parsed client request. It is a closed set: exactly one of
// the concrete types below. A Command is produced by the Parser, consumed
// once by the command handler and then discarded.
type Command interface {
	// Name returns the canonical (uppercase) command name.
	Name() string

	sealed()
}

// Ping is the PING command. Any stray argument is ignored.
type Ping struct{}

// Echo is the ECHO command; Arg is returned to the client verbatim.
type Echo struct {
	Arg string
}

// Set is the SET command. TTL is zero when no PX option was given.
type Set struct {
	Key   string
	Value string
	TTL   time.Duration
}

// Get is the GET command.
type Get struct {
	Key string
}

func (Ping) Name() string { return "PING" }
func (Echo) Name() string { return "ECHO" }
func (Set) Name() string  { return "SET" }
func (Get) Name() string  { return "GET" }

func (Ping) sealed() {}
func (Echo) sealed() {}
func (Set) sealed()  {}
func (Get) sealed()  {}
