package resp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CommandKind enumerates the commands the server dispatches.
type CommandKind int

const (
	Ping CommandKind = iota
	Echo
	Get
	Set
)

// Command is a decoded client request. Key/Value/Msg are meaningful per
// Kind; TTL carries the optional expiration for Set (0 = never expires).
type Command struct {
	Kind  CommandKind
	Key   string
	Value string
	Msg   string
	TTL   time.Duration
}

// ErrUnknownCommand is wrapped by ParseCommand for command names it does not
// recognize.
var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand turns a decoded RESP value into a typed command. Requests are
// arrays of bulk strings (`*2\r\n$4\r\nECHO\r\n...`); a bare bulk string is
// also accepted for argument-less commands, which some clients send inline.
func ParseCommand(v Value) (Command, error) {
	args, err := commandArgs(v)
	if err != nil {
		return Command{}, err
	}

	name := strings.ToUpper(args[0])
	switch name {
	case "PING":
		return Command{Kind: Ping}, nil

	case "ECHO":
		if len(args) < 2 {
			return Command{}, wrongArity(name)
		}
		// Multiple arguments echo back joined, matching redis-cli quoting.
		return Command{Kind: Echo, Msg: strings.Join(args[1:], " ")}, nil

	case "GET":
		if len(args) != 2 {
			return Command{}, wrongArity(name)
		}
		return Command{Kind: Get, Key: args[1]}, nil

	case "SET":
		if len(args) < 3 {
			return Command{}, wrongArity(name)
		}
		cmd := Command{Kind: Set, Key: args[1], Value: args[2]}
		ttl, err := parseSetTTL(args[3:])
		if err != nil {
			return Command{}, err
		}
		cmd.TTL = ttl
		return cmd, nil

	default:
		return Command{}, fmt.Errorf("%w '%s'", ErrUnknownCommand, args[0])
	}
}

// parseSetTTL handles the optional SET expiration flags: EX <seconds> or
// PX <milliseconds>. No flags means no expiration.
func parseSetTTL(opts []string) (time.Duration, error) {
	if len(opts) == 0 {
		return 0, nil
	}
	if len(opts) != 2 {
		return 0, errors.New("syntax error")
	}

	n, err := strconv.ParseInt(opts[1], 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid expire time in 'set' command")
	}
	switch strings.ToUpper(opts[0]) {
	case "EX":
		return time.Duration(n) * time.Second, nil
	case "PX":
		return time.Duration(n) * time.Millisecond, nil
	default:
		return 0, errors.New("syntax error")
	}
}

// commandArgs flattens a request value into its string arguments.
func commandArgs(v Value) ([]string, error) {
	switch v.Kind {
	case Array:
		if len(v.Array) == 0 {
			return nil, errors.New("empty command")
		}
		args := make([]string, 0, len(v.Array))
		for _, el := range v.Array {
			if el.Kind != BulkString || el.Null {
				return nil, errors.New("command arguments must be bulk strings")
			}
			args = append(args, el.Str)
		}
		return args, nil
	case BulkString:
		if v.Null || v.Str == "" {
			return nil, errors.New("empty command")
		}
		return []string{v.Str}, nil
	default:
		return nil, errors.New("expected command array")
	}
}

func wrongArity(name string) error {
	return fmt.Errorf("wrong number of arguments for '%s' command", strings.ToLower(name))
}
