package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/talDoFlemis/hokkaido"
)

var (
	// ErrMalformed is returned for a line that is not a valid command.
	ErrMalformed = errors.New("malformed command")

	// ErrUnsupported is returned for commands that parse but cannot run.
	ErrUnsupported = errors.New("unsupported command")
)

// Kind identifies a command.
type Kind uint8

const (
	Insert    Kind = iota + 1 // INC <key>
	Remove                    // REM <key>
	Print                     // IMP <version>
	Successor                 // SUC <key> <version>
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "INC"
	case Remove:
		return "REM"
	case Print:
		return "IMP"
	case Successor:
		return "SUC"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Statement is one parsed command line.
type Statement struct {
	Kind    Kind
	Key     int
	Version uint64
}

// String renders the statement the way it is echoed to the output.
func (s Statement) String() string {
	switch s.Kind {
	case Print:
		return fmt.Sprintf("%s %d", s.Kind, s.Version)
	case Successor:
		return fmt.Sprintf("%s %d %d", s.Kind, s.Key, s.Version)
	default:
		return fmt.Sprintf("%s %d", s.Kind, s.Key)
	}
}

// Blank reports whether line holds no tokens and should be skipped.
func Blank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// ParseLine parses a single command. Command names are case-insensitive and
// tokens are separated by any amount of whitespace.
func ParseLine(line string) (Statement, error) {
	tokens := strings.Fields(line)
	if len(tokens) < 2 || len(tokens) > 3 {
		return Statement{}, fmt.Errorf("%w: want 2 or 3 tokens, got %d", ErrMalformed, len(tokens))
	}

	name := strings.ToUpper(tokens[0])
	if len(tokens) == 3 {
		if name != Successor.String() {
			return Statement{}, fmt.Errorf("%w: %q takes one argument", ErrMalformed, tokens[0])
		}
		key, err := parseKey(tokens[1])
		if err != nil {
			return Statement{}, err
		}
		version, err := parseVersion(tokens[2])
		if err != nil {
			return Statement{}, err
		}
		return Statement{Kind: Successor, Key: key, Version: version}, nil
	}

	switch name {
	case Insert.String(), Remove.String():
		key, err := parseKey(tokens[1])
		if err != nil {
			return Statement{}, err
		}
		kind := Insert
		if name == Remove.String() {
			kind = Remove
		}
		return Statement{Kind: kind, Key: key}, nil
	case Print.String():
		version, err := parseVersion(tokens[1])
		if err != nil {
			return Statement{}, err
		}
		return Statement{Kind: Print, Version: version}, nil
	case Successor.String():
		return Statement{}, fmt.Errorf("%w: SUC takes a key and a version", ErrMalformed)
	default:
		return Statement{}, fmt.Errorf("%w: unknown command %q", ErrMalformed, tokens[0])
	}
}

func parseKey(token string) (int, error) {
	key, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("%w: key %q: %w", ErrMalformed, token, err)
	}
	return key, nil
}

// parseVersion rejects negative versions with ErrUnknownVersion: they are
// well formed but can never have been produced.
func parseVersion(token string) (uint64, error) {
	version, err := strconv.ParseUint(token, 10, 64)
	if err == nil {
		return version, nil
	}
	if n, serr := strconv.ParseInt(token, 10, 64); serr == nil && n < 0 {
		return 0, fmt.Errorf("version %d: %w", n, hokkaido.ErrUnknownVersion)
	}
	return 0, fmt.Errorf("%w: version %q: %w", ErrMalformed, token, err)
}
