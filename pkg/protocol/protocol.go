// Package protocol implements the plain-text line protocol spoken between
// Hashline clients and servers.
//
// The wire format is one ASCII command per line, terminated by '\n' (a
// trailing '\r' is tolerated and stripped):
//
//	write KEY VALUE [TTL]
//	add KEY VALUE [TTL]
//	update KEY VALUE [TTL]
//	search KEY
//	delete KEY
//	dump [INDEX OFFSET]
//	size
//	wipe
//	quit
//
// KEY is at most 255 bytes, VALUE at most 767 bytes, and neither may
// contain whitespace. TTL is a whole number of seconds, >= 0; when omitted
// the server applies its "effectively infinite" default.
//
// The package has two halves:
//
//   - LineBuffer turns a TCP byte stream, delivered as arbitrarily sized
//     reads, into a sequence of complete lines. It is restartable across
//     any number of partial reads, and a single read carrying several
//     terminated commands yields all of them in order.
//   - ParseCommand turns one line into a Command, validating the verb,
//     arity, field sizes, and TTL before anything touches the store.
//
// Example usage:
//
//	var lb protocol.LineBuffer
//	lb.Feed(chunk)
//	for {
//		line, ok, err := lb.Next()
//		if err != nil {
//			// oversized line: report and keep reading
//		}
//		if !ok {
//			break
//		}
//		cmd, err := protocol.ParseCommand(line)
//		// dispatch cmd
//	}
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field and line limits. MaxLineLen bounds the accumulation buffer: the
// longest valid command is a verb, a maximal key, a maximal value, and a
// TTL, so anything past the bound can never parse.
const (
	MaxKeyLen   = 255
	MaxValueLen = 767
	MaxLineLen  = 16 + 1 + MaxKeyLen + 1 + MaxValueLen + 32
)

// Reply lines shared by the server (which writes them) and the client
// (which recognizes them).
const (
	ReplyOK       = "OK"
	ReplyNotFound = "Not found"
	ReplyWiped    = "All clean!"
	ReplyGoodbye  = "Goodbye!"

	ReplyErrWrite     = "Error: failed to write"
	ReplyErrAdd       = "Error: failed to add, key exists"
	ReplyErrUpdate    = "Error: failed to update, key not found"
	ReplyErrDump      = "Error: failed to dump store"
	ReplyErrUnknown   = "Error: unknown command! Use write, add, update, search, delete, dump, size, wipe or quit"
	ReplyErrInvalid   = "Error: invalid command! Empty line"
	ReplyErrLineLimit = "Error: line too long"
)

// Decoder and parser errors.
var (
	// ErrLineTooLong is reported by LineBuffer.Next when a line exceeds
	// MaxLineLen. The oversized bytes are discarded up to the next
	// terminator and decoding continues.
	ErrLineTooLong = errors.New("protocol: line exceeds maximum length")

	// ErrEmptyCommand is returned by ParseCommand for a line with no tokens.
	ErrEmptyCommand = errors.New("protocol: empty command")

	ErrKeyTooLong   = errors.New("protocol: key exceeds 255 bytes")
	ErrValueTooLong = errors.New("protocol: value exceeds 767 bytes")
	ErrBadTTL       = errors.New("protocol: TTL must be a whole number of seconds >= 0")
)

// UnknownCommandError is returned by ParseCommand for an unrecognized verb.
type UnknownCommandError struct {
	Verb string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("protocol: unknown command %q", e.Verb)
}

// UsageError is returned by ParseCommand when a known verb has the wrong
// number of fields. Usage holds the expected syntax.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Usage
}

// Verb identifies a protocol command.
type Verb uint8

const (
	VerbWrite  Verb = iota // write KEY VALUE [TTL] - upsert
	VerbAdd                // add KEY VALUE [TTL] - insert if absent
	VerbUpdate             // update KEY VALUE [TTL] - overwrite if present
	VerbSearch             // search KEY - lazy-expiring lookup
	VerbDelete             // delete KEY - remove if present
	VerbDump               // dump [INDEX OFFSET] - sweep and list a bucket range
	VerbSize               // size - sweep and report count, capacity
	VerbWipe               // wipe - reset the table
	VerbQuit               // quit - close the connection
)

// Command is one parsed protocol line. Which fields are meaningful depends
// on the verb: Key and Value for the write family, Key alone for search and
// delete, the Dump fields for dump.
type Command struct {
	Verb  Verb
	Key   string
	Value string

	// TTL is valid only when HasTTL is true; otherwise the server applies
	// its default lifetime.
	TTL    time.Duration
	HasTTL bool

	// DumpAll selects a whole-table dump; otherwise DumpStart and DumpLen
	// give the requested bucket window.
	DumpAll   bool
	DumpStart int
	DumpLen   int
}

// LineBuffer accumulates bytes from a socket and yields complete lines.
// The zero value is ready for use. It is not safe for concurrent use; each
// connection owns exactly one LineBuffer.
//
// A line longer than MaxLineLen puts the buffer into discard mode: the
// oversized bytes are dropped until the next terminator, Next reports
// ErrLineTooLong exactly once, and subsequent lines decode normally.
type LineBuffer struct {
	buf        []byte
	discarding bool
}

// Feed appends one read's worth of bytes to the buffer.
func (b *LineBuffer) Feed(p []byte) {
	b.buf = append(b.buf, p...)
}

// Next pops the next complete line, with the terminator and any trailing
// '\r' stripped. ok is false when no complete line is buffered yet; the
// partial tail is retained for the next Feed.
//
// Returns:
//   - The line and true when a complete line was available
//   - ok false when more bytes are needed
//   - ErrLineTooLong once per oversized line
func (b *LineBuffer) Next() (line string, ok bool, err error) {
	if b.discarding {
		i := bytes.IndexByte(b.buf, '\n')
		if i < 0 {
			b.buf = b.buf[:0]
			return "", false, nil
		}
		b.buf = b.buf[i+1:]
		b.discarding = false
	}

	i := bytes.IndexByte(b.buf, '\n')
	if i < 0 {
		if len(b.buf) > MaxLineLen {
			b.buf = b.buf[:0]
			b.discarding = true
			return "", false, ErrLineTooLong
		}
		return "", false, nil
	}

	if i > MaxLineLen {
		b.buf = b.buf[i+1:]
		return "", false, ErrLineTooLong
	}

	raw := b.buf[:i]
	b.buf = b.buf[i+1:]
	if n := len(raw); n > 0 && raw[n-1] == '\r' {
		raw = raw[:n-1]
	}
	return string(raw), true, nil
}

// Pending reports how many bytes of an incomplete line are buffered.
func (b *LineBuffer) Pending() int {
	return len(b.buf)
}

// ParseCommand parses one decoded line into a Command. The verb is matched
// case-insensitively; fields are split on runs of whitespace, which is also
// what forbids embedded whitespace in KEY and VALUE. Arity, field sizes,
// and the TTL are validated here so the store never sees bogus fields.
//
// Example:
//
//	cmd, err := protocol.ParseCommand("write session abc123 30")
//	// cmd.Verb == VerbWrite, cmd.TTL == 30*time.Second
//
// Returns:
//   - The parsed command
//   - ErrEmptyCommand, *UnknownCommandError, *UsageError, or a field error
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrEmptyCommand
	}

	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "write":
		return parseMutation(VerbWrite, "write KEY VALUE [TTL]", args)
	case "add":
		return parseMutation(VerbAdd, "add KEY VALUE [TTL]", args)
	case "update":
		return parseMutation(VerbUpdate, "update KEY VALUE [TTL]", args)
	case "search":
		return parseKeyed(VerbSearch, "search KEY", args)
	case "delete":
		return parseKeyed(VerbDelete, "delete KEY", args)
	case "dump":
		return parseDump(args)
	case "size":
		return parseBare(VerbSize, "size", args)
	case "wipe":
		return parseBare(VerbWipe, "wipe", args)
	case "quit":
		return parseBare(VerbQuit, "quit", args)
	default:
		return Command{}, &UnknownCommandError{Verb: fields[0]}
	}
}

func parseMutation(verb Verb, usage string, args []string) (Command, error) {
	if len(args) < 2 || len(args) > 3 {
		return Command{}, &UsageError{Usage: usage}
	}

	cmd := Command{Verb: verb, Key: args[0], Value: args[1]}
	if err := checkKey(cmd.Key); err != nil {
		return Command{}, err
	}
	if len(cmd.Value) > MaxValueLen {
		return Command{}, ErrValueTooLong
	}

	if len(args) == 3 {
		secs, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil || secs < 0 {
			return Command{}, ErrBadTTL
		}
		cmd.TTL = time.Duration(secs) * time.Second
		cmd.HasTTL = true
	}
	return cmd, nil
}

func parseKeyed(verb Verb, usage string, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, &UsageError{Usage: usage}
	}
	if err := checkKey(args[0]); err != nil {
		return Command{}, err
	}
	return Command{Verb: verb, Key: args[0]}, nil
}

func parseDump(args []string) (Command, error) {
	switch len(args) {
	case 0:
		return Command{Verb: VerbDump, DumpAll: true}, nil
	case 2:
		start, err := strconv.Atoi(args[0])
		if err != nil {
			return Command{}, &UsageError{Usage: "dump [INDEX OFFSET]"}
		}
		length, err := strconv.Atoi(args[1])
		if err != nil {
			return Command{}, &UsageError{Usage: "dump [INDEX OFFSET]"}
		}
		return Command{Verb: VerbDump, DumpStart: start, DumpLen: length}, nil
	default:
		return Command{}, &UsageError{Usage: "dump [INDEX OFFSET]"}
	}
}

func parseBare(verb Verb, usage string, args []string) (Command, error) {
	if len(args) != 0 {
		return Command{}, &UsageError{Usage: usage}
	}
	return Command{Verb: verb}, nil
}

func checkKey(key string) error {
	if len(key) > MaxKeyLen {
		return ErrKeyTooLong
	}
	return nil
}
