package server

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/hashline/hashline/pkg/protocol"
	"github.com/hashline/hashline/pkg/store"
)

// dispatch parses one line, executes it against the table, and appends the
// reply to out. Every reply is a single text line except dump, whose
// listing is terminated by a final OK line. It reports whether the command
// was quit.
//
// Protocol errors (empty line, unknown verb, bad arity, oversized fields,
// bad TTL) are reported to the client and never close the connection.
func (s *Server) dispatch(line string, out *bytes.Buffer) (quit bool) {
	cmd, err := protocol.ParseCommand(line)
	if err != nil {
		writeLine(out, errorReply(err))
		return false
	}

	if handler := commandHandlers[cmd.Verb]; handler != nil {
		return handler(s, cmd, out)
	}

	writeLine(out, protocol.ReplyErrUnknown)
	return false
}

// errorReply maps a parse error to the reply line sent to the client.
func errorReply(err error) string {
	var usage *protocol.UsageError
	var unknown *protocol.UnknownCommandError

	switch {
	case errors.Is(err, protocol.ErrEmptyCommand):
		return protocol.ReplyErrInvalid
	case errors.As(err, &unknown):
		return protocol.ReplyErrUnknown
	case errors.As(err, &usage):
		return "Error: " + usage.Error()
	case errors.Is(err, protocol.ErrKeyTooLong):
		return "Error: key too long (max 255 bytes)"
	case errors.Is(err, protocol.ErrValueTooLong):
		return "Error: value too long (max 767 bytes)"
	case errors.Is(err, protocol.ErrBadTTL):
		return "Error: invalid TTL"
	default:
		return protocol.ReplyErrInvalid
	}
}

type handlerFunc func(*Server, protocol.Command, *bytes.Buffer) bool

var commandHandlers = map[protocol.Verb]handlerFunc{
	protocol.VerbWrite:  (*Server).handleWrite,
	protocol.VerbAdd:    (*Server).handleAdd,
	protocol.VerbUpdate: (*Server).handleUpdate,
	protocol.VerbSearch: (*Server).handleSearch,
	protocol.VerbDelete: (*Server).handleDelete,
	protocol.VerbDump:   (*Server).handleDump,
	protocol.VerbSize:   (*Server).handleSize,
	protocol.VerbWipe:   (*Server).handleWipe,
	protocol.VerbQuit:   (*Server).handleQuit,
}

// ttlOf applies the "effectively infinite" default when the client omitted
// the TTL field.
func ttlOf(cmd protocol.Command) time.Duration {
	if cmd.HasTTL {
		return cmd.TTL
	}
	return store.MaxTTL
}

func (s *Server) handleWrite(cmd protocol.Command, out *bytes.Buffer) bool {
	if err := s.table.Insert(cmd.Key, cmd.Value, ttlOf(cmd), store.Upsert); err != nil {
		writeLine(out, protocol.ReplyErrWrite)
		return false
	}
	writeLine(out, protocol.ReplyOK)
	return false
}

func (s *Server) handleAdd(cmd protocol.Command, out *bytes.Buffer) bool {
	if err := s.table.Insert(cmd.Key, cmd.Value, ttlOf(cmd), store.AddOnly); err != nil {
		writeLine(out, protocol.ReplyErrAdd)
		return false
	}
	writeLine(out, protocol.ReplyOK)
	return false
}

func (s *Server) handleUpdate(cmd protocol.Command, out *bytes.Buffer) bool {
	if err := s.table.Insert(cmd.Key, cmd.Value, ttlOf(cmd), store.UpdateOnly); err != nil {
		writeLine(out, protocol.ReplyErrUpdate)
		return false
	}
	writeLine(out, protocol.ReplyOK)
	return false
}

func (s *Server) handleSearch(cmd protocol.Command, out *bytes.Buffer) bool {
	e, ok := s.table.Lookup(cmd.Key)
	if !ok {
		writeLine(out, protocol.ReplyNotFound)
		return false
	}
	writeLine(out, fmt.Sprintf("Found: %s, timestamp: %d", e.Value, e.CreatedAt.Unix()))
	return false
}

func (s *Server) handleDelete(cmd protocol.Command, out *bytes.Buffer) bool {
	if !s.table.Delete(cmd.Key) {
		writeLine(out, protocol.ReplyNotFound)
		return false
	}
	writeLine(out, protocol.ReplyOK)
	return false
}

func (s *Server) handleDump(cmd protocol.Command, out *bytes.Buffer) bool {
	var entries []store.DumpEntry
	if cmd.DumpAll {
		entries = s.table.DumpAll()
	} else {
		var err error
		entries, err = s.table.Dump(cmd.DumpStart, cmd.DumpLen)
		if err != nil {
			writeLine(out, protocol.ReplyErrDump)
			return false
		}
	}

	for _, e := range entries {
		writeLine(out, fmt.Sprintf("%s = %s, bucket: %d, timestamp: %d",
			e.Key, e.Value, e.Bucket, e.CreatedAt.Unix()))
	}
	writeLine(out, protocol.ReplyOK)
	return false
}

func (s *Server) handleSize(_ protocol.Command, out *bytes.Buffer) bool {
	count, capacity := s.table.Size()
	writeLine(out, fmt.Sprintf("%d, %d", count, capacity))
	return false
}

func (s *Server) handleWipe(_ protocol.Command, out *bytes.Buffer) bool {
	s.table.Clear()
	writeLine(out, protocol.ReplyWiped)
	return false
}

func (s *Server) handleQuit(_ protocol.Command, out *bytes.Buffer) bool {
	writeLine(out, protocol.ReplyGoodbye)
	return true
}
