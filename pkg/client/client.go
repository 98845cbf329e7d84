// Package client provides a client SDK for the Hashline line protocol.
//
// The client speaks the plain-text protocol over a single TCP connection:
// one command per line, one reply line per command (dump replies are
// multi-line and terminated by an OK line). Calls are serialized on the
// connection, so a Client is safe for concurrent use by multiple
// goroutines.
//
// Basic usage:
//
//	c, err := client.Dial("localhost:8080")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	// Store with a 60 second TTL
//	err = c.Write("session:abc", "tok-123", 60*time.Second)
//
//	// Lookup
//	value, createdAt, found, err := c.Search("session:abc")
//
//	// Reporting
//	count, capacity, err := c.Size()
//
// The failure replies for add ("key exists") and update ("key not found")
// are surfaced as the sentinel errors ErrKeyExists and ErrKeyNotFound so
// callers can branch on them without string matching.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashline/hashline/pkg/config"
	"github.com/hashline/hashline/pkg/protocol"
)

// Sentinel errors for the protocol's conflict and not-found replies.
var (
	ErrKeyExists   = errors.New("client: key exists")
	ErrKeyNotFound = errors.New("client: key not found")
	ErrClosed      = errors.New("client: connection closed")
)

// Entry is one row of a dump listing as parsed from the wire.
type Entry struct {
	Key       string
	Value     string
	Bucket    int
	Timestamp int64
}

// Client is a connection to a single Hashline server.
// Construct with Dial or DialWithConfig.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	cfg    *config.ClientConfig
	closed bool
}

// Dial connects to the server at addr ("host:port") using default
// configuration.
//
// Example:
//
//	c, err := client.Dial("localhost:8080")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
func Dial(addr string) (*Client, error) {
	cfg := config.LoadClientConfig()
	cfg.Addr = addr
	return DialWithConfig(cfg)
}

// DialWithConfig connects using the provided configuration.
//
// Returns:
//   - A connected Client
//   - Error if the configuration is invalid or the dial fails
func DialWithConfig(cfg *config.ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	conn, err := net.DialTimeout("tcp", cfg.Addr, time.Duration(cfg.ConnTimeout)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Addr, err)
	}

	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		cfg:    cfg,
	}, nil
}

// Write upserts value under key. A ttl <= 0 omits the TTL field so the
// server applies its "effectively infinite" default.
func (c *Client) Write(key, value string, ttl time.Duration) error {
	reply, err := c.roundTrip(mutationLine("write", key, value, ttl))
	if err != nil {
		return err
	}
	return checkOK(reply)
}

// Add stores value under key only if the key is absent.
//
// Returns:
//   - ErrKeyExists if the key is already present
func (c *Client) Add(key, value string, ttl time.Duration) error {
	reply, err := c.roundTrip(mutationLine("add", key, value, ttl))
	if err != nil {
		return err
	}
	if reply == protocol.ReplyErrAdd {
		return ErrKeyExists
	}
	return checkOK(reply)
}

// Update overwrites the value under key only if the key is present.
//
// Returns:
//   - ErrKeyNotFound if the key is absent
func (c *Client) Update(key, value string, ttl time.Duration) error {
	reply, err := c.roundTrip(mutationLine("update", key, value, ttl))
	if err != nil {
		return err
	}
	if reply == protocol.ReplyErrUpdate {
		return ErrKeyNotFound
	}
	return checkOK(reply)
}

// Search looks up key.
//
// Returns:
//   - The value and its creation timestamp (Unix seconds) when found
//   - found false for a "Not found" reply
func (c *Client) Search(key string) (value string, createdAt int64, found bool, err error) {
	reply, err := c.roundTrip("search " + key)
	if err != nil {
		return "", 0, false, err
	}
	if reply == protocol.ReplyNotFound {
		return "", 0, false, nil
	}

	rest, ok := strings.CutPrefix(reply, "Found: ")
	if !ok {
		return "", 0, false, fmt.Errorf("unexpected search reply: %q", reply)
	}
	rest, ts, ok := cutTimestamp(rest)
	if !ok {
		return "", 0, false, fmt.Errorf("unexpected search reply: %q", reply)
	}
	return rest, ts, true, nil
}

// Delete removes key.
//
// Returns:
//   - true if a live entry was removed, false for "Not found"
func (c *Client) Delete(key string) (bool, error) {
	reply, err := c.roundTrip("delete " + key)
	if err != nil {
		return false, err
	}
	if reply == protocol.ReplyNotFound {
		return false, nil
	}
	return true, checkOK(reply)
}

// Size reports the live entry count and the table capacity.
func (c *Client) Size() (count, capacity int, err error) {
	reply, err := c.roundTrip("size")
	if err != nil {
		return 0, 0, err
	}

	parts := strings.SplitN(reply, ", ", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected size reply: %q", reply)
	}
	count, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected size reply: %q", reply)
	}
	capacity, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected size reply: %q", reply)
	}
	return count, capacity, nil
}

// Dump lists the live entries in buckets [start, start+length).
func (c *Client) Dump(start, length int) ([]Entry, error) {
	return c.dump(fmt.Sprintf("dump %d %d", start, length))
}

// DumpAll lists every live entry in the table.
func (c *Client) DumpAll() ([]Entry, error) {
	return c.dump("dump")
}

// Wipe resets the table to its initial empty state.
func (c *Client) Wipe() error {
	reply, err := c.roundTrip("wipe")
	if err != nil {
		return err
	}
	if reply != protocol.ReplyWiped {
		return fmt.Errorf("server error: %s", reply)
	}
	return nil
}

// Quit asks the server to close the connection, then closes this client.
func (c *Client) Quit() error {
	reply, err := c.roundTrip("quit")
	if err != nil {
		return err
	}
	if reply != protocol.ReplyGoodbye {
		return fmt.Errorf("server error: %s", reply)
	}
	return c.Close()
}

// Close closes the underlying connection. The client is unusable after.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// dump sends a dump command and reads listing lines until the terminating
// OK, or an error reply.
func (c *Client) dump(command string) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if err := c.send(command); err != nil {
		return nil, err
	}

	var entries []Entry
	for {
		reply, err := c.readLine()
		if err != nil {
			return nil, err
		}
		if reply == protocol.ReplyOK {
			return entries, nil
		}
		if strings.HasPrefix(reply, "Error:") {
			return nil, fmt.Errorf("server error: %s", reply)
		}

		e, ok := parseDumpLine(reply)
		if !ok {
			return nil, fmt.Errorf("unexpected dump line: %q", reply)
		}
		entries = append(entries, e)
	}
}

// roundTrip sends one command line and reads one reply line.
func (c *Client) roundTrip(command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}
	if err := c.send(command); err != nil {
		return "", err
	}
	return c.readLine()
}

func (c *Client) send(command string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(time.Duration(c.cfg.WriteTimeout) * time.Second)); err != nil {
		return err
	}
	_, err := c.conn.Write([]byte(command + "\n"))
	return err
}

func (c *Client) readLine() (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(time.Duration(c.cfg.ReadTimeout) * time.Second)); err != nil {
		return "", err
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func mutationLine(verb, key, value string, ttl time.Duration) string {
	if ttl > 0 {
		return fmt.Sprintf("%s %s %s %d", verb, key, value, int64(ttl.Seconds()))
	}
	return fmt.Sprintf("%s %s %s", verb, key, value)
}

func checkOK(reply string) error {
	if reply != protocol.ReplyOK {
		return fmt.Errorf("server error: %s", reply)
	}
	return nil
}

// cutTimestamp splits "VALUE, timestamp: T" from the right, so values
// containing the separator text still parse.
func cutTimestamp(s string) (prefix string, ts int64, ok bool) {
	i := strings.LastIndex(s, ", timestamp: ")
	if i < 0 {
		return "", 0, false
	}
	ts, err := strconv.ParseInt(s[i+len(", timestamp: "):], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return s[:i], ts, true
}

// parseDumpLine parses "KEY = VALUE, bucket: I, timestamp: T".
func parseDumpLine(line string) (Entry, bool) {
	key, rest, ok := strings.Cut(line, " = ")
	if !ok {
		return Entry{}, false
	}

	i := strings.LastIndex(rest, ", bucket: ")
	if i < 0 {
		return Entry{}, false
	}
	value := rest[:i]
	tail := rest[i+len(", bucket: "):]

	bucketStr, tsStr, ok := strings.Cut(tail, ", timestamp: ")
	if !ok {
		return Entry{}, false
	}
	bucket, err := strconv.Atoi(bucketStr)
	if err != nil {
		return Entry{}, false
	}
	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Key: key, Value: value, Bucket: bucket, Timestamp: ts}, true
}
