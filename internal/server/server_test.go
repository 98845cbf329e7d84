package server

import (
	"bufio"
	"fmt"
	"math"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/hashline/hashline/pkg/config"
	"github.com/hashline/hashline/pkg/store"
)

// startTestServer runs a server on an ephemeral port and returns its
// address. The server is stopped when the test finishes.
func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	return startTestServerWorkers(t, 2)
}

func startTestServerWorkers(t *testing.T, workers int) (*Server, string) {
	t.Helper()

	cfg := config.DefaultServerConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.Workers = workers
	cfg.Backlog = 8

	srv := New(cfg, store.New())

	go func() {
		if err := srv.Start(); err != nil {
			t.Errorf("Server failed: %v", err)
		}
	}()
	t.Cleanup(func() { _ = srv.Stop() })

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("Server did not start in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return srv, srv.Addr().String()
}

// testConn wraps a raw connection with line-wise send and receive.
type testConn struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dialTest(t *testing.T, addr string) *testConn {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testConn{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *testConn) send(s string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(s)); err != nil {
		c.t.Fatalf("Write failed: %v", err)
	}
}

func (c *testConn) recv() string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.reader.ReadString('\n')
	if err != nil {
		c.t.Fatalf("Read failed: %v", err)
	}
	return strings.TrimRight(line, "\n")
}

func (c *testConn) roundTrip(command string) string {
	c.t.Helper()
	c.send(command + "\n")
	return c.recv()
}

func TestServerReplyMatrix(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTest(t, addr)

	steps := []struct {
		command string
		want    string
	}{
		{"write key1 value1", "OK"},
		{"search key1", ""}, // checked separately below
		{"add key1 other", "Error: failed to add, key exists"},
		{"add key2 value2", "OK"},
		{"update key1 updated", "OK"},
		{"update missing value", "Error: failed to update, key not found"},
		{"delete key2", "OK"},
		{"delete key2", "Not found"},
		{"search missing", "Not found"},
		{"size", "1, 101"},
		{"wipe", "All clean!"},
		{"size", "0, 101"},
		{"bogus", "Error: unknown command! Use write, add, update, search, delete, dump, size, wipe or quit"},
		{"", "Error: invalid command! Empty line"},
		{"write key1", "Error: usage: write KEY VALUE [TTL]"},
		{"write key1 value1 -5", "Error: invalid TTL"},
	}

	for _, step := range steps {
		got := c.roundTrip(step.command)
		if step.command == "search key1" {
			if !strings.HasPrefix(got, "Found: value1, timestamp: ") {
				t.Errorf("search key1: expected Found reply, got %q", got)
			}
			continue
		}
		if got != step.want {
			t.Errorf("%q: expected %q, got %q", step.command, step.want, got)
		}
	}
}

func TestServerQuitClosesConnection(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTest(t, addr)

	if got := c.roundTrip("quit"); got != "Goodbye!" {
		t.Errorf("Expected Goodbye!, got %q", got)
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.reader.ReadString('\n'); err == nil {
		t.Error("Expected connection to close after quit")
	}
}

func TestServerSingleByteWrites(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTest(t, addr)

	for _, b := range []byte("write slow value\n") {
		c.send(string(b))
		time.Sleep(time.Millisecond)
	}

	if got := c.recv(); got != "OK" {
		t.Errorf("Expected OK, got %q", got)
	}
	if got := c.roundTrip("search slow"); !strings.HasPrefix(got, "Found: value") {
		t.Errorf("Expected Found reply, got %q", got)
	}
}

func TestServerPipelinedCommands(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTest(t, addr)

	c.send("write a 1\nwrite b 2\nwrite c 3\nsize\n")

	for i := 0; i < 3; i++ {
		if got := c.recv(); got != "OK" {
			t.Errorf("Pipelined write %d: expected OK, got %q", i, got)
		}
	}
	if got := c.recv(); got != "3, 101" {
		t.Errorf("Expected '3, 101', got %q", got)
	}
}

func TestServerDump(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTest(t, addr)

	c.roundTrip("write key1 value1")

	c.send("dump\n")
	first := c.recv()
	if !strings.HasPrefix(first, "key1 = value1, bucket: ") {
		t.Errorf("Expected listing line, got %q", first)
	}
	if got := c.recv(); got != "OK" {
		t.Errorf("Expected OK terminator, got %q", got)
	}

	// Window covering the whole table minus one bucket is valid.
	c.send("dump 0 100\n")
	var lines []string
	for {
		line := c.recv()
		if line == "OK" {
			break
		}
		lines = append(lines, line)
	}
	if len(lines) != 1 {
		t.Errorf("Expected 1 listing line, got %d", len(lines))
	}

	// start+length reaching the capacity is out of bounds.
	if got := c.roundTrip("dump 0 101"); got != "Error: failed to dump store" {
		t.Errorf("Expected dump range error, got %q", got)
	}
	if got := c.roundTrip("dump -1 5"); got != "Error: failed to dump store" {
		t.Errorf("Expected dump range error, got %q", got)
	}

	// Operands whose sum wraps around must not pass the range check.
	huge := math.MaxInt/2 + 1
	if got := c.roundTrip(fmt.Sprintf("dump %d %d", huge, huge)); got != "Error: failed to dump store" {
		t.Errorf("Expected dump range error for huge window, got %q", got)
	}
}

func TestServerIdleConnectionDoesNotStarveOthers(t *testing.T) {
	_, addr := startTestServerWorkers(t, 1)

	// First client connects and goes quiet without sending anything.
	idle := dialTest(t, addr)

	// A second client must still be served while the first sits idle.
	busy := dialTest(t, addr)
	if got := busy.roundTrip("size"); got != "0, 101" {
		t.Errorf("Expected '0, 101', got %q", got)
	}
	if got := busy.roundTrip("write key1 value1"); got != "OK" {
		t.Errorf("Expected OK, got %q", got)
	}

	// The idle connection is still live and serviceable afterwards.
	if got := idle.roundTrip("size"); got != "1, 101" {
		t.Errorf("Expected '1, 101' on the idle connection, got %q", got)
	}
}

func TestServerTTLExpiry(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTest(t, addr)

	if got := c.roundTrip("write temp value 1"); got != "OK" {
		t.Fatalf("Expected OK, got %q", got)
	}
	if got := c.roundTrip("search temp"); !strings.HasPrefix(got, "Found: value") {
		t.Fatalf("Expected Found reply, got %q", got)
	}

	time.Sleep(1100 * time.Millisecond)

	if got := c.roundTrip("search temp"); got != "Not found" {
		t.Errorf("Expected Not found after TTL, got %q", got)
	}
	if got := c.roundTrip("size"); got != "0, 101" {
		t.Errorf("Expected '0, 101' after expiry, got %q", got)
	}
}

func TestServerOversizedLineKeepsConnection(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTest(t, addr)

	c.send(strings.Repeat("x", 2048) + "\n")
	if got := c.recv(); got != "Error: line too long" {
		t.Errorf("Expected line limit error, got %q", got)
	}

	if got := c.roundTrip("size"); got != "0, 101" {
		t.Errorf("Connection should survive an oversized line, got %q", got)
	}
}

func TestServerConcurrentConnections(t *testing.T) {
	_, addr := startTestServer(t)

	const conns = 4
	done := make(chan error, conns)

	for i := 0; i < conns; i++ {
		go func(i int) {
			conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
			if err != nil {
				done <- err
				return
			}
			defer conn.Close()

			reader := bufio.NewReader(conn)
			for j := 0; j < 50; j++ {
				command := fmt.Sprintf("write c%d-k%d v%d\n", i, j, j)
				if _, err := conn.Write([]byte(command)); err != nil {
					done <- err
					return
				}
				_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				reply, err := reader.ReadString('\n')
				if err != nil {
					done <- err
					return
				}
				if strings.TrimRight(reply, "\n") != "OK" {
					done <- fmt.Errorf("expected OK, got %q", reply)
					return
				}
			}
			done <- nil
		}(i)
	}

	for i := 0; i < conns; i++ {
		if err := <-done; err != nil {
			t.Errorf("Connection failed: %v", err)
		}
	}

	srv := dialTest(t, addr)
	if got := srv.roundTrip("size"); !strings.HasPrefix(got, "200, ") {
		t.Errorf("Expected 200 entries, got %q", got)
	}
}

func TestServerStop(t *testing.T) {
	srv, addr := startTestServer(t)
	c := dialTest(t, addr)

	if got := c.roundTrip("write key1 value1"); got != "OK" {
		t.Fatalf("Expected OK, got %q", got)
	}

	if err := srv.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	// Stop is idempotent.
	if err := srv.Stop(); err != nil {
		t.Errorf("Second Stop failed: %v", err)
	}

	if _, err := net.DialTimeout("tcp", addr, 500*time.Millisecond); err == nil {
		t.Error("Expected dial to fail after Stop")
	}
}
