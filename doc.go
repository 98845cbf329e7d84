// Package hashline provides an in-memory key-value store served over a
// plain-text TCP line protocol.
//
// Hashline keeps string keys and values in a chained hash table with
// per-entry expiration, and exposes the table to clients as newline
// delimited commands with human-readable replies. Idle connections park
// in the runtime netpoller; a fixed number of worker slots bounds how
// many connections are decoded and dispatched at once, so many clients
// share a small processing pool.
//
// # Architecture Overview
//
// Hashline consists of several key components:
//
//   - Store: Chained hash table with djb2 bucketing, lazy expiration,
//     and load-factor driven resizing
//   - Server: TCP accept loop plus netpoller-parked sessions, with
//     processing concurrency bounded by a fixed pool of worker slots
//   - Protocol: Line decoder and command parser for the text protocol
//   - Client SDK: Thin connection wrapper speaking the same protocol
//   - Configuration: Flags, environment variables, and optional .env
//     files
//
// # Quick Start
//
// Server:
//
//	import "github.com/hashline/hashline/internal/server"
//	import "github.com/hashline/hashline/pkg/config"
//	import "github.com/hashline/hashline/pkg/store"
//
//	cfg := config.LoadServerConfig()
//	srv := server.New(cfg, store.New())
//	log.Fatal(srv.Start())
//
// Client:
//
//	import "github.com/hashline/hashline/pkg/client"
//
//	c, err := client.Dial("localhost:8080")
//	defer c.Close()
//
//	c.Write("user:123", "john_doe", time.Hour)
//	value, createdAt, found, err := c.Search("user:123")
//
// # Supported Commands
//
//   - write KEY VALUE [TTL]: Store a value, overwriting any existing one
//   - add KEY VALUE [TTL]: Store only if the key is absent
//   - update KEY VALUE [TTL]: Overwrite only if the key is present
//   - search KEY: Return the value and its creation timestamp
//   - delete KEY: Remove a key
//   - dump [INDEX OFFSET]: List live entries, whole table or a bucket range
//   - size: Report live entry count and table capacity
//   - wipe: Reset the table to its initial empty state
//   - quit: Close the connection
//
// Keys are limited to 255 bytes and values to 767 bytes. A command
// without a TTL stores the entry with an effectively infinite lifetime.
//
// # Packages
//
//   - pkg/store: The hash table engine
//   - pkg/protocol: Line framing and command parsing
//   - pkg/client: Client SDK
//   - pkg/config: Server and client configuration
//   - pkg/hash: The djb2 hash function
//   - internal/server: The TCP server and command dispatch
//   - cmd/server: The server binary
//   - cmd/loadgen: A write-burst load generator
package hashline
