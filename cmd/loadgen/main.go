// Command loadgen issues a burst of write commands against a Hashline
// server and reports timing, for smoke testing and rough throughput
// measurement.
//
// Usage:
//
//	loadgen -addr localhost:8080 -n 10000 -c 4
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hashline/hashline/pkg/client"
)

const valueAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func main() {
	addr := flag.String("addr", "localhost:8080", "Server address (host:port)")
	n := flag.Int("n", 10000, "Number of write commands to issue")
	conns := flag.Int("c", 4, "Number of concurrent connections")
	verify := flag.Bool("verify", false, "Search each key back after writing")
	flag.Parse()

	if *n < 1 || *conns < 1 {
		log.Fatalf("Invalid arguments: n=%d c=%d", *n, *conns)
	}

	start := time.Now()

	var g errgroup.Group
	for i := 0; i < *conns; i++ {
		writes := *n / *conns
		if i < *n%*conns {
			writes++
		}
		g.Go(func() error {
			return run(*addr, writes, *verify)
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("Load run failed: %v", err)
	}

	elapsed := time.Since(start)
	fmt.Printf("Issued %d writes over %d connections in %s (%.0f ops/sec)\n",
		*n, *conns, elapsed, float64(*n)/elapsed.Seconds())
}

// run drives one connection for the given number of writes.
func run(addr string, writes int, verify bool) error {
	c, err := client.Dial(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < writes; i++ {
		key := uuid.Must(uuid.NewV7()).String()
		value := randomValue(rng)

		if err := c.Write(key, value, 0); err != nil {
			return fmt.Errorf("write %q: %w", key, err)
		}

		if verify {
			got, _, found, err := c.Search(key)
			if err != nil {
				return fmt.Errorf("search %q: %w", key, err)
			}
			if !found || got != value {
				return fmt.Errorf("verify %q: got %q, want %q", key, got, value)
			}
		}
	}

	return c.Quit()
}

// randomValue builds an alphanumeric value of 1 to 64 bytes.
func randomValue(rng *rand.Rand) string {
	n := 1 + rng.Intn(64)
	b := make([]byte, n)
	for i := range b {
		b[i] = valueAlphabet[rng.Intn(len(valueAlphabet))]
	}
	return string(b)
}
