package hash

import (
	"fmt"
	"testing"
)

func TestSum64Deterministic(t *testing.T) {
	keys := []string{"", "a", "key", "user:123", "a slightly longer key with spaces"}

	for _, key := range keys {
		first := Sum64(key)
		for i := 0; i < 10; i++ {
			if Sum64(key) != first {
				t.Errorf("Sum64(%q) is not deterministic", key)
			}
		}
	}
}

func TestSum64KnownValues(t *testing.T) {
	// djb2 reference values: h = 5381, then h = h*33 + byte.
	tests := []struct {
		key  string
		want uint64
	}{
		{"", 5381},
		{"a", 5381*33 + 'a'},
		{"ab", (5381*33+'a')*33 + 'b'},
	}

	for _, tt := range tests {
		if got := Sum64(tt.key); got != tt.want {
			t.Errorf("Sum64(%q) = %d, expected %d", tt.key, got, tt.want)
		}
	}
}

func TestSum64Distribution(t *testing.T) {
	const buckets = 101

	counts := make(map[uint64]int)
	for i := 0; i < 10000; i++ {
		key := fmt.Sprintf("key_%d", i)
		counts[Sum64(key)%buckets]++
	}

	if len(counts) != buckets {
		t.Errorf("Expected all %d buckets hit, got %d", buckets, len(counts))
	}

	for bucket, count := range counts {
		if count < 20 || count > 400 {
			t.Errorf("Poor distribution for bucket %d: %d keys", bucket, count)
		}
	}
}
