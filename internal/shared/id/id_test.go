package id

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewSessionID().String(), "sess_"))
	assert.True(t, strings.HasPrefix(NewLineID().String(), "line_"))
	assert.True(t, strings.HasPrefix(NewProcessID().String(), "proc_"))
	assert.True(t, strings.HasPrefix(NewRequestID().String(), "req_"))
}

func TestUniqueness(t *testing.T) {
	seen := make(map[LineID]bool)
	for i := 0; i < 10000; i++ {
		id := NewLineID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestConcurrentGeneration(t *testing.T) {
	const (
		goroutines = 16
		perWorker  = 500
	)

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				local = append(local, NewLineID().String())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				if seen[id] {
					t.Errorf("duplicate id across goroutines: %s", id)
				}
				seen[id] = true
			}
		}()
	}
	wg.Wait()
}
