package ids

import (
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
)

func TestSequence(t *testing.T) {
	var s Sequence

	require.Equal(t, uint64(1), s.Next())
	require.Equal(t, uint64(2), s.Next())

	s.Seed(10)
	require.Equal(t, uint64(11), s.Next())

	s.Seed(5)
	require.Equal(t, uint64(12), s.Next())
	require.Equal(t, uint64(12), s.Last())
}

func TestSequence_Concurrent(t *testing.T) {
	var s Sequence
	var wg sync.WaitGroup
	seen := make(chan uint64, 1000)

	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				seen <- s.Next()
			}
		}()
	}

	wg.Wait()
	close(seen)

	unique := map[uint64]struct{}{}
	for id := range seen {
		unique[id] = struct{}{}
	}

	require.Len(t, unique, 1000)
	require.Equal(t, uint64(1000), s.Last())
}
