package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultHolder_CommitLatest(t *testing.T) {
	h := NewResultHolder[string]("test")
	at := time.Unix(100, 0)

	gen := h.Begin()
	require.True(t, h.Commit(gen, "c1", "first", nil, at))

	snap := h.Snapshot()
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, "c1", snap.CycleID)
	assert.Equal(t, "first", snap.Data)
	assert.False(t, snap.Failed())
}

func TestResultHolder_DiscardsStale(t *testing.T) {
	h := NewResultHolder[string]("test")
	slow := h.Begin()
	fast := h.Begin()

	require.True(t, h.Commit(fast, "fast", "new", nil, time.Now()))
	assert.False(t, h.Commit(slow, "slow", "old", nil, time.Now()))

	assert.Equal(t, "new", h.Snapshot().Data)
	assert.Equal(t, fast, h.Latest())
}

func TestResultHolder_StaleEvenBeforeNewerCommits(t *testing.T) {
	h := NewResultHolder[string]("test")
	old := h.Begin()
	h.Begin()

	assert.False(t, h.Commit(old, "old", "old", nil, time.Now()))
	assert.Equal(t, uint64(0), h.Snapshot().Generation)
}

func TestResultHolder_ErrorClearsData(t *testing.T) {
	h := NewResultHolder[string]("test")
	require.True(t, h.Commit(h.Begin(), "c1", "data", nil, time.Now()))
	require.True(t, h.Commit(h.Begin(), "c2", "ignored", errors.New("connection refused"), time.Now()))

	snap := h.Snapshot()
	assert.True(t, snap.Failed())
	assert.Equal(t, string(KindTransient), snap.ErrorKind)
	assert.Equal(t, "error loading data: connection refused", snap.ErrorMessage)
	assert.Empty(t, snap.Data)
}

func TestResultHolder_ConcurrentCommitsKeepLatest(t *testing.T) {
	h := NewResultHolder[int]("test")
	gens := make([]uint64, 50)
	for i := range gens {
		gens[i] = h.Begin()
	}

	var wg sync.WaitGroup
	for i, g := range gens {
		wg.Add(1)
		go func(i int, g uint64) {
			defer wg.Done()
			h.Commit(g, "", i, nil, time.Now())
		}(i, g)
	}
	wg.Wait()

	snap := h.Snapshot()
	assert.Equal(t, gens[len(gens)-1], snap.Generation)
	assert.Equal(t, len(gens)-1, snap.Data)
}
