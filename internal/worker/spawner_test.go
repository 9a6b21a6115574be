package worker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoSpawnerRuns(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, GoSpawner{}.Spawn("test", wg.Done))
	wg.Wait()
}

func TestLimitedSpawner(t *testing.T) {
	s := NewLimitedSpawner(2, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	require.NoError(t, s.Spawn("one", wg.Done))
	require.NoError(t, s.Spawn("two", wg.Done))

	ran := false
	err := s.Spawn("three", func() { ran = true })
	assert.ErrorIs(t, err, ErrSpawnLimit)
	assert.Contains(t, err.Error(), "three")

	wg.Wait()
	assert.False(t, ran)
	assert.Equal(t, []string{"one", "two"}, s.Spawned())
}
