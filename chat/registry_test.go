package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()

	_, err := r.GetOrCreate("room", false)
	assert.ErrorIs(t, err, ErrNoSuchChannel)
	assert.Equal(t, 0, r.Len())

	created, err := r.GetOrCreate("room", true)
	require.NoError(t, err)
	assert.Equal(t, "room", created.Name())

	found, err := r.GetOrCreate("room", false)
	require.NoError(t, err)
	assert.Same(t, created, found)

	again, err := r.GetOrCreate("room", true)
	require.NoError(t, err)
	assert.Same(t, created, again)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryKeepsEmptyChannels(t *testing.T) {
	r := NewRegistry()
	ch, err := r.GetOrCreate("room", true)
	require.NoError(t, err)
	require.NoError(t, ch.Join("alice"))
	require.NoError(t, ch.Leave("alice"))

	found, err := r.GetOrCreate("room", false)
	require.NoError(t, err)
	assert.Same(t, ch, found)
}

func TestRegistryConcurrentCreate(t *testing.T) {
	r := NewRegistry()

	const n = 32
	got := make([]*Channel, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch, err := r.GetOrCreate("shared", true)
			assert.NoError(t, err)
			got[i] = ch
		}(i)
	}
	wg.Wait()

	for _, ch := range got {
		assert.Same(t, got[0], ch)
	}
	assert.Equal(t, []string{"shared"}, r.Names())
}
