package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "prereg/pkg/domain"
)

func TestUUIDGeneratorIsUnique(t *testing.T) {
	gen := UUID{}
	seen := make(map[id.PreRegistrationID]struct{})
	for i := 0; i < 1000; i++ {
		preRegID := gen.NewPreRegistrationID()
		require.False(t, preRegID.IsNil())
		_, dup := seen[preRegID]
		require.False(t, dup)
		seen[preRegID] = struct{}{}
	}
	assert.False(t, gen.NewGroupID().IsNil())
}

func TestSequentialGenerator(t *testing.T) {
	gen := &Sequential{}

	first := gen.NewPreRegistrationID()
	group := gen.NewGroupID()
	second := gen.NewPreRegistrationID()

	assert.NotEqual(t, first, second)
	assert.NotEqual(t, first.String(), group.String())

	parsed, err := id.ParsePreRegistrationID(first.String())
	require.NoError(t, err)
	assert.Equal(t, first, parsed)
}

func TestSequentialGeneratorConcurrent(t *testing.T) {
	gen := &Sequential{}
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = make(map[id.PreRegistrationID]struct{})
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v := gen.NewPreRegistrationID()
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1600)
}
