package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volfpeter/graphscraper/pkg/cache/badgerstore"
)

func TestNewStaticGraphDefaultsToBuiltinDataset(t *testing.T) {
	store, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	defer store.Close()

	g, sg, err := NewStaticGraph(store, Config{})
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, 34, sg.VertexCount())
}

func TestExpandAll(t *testing.T) {
	ctx := context.Background()
	store, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	defer store.Close()

	g, _, err := NewStaticGraph(store, Config{})
	require.NoError(t, err)

	results := ExpandAll(ctx, g, []string{"0", "Member-1", "Joe"}, 2)
	require.Len(t, results, 3)

	assert.Equal(t, "0", results[0].Query)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "Member-0", results[0].Name)
	assert.Len(t, results[0].Neighbors, 16)

	require.NoError(t, results[1].Err)
	assert.Equal(t, "Member-1", results[1].Name)

	// Unknown names fail individually without aborting the batch.
	require.Error(t, results[2].Err)
	assert.Equal(t, "Joe", results[2].Query)
}
