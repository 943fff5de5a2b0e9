// Package cachetest holds the behaviour every item.Persistence backend must
// share, as a reusable test suite.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-items/internal/item"
)

// RoundTrips lists one canonical value per item type.
var RoundTrips = []struct {
	Type  item.Type
	Value any
}{
	{item.TypeNum, 21.5},
	{item.TypeNum, float64(-3)},
	{item.TypeScene, int64(7)},
	{item.TypeBool, true},
	{item.TypeBool, false},
	{item.TypeString, "hello"},
	{item.TypeString, ""},
	{item.TypeList, []any{1.0, "two", []any{3.0}}},
	{item.TypeDict, map[string]any{"a": 1.0, "b": map[string]any{"c": "d"}}},
	{item.TypeFoo, "anything"},
}

// Run exercises store against the persistence contract.
func Run(t *testing.T, store item.Persistence) {
	t.Helper()
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		_, _, err := store.Read(ctx, "does.not.exist")
		require.ErrorIs(t, err, item.ErrCacheMiss)
	})

	t.Run("empty", func(t *testing.T) {
		require.NoError(t, store.Write(ctx, "empty", nil))
		_, _, err := store.Read(ctx, "empty")
		require.ErrorIs(t, err, item.ErrCacheEmpty)
	})

	t.Run("round trip", func(t *testing.T) {
		for _, rt := range RoundTrips {
			path := "rt." + string(rt.Type)
			before := time.Now().Add(-time.Second)

			require.NoError(t, store.Write(ctx, path, rt.Value))
			modified, raw, err := store.Read(ctx, path)
			require.NoError(t, err, rt.Type)

			got, err := item.Cast(rt.Type, raw)
			require.NoError(t, err, rt.Type)
			assert.True(t, item.Equal(rt.Value, got), "%s: wrote %#v, read %#v", rt.Type, rt.Value, got)
			assert.True(t, modified.After(before), "%s: modified %v", rt.Type, modified)
		}
	})

	// foo values are stored as-is; numbers inside may come back widened
	// (JSON yields float64, CBOR uint64/int64) but keep their value.
	t.Run("foo number", func(t *testing.T) {
		require.NoError(t, store.Write(ctx, "rt.foo.number", 5))
		_, raw, err := store.Read(ctx, "rt.foo.number")
		require.NoError(t, err)

		got, err := item.Cast(item.TypeNum, raw)
		require.NoError(t, err, "read back %#v", raw)
		assert.Equal(t, 5.0, got)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Write(ctx, "ow", 1.0))
		require.NoError(t, store.Write(ctx, "ow", 2.0))
		_, raw, err := store.Read(ctx, "ow")
		require.NoError(t, err)
		got, err := item.Cast(item.TypeNum, raw)
		require.NoError(t, err)
		assert.Equal(t, 2.0, got)
	})
}
