package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/recordstore"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestRegistryLoad(t *testing.T) {
	t.Run("should map normalized names to existing UUIDs", func(t *testing.T) {
		store := recordstore.NewInMemoryStore()
		store.Seed("merchants", "rec-1", map[string]any{"Name": "Blue Bottle Coffee", "Merchant UUID": "uuid-blue"})
		store.Seed("merchants", "rec-2", map[string]any{"Name": "ACME Corp.", "Merchant UUID": "uuid-acme"})

		reg, err := New(testLogger(), store, Config{CollectionID: "merchants"})
		require.NoError(t, err)

		records, err := reg.Load(context.Background())
		require.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, "uuid-blue", records["bluebottlecoffee"].UUID)
		assert.Equal(t, "uuid-acme", records["acmecorp"].UUID)
	})

	t.Run("should mint and persist a UUID for records missing one", func(t *testing.T) {
		store := recordstore.NewInMemoryStore()
		store.Seed("merchants", "Rec-42!", map[string]any{"Name": "Corner Deli"})

		reg, err := New(testLogger(), store, Config{CollectionID: "merchants"})
		require.NoError(t, err)

		records, err := reg.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "rec42", records["cornerdeli"].UUID)

		// persisted back onto the source record
		rec, err := store.GetRecord(context.Background(), "Rec-42!")
		require.NoError(t, err)
		assert.Equal(t, "rec42", rec.StringProp("Merchant UUID"))
	})

	t.Run("should skip records whose UUID backfill fails", func(t *testing.T) {
		store := recordstore.NewInMemoryStore()
		store.Seed("merchants", "rec-ok", map[string]any{"Name": "Corner Deli", "Merchant UUID": "uuid-deli"})
		store.Seed("merchants", "rec-bad", map[string]any{"Name": "Broken Shop"})
		store.FailWrites("rec-bad", errors.New("store unavailable"))

		reg, err := New(testLogger(), store, Config{CollectionID: "merchants"})
		require.NoError(t, err)

		records, err := reg.Load(context.Background())
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.NotContains(t, records, "brokenshop")
	})

	t.Run("should paginate across the whole collection", func(t *testing.T) {
		store := recordstore.NewInMemoryStore()
		names := []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo"}
		for i, name := range names {
			store.Seed("merchants", name, map[string]any{"Name": name, "Merchant UUID": names[i]})
		}

		reg, err := New(testLogger(), store, Config{CollectionID: "merchants", PageSize: 2})
		require.NoError(t, err)

		records, err := reg.Load(context.Background())
		require.NoError(t, err)
		assert.Len(t, records, len(names))
	})

	t.Run("should cache the map until Reset", func(t *testing.T) {
		store := recordstore.NewInMemoryStore()
		store.Seed("merchants", "rec-1", map[string]any{"Name": "Alpha", "Merchant UUID": "uuid-a"})

		reg, err := New(testLogger(), store, Config{CollectionID: "merchants"})
		require.NoError(t, err)

		_, err = reg.Load(context.Background())
		require.NoError(t, err)

		store.Seed("merchants", "rec-2", map[string]any{"Name": "Bravo", "Merchant UUID": "uuid-b"})

		records, err := reg.Load(context.Background())
		require.NoError(t, err)
		assert.Len(t, records, 1)

		reg.Reset()
		records, err = reg.Load(context.Background())
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})
}

func TestLookupByName(t *testing.T) {
	store := recordstore.NewInMemoryStore()
	store.Seed("merchants", "rec-1", map[string]any{"Name": "Blue Bottle Coffee", "Merchant UUID": "uuid-blue"})

	reg, err := New(testLogger(), store, Config{CollectionID: "merchants"})
	require.NoError(t, err)

	t.Run("should resolve through normalization", func(t *testing.T) {
		id, err := reg.LookupByName(context.Background(), "  BLUE bottle (coffee) ")
		require.NoError(t, err)
		assert.Equal(t, "uuid-blue", id)
	})

	t.Run("should return empty on a miss", func(t *testing.T) {
		id, err := reg.LookupByName(context.Background(), "No Such Merchant")
		require.NoError(t, err)
		assert.Equal(t, "", id)
	})

	t.Run("should return empty for empty input", func(t *testing.T) {
		id, err := reg.LookupByName(context.Background(), "!!!")
		require.NoError(t, err)
		assert.Equal(t, "", id)
	})
}

func TestNew(t *testing.T) {
	t.Run("should require a collection id", func(t *testing.T) {
		_, err := New(testLogger(), recordstore.NewInMemoryStore(), Config{})
		assert.Error(t, err)
	})
}
