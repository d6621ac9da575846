package recordstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("should match a typed phone field exactly", func(t *testing.T) {
		store := NewInMemoryStore()
		store.Seed("profiles", "p-1", map[string]any{"Phone": "321-443-6893"})
		store.Seed("profiles", "p-2", map[string]any{"Phone": "555-000-1234"})

		result, err := store.QueryCollection(ctx, "profiles", &Filter{
			Field: "Phone",
			Kind:  FilterPhoneEquals,
			Value: "321-443-6893",
		}, nil)
		require.NoError(t, err)
		require.Len(t, result.Results, 1)
		assert.Equal(t, "p-1", result.Results[0].ID)
	})

	t.Run("should match free text by contains", func(t *testing.T) {
		store := NewInMemoryStore()
		store.Seed("profiles", "p-1", map[string]any{"Notes": "call 3214436893 after lunch"})

		result, err := store.QueryCollection(ctx, "profiles", &Filter{
			Field: "Notes",
			Kind:  FilterTextContains,
			Value: "3214436893",
		}, nil)
		require.NoError(t, err)
		assert.Len(t, result.Results, 1)
	})

	t.Run("should never contains-match an empty value", func(t *testing.T) {
		store := NewInMemoryStore()
		store.Seed("profiles", "p-1", map[string]any{"Notes": "anything"})

		result, err := store.QueryCollection(ctx, "profiles", &Filter{
			Field: "Notes",
			Kind:  FilterTextContains,
			Value: "",
		}, nil)
		require.NoError(t, err)
		assert.Empty(t, result.Results)
	})

	t.Run("should scope results to the queried collection", func(t *testing.T) {
		store := NewInMemoryStore()
		store.Seed("profiles", "p-1", map[string]any{"Name": "A"})
		store.Seed("merchants", "m-1", map[string]any{"Name": "A"})

		result, err := store.QueryCollection(ctx, "profiles", nil, nil)
		require.NoError(t, err)
		require.Len(t, result.Results, 1)
		assert.Equal(t, "p-1", result.Results[0].ID)
	})

	t.Run("should page through with the cursor in insertion order", func(t *testing.T) {
		store := NewInMemoryStore()
		for i := 0; i < 5; i++ {
			store.Seed("tasks", fmt.Sprintf("t-%d", i), map[string]any{})
		}

		seen := []string{}
		cursor := ""
		pages := 0
		for {
			result, err := store.QueryCollection(ctx, "tasks", nil, &QueryOptions{PageSize: 2, Cursor: cursor})
			require.NoError(t, err)
			pages++
			for _, rec := range result.Results {
				seen = append(seen, rec.ID)
			}
			if !result.HasMore {
				break
			}
			cursor = result.NextCursor
		}
		assert.Equal(t, 3, pages)
		assert.Equal(t, []string{"t-0", "t-1", "t-2", "t-3", "t-4"}, seen)
	})

	t.Run("should reject a malformed cursor", func(t *testing.T) {
		store := NewInMemoryStore()
		_, err := store.QueryCollection(ctx, "tasks", nil, &QueryOptions{Cursor: "not-a-cursor"})
		assert.Error(t, err)
	})
}

func TestRecordProps(t *testing.T) {
	t.Run("should read string and pointer properties", func(t *testing.T) {
		name := "Blue Bottle"
		rec := &Record{Properties: map[string]any{"A": "x", "B": &name, "C": 7}}
		assert.Equal(t, "x", rec.StringProp("A"))
		assert.Equal(t, "Blue Bottle", rec.StringProp("B"))
		assert.Equal(t, "", rec.StringProp("C"))
		assert.Equal(t, "", rec.StringProp("missing"))
	})

	t.Run("should read relations from slices and bare strings", func(t *testing.T) {
		rec := &Record{Properties: map[string]any{
			"A": []string{"p-1", "p-2"},
			"B": "p-3",
			"C": []any{"p-4", 5, ""},
			"D": "",
		}}
		assert.Equal(t, []string{"p-1", "p-2"}, rec.RelationProp("A"))
		assert.Equal(t, []string{"p-3"}, rec.RelationProp("B"))
		assert.Equal(t, []string{"p-4"}, rec.RelationProp("C"))
		assert.Nil(t, rec.RelationProp("D"))
	})
}

func TestWrites(t *testing.T) {
	ctx := context.Background()

	t.Run("should merge updated properties into the record", func(t *testing.T) {
		store := NewInMemoryStore()
		store.Seed("tasks", "t-1", map[string]any{"Name": "x"})

		err := store.UpdateRecordProperties(ctx, "t-1", map[string]any{"Merchant UUID": "uuid-1"})
		require.NoError(t, err)

		rec, err := store.GetRecord(ctx, "t-1")
		require.NoError(t, err)
		assert.Equal(t, "x", rec.StringProp("Name"))
		assert.Equal(t, "uuid-1", rec.StringProp("Merchant UUID"))
	})

	t.Run("should fail updates for records marked failing", func(t *testing.T) {
		store := NewInMemoryStore()
		store.Seed("tasks", "t-1", map[string]any{})
		store.FailWrites("t-1", errors.New("store unavailable"))

		err := store.UpdateRecordProperties(ctx, "t-1", map[string]any{"Name": "y"})
		assert.Error(t, err)
	})

	t.Run("should fail updating a missing record", func(t *testing.T) {
		store := NewInMemoryStore()
		err := store.UpdateRecordProperties(ctx, "ghost", map[string]any{"Name": "y"})
		assert.Error(t, err)
	})

	t.Run("should create records with generated ids", func(t *testing.T) {
		store := NewInMemoryStore()
		rec, err := store.CreateRecord(ctx, "tasks", map[string]any{"Name": "new"})
		require.NoError(t, err)
		assert.NotEmpty(t, rec.ID)

		got, err := store.GetRecord(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.StringProp("Name"))
	})

	t.Run("should return nil for a missing record", func(t *testing.T) {
		store := NewInMemoryStore()
		rec, err := store.GetRecord(ctx, "ghost")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("should not leak mutations through returned copies", func(t *testing.T) {
		store := NewInMemoryStore()
		store.Seed("tasks", "t-1", map[string]any{"Name": "x"})

		rec, err := store.GetRecord(ctx, "t-1")
		require.NoError(t, err)
		rec.Properties["Name"] = "mutated"

		again, err := store.GetRecord(ctx, "t-1")
		require.NoError(t, err)
		assert.Equal(t, "x", again.StringProp("Name"))
	})
}
