package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/recordstore"
	"github.com/Ramsey-B/clover/pkg/registry"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// fakeInfos maps profile id -> merchant info.
type fakeInfos struct {
	infos map[string]*models.MerchantInfo
}

func (f *fakeInfos) GetMerchantInfo(_ context.Context, profileID string) (*models.MerchantInfo, error) {
	return f.infos[profileID], nil
}

// fakePublisher collects published gap events.
type fakePublisher struct {
	mu     sync.Mutex
	events []models.MerchantGapEvent
}

func (f *fakePublisher) PublishGap(_ context.Context, event models.MerchantGapEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func uuidPtr(s string) *string { return &s }

func TestReconcile(t *testing.T) {
	t.Run("should update relation-resolvable records and report the rest as gaps", func(t *testing.T) {
		store := recordstore.NewInMemoryStore()
		infos := &fakeInfos{infos: map[string]*models.MerchantInfo{}}

		// 3 of 10 records carry a relation that resolves to a UUID.
		for i := 0; i < 10; i++ {
			id := string(rune('a' + i))
			props := map[string]any{}
			if i < 3 {
				profileID := "profile-" + id
				props["Profile"] = []string{profileID}
				infos.infos[profileID] = &models.MerchantInfo{UUID: uuidPtr("uuid-" + id), Name: "Merchant " + id}
			}
			store.Seed("tasks", "task-"+id, props)
		}

		publisher := &fakePublisher{}
		r, err := New(testLogger(), store, nil, infos, []Collection{{
			Name:          "tasks",
			CollectionID:  "tasks",
			UUIDField:     "Merchant UUID",
			RelationField: "Profile",
		}}, publisher)
		require.NoError(t, err)

		result, err := r.Reconcile(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, result.Updated)
		assert.Len(t, result.Missing, 7)
		assert.Len(t, publisher.events, 7)

		rec, err := store.GetRecord(context.Background(), "task-a")
		require.NoError(t, err)
		assert.Equal(t, "uuid-a", rec.StringProp("Merchant UUID"))
	})

	t.Run("should resolve by name through the registry when there is no relation", func(t *testing.T) {
		store := recordstore.NewInMemoryStore()
		store.Seed("merchants", "m-1", map[string]any{"Name": "Blue Bottle Coffee", "Merchant UUID": "uuid-blue"})
		store.Seed("notes", "note-1", map[string]any{"Merchant": "Blue Bottle Coffee"})

		reg, err := registry.New(testLogger(), store, registry.Config{CollectionID: "merchants"})
		require.NoError(t, err)

		r, err := New(testLogger(), store, reg, &fakeInfos{}, []Collection{{
			Name:         "notes",
			CollectionID: "notes",
			UUIDField:    "Merchant UUID",
			NameField:    "Merchant",
		}}, nil)
		require.NoError(t, err)

		result, err := r.Reconcile(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Updated)
		assert.Empty(t, result.Missing)
	})

	t.Run("should skip records whose UUID is already correct", func(t *testing.T) {
		store := recordstore.NewInMemoryStore()
		infos := &fakeInfos{infos: map[string]*models.MerchantInfo{
			"profile-1": {UUID: uuidPtr("uuid-1"), Name: "One"},
		}}
		store.Seed("tasks", "task-1", map[string]any{
			"Profile":       []string{"profile-1"},
			"Merchant UUID": "uuid-1",
		})

		r, err := New(testLogger(), store, nil, infos, []Collection{{
			Name:          "tasks",
			CollectionID:  "tasks",
			UUIDField:     "Merchant UUID",
			RelationField: "Profile",
		}}, nil)
		require.NoError(t, err)

		result, err := r.Reconcile(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, result.Updated)
		assert.Empty(t, result.Missing)
	})

	t.Run("should surface a failed write as a gap", func(t *testing.T) {
		store := recordstore.NewInMemoryStore()
		infos := &fakeInfos{infos: map[string]*models.MerchantInfo{
			"profile-1": {UUID: uuidPtr("uuid-1"), Name: "One"},
		}}
		store.Seed("tasks", "task-1", map[string]any{"Profile": []string{"profile-1"}})
		store.FailWrites("task-1", errors.New("store unavailable"))

		publisher := &fakePublisher{}
		r, err := New(testLogger(), store, nil, infos, []Collection{{
			Name:          "tasks",
			CollectionID:  "tasks",
			UUIDField:     "Merchant UUID",
			RelationField: "Profile",
		}}, publisher)
		require.NoError(t, err)

		result, err := r.Reconcile(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, result.Updated)
		require.Len(t, result.Missing, 1)
		assert.Equal(t, "task-1", result.Missing[0].RecordID)
		assert.Len(t, publisher.events, 1)
	})

	t.Run("should record the last result for gap listing", func(t *testing.T) {
		store := recordstore.NewInMemoryStore()
		store.Seed("tasks", "task-1", map[string]any{"Merchant": "Nobody"})

		r, err := New(testLogger(), store, nil, &fakeInfos{}, []Collection{{
			Name:         "tasks",
			CollectionID: "tasks",
			UUIDField:    "Merchant UUID",
			NameField:    "Merchant",
		}}, nil)
		require.NoError(t, err)

		assert.Nil(t, r.LastResult())
		_, err = r.Reconcile(context.Background())
		require.NoError(t, err)
		require.NotNil(t, r.LastResult())
		assert.Len(t, r.LastResult().Missing, 1)
	})
}

func TestRepairGap(t *testing.T) {
	t.Run("should close a gap once the registry knows the merchant", func(t *testing.T) {
		store := recordstore.NewInMemoryStore()
		store.Seed("merchants", "m-1", map[string]any{"Name": "Corner Deli", "Merchant UUID": "uuid-deli"})
		store.Seed("notes", "note-1", map[string]any{"Merchant": "Corner Deli"})

		reg, err := registry.New(testLogger(), store, registry.Config{CollectionID: "merchants"})
		require.NoError(t, err)

		r, err := New(testLogger(), store, reg, &fakeInfos{}, []Collection{{
			Name:         "notes",
			CollectionID: "notes",
			UUIDField:    "Merchant UUID",
			NameField:    "Merchant",
		}}, nil)
		require.NoError(t, err)

		uuid, err := r.RepairGap(context.Background(), models.MerchantUUIDGap{
			CollectionName: "notes",
			RecordID:       "note-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "uuid-deli", uuid)

		rec, err := store.GetRecord(context.Background(), "note-1")
		require.NoError(t, err)
		assert.Equal(t, "uuid-deli", rec.StringProp("Merchant UUID"))
	})

	t.Run("should return empty when the gap still cannot be closed", func(t *testing.T) {
		store := recordstore.NewInMemoryStore()
		store.Seed("notes", "note-1", map[string]any{"Merchant": "Unknown Shop"})

		r, err := New(testLogger(), store, nil, &fakeInfos{}, []Collection{{
			Name:         "notes",
			CollectionID: "notes",
			UUIDField:    "Merchant UUID",
			NameField:    "Merchant",
		}}, nil)
		require.NoError(t, err)

		uuid, err := r.RepairGap(context.Background(), models.MerchantUUIDGap{
			CollectionName: "notes",
			RecordID:       "note-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "", uuid)
	})

	t.Run("should reject an unknown collection", func(t *testing.T) {
		store := recordstore.NewInMemoryStore()
		r, err := New(testLogger(), store, nil, &fakeInfos{}, []Collection{{
			Name:         "notes",
			CollectionID: "notes",
			UUIDField:    "Merchant UUID",
			NameField:    "Merchant",
		}}, nil)
		require.NoError(t, err)

		_, err = r.RepairGap(context.Background(), models.MerchantUUIDGap{
			CollectionName: "elsewhere",
			RecordID:       "x",
		})
		assert.Error(t, err)
	})
}

func TestNew(t *testing.T) {
	store := recordstore.NewInMemoryStore()

	t.Run("should require a collection id and uuid field", func(t *testing.T) {
		_, err := New(testLogger(), store, nil, &fakeInfos{}, []Collection{{Name: "x"}}, nil)
		assert.Error(t, err)
	})

	t.Run("should require a resolution field", func(t *testing.T) {
		_, err := New(testLogger(), store, nil, &fakeInfos{}, []Collection{{
			Name: "x", CollectionID: "x", UUIDField: "Merchant UUID",
		}}, nil)
		assert.Error(t, err)
	})
}
