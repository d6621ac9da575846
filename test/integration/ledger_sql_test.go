package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/repositories/mailthread"
	"github.com/Ramsey-B/clover/internal/repositories/merchantaggregate"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// setupLedgerDB connects to the test database and applies migrations.
// Skips when no database is configured so the suite stays runnable
// without one.
func setupLedgerDB(t *testing.T) database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("Database not configured")
	}

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	dbName := envOr("TEST_DB_NAME", "clover_test")
	db, err := database.Connect(database.Config{
		Host:     host,
		Port:     envOr("TEST_DB_PORT", "5432"),
		UserName: envOr("TEST_DB_USER", "postgres"),
		Password: envOr("TEST_DB_PASSWORD", "postgres"),
		Name:     dbName,
		SSLMode:  "disable",
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	instance, ok := db.(*database.DatabaseInstance)
	require.True(t, ok)
	ms := database.NewMigrationService(logger, &database.MigrationConfig{MigrationFolderPath: "../../db/pg"})
	require.NoError(t, ms.MigrateSQLX(instance.DB, dbName))

	return db
}

func testProfileID() string {
	return "test-profile-" + uuid.New().String()[:8]
}

func TestMerchantAggregateMergeRules(t *testing.T) {
	db := setupLedgerDB(t)
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	repo := merchantaggregate.NewRepository(db, logger)
	ctx := context.Background()

	t.Run("should ignore an older interaction arriving after a newer one", func(t *testing.T) {
		profileID := testProfileID()
		newer := time.Now().UTC().Truncate(time.Second)
		older := newer.Add(-time.Hour)

		require.NoError(t, repo.ApplyInteraction(ctx, profileID, models.InteractionTypeCall, &newer, strPtr("second delivery"), true))
		require.NoError(t, repo.ApplyInteraction(ctx, profileID, models.InteractionTypeMail, &older, strPtr("first delivery"), true))

		agg, err := repo.Get(ctx, profileID)
		require.NoError(t, err)
		require.NotNil(t, agg)

		// Both counters moved, but the last_* trio stays on the newer one.
		assert.Equal(t, int64(1), agg.TotalCalls)
		assert.Equal(t, int64(1), agg.TotalMail)
		require.NotNil(t, agg.LastInteractionType)
		assert.Equal(t, "call", *agg.LastInteractionType)
		require.NotNil(t, agg.LastSummary)
		assert.Equal(t, "second delivery", *agg.LastSummary)
		require.NotNil(t, agg.FirstInteractionAt)
		assert.WithinDuration(t, older, *agg.FirstInteractionAt, time.Second)
		require.NotNil(t, agg.LastInteractionAt)
		assert.WithinDuration(t, newer, *agg.LastInteractionAt, time.Second)
	})

	t.Run("should prefer the incoming interaction on a timestamp tie", func(t *testing.T) {
		profileID := testProfileID()
		at := time.Now().UTC().Truncate(time.Second)

		require.NoError(t, repo.ApplyInteraction(ctx, profileID, models.InteractionTypeCall, &at, strPtr("first"), true))
		require.NoError(t, repo.ApplyInteraction(ctx, profileID, models.InteractionTypeMessage, &at, strPtr("second"), true))

		agg, err := repo.Get(ctx, profileID)
		require.NoError(t, err)
		require.NotNil(t, agg)
		require.NotNil(t, agg.LastInteractionType)
		assert.Equal(t, "message", *agg.LastInteractionType)
		require.NotNil(t, agg.LastSummary)
		assert.Equal(t, "second", *agg.LastSummary)
	})

	t.Run("should not re-increment counters on redelivery", func(t *testing.T) {
		profileID := testProfileID()
		at := time.Now().UTC()

		require.NoError(t, repo.ApplyInteraction(ctx, profileID, models.InteractionTypeCall, &at, nil, true))
		require.NoError(t, repo.ApplyInteraction(ctx, profileID, models.InteractionTypeCall, &at, nil, false))

		agg, err := repo.Get(ctx, profileID)
		require.NoError(t, err)
		require.NotNil(t, agg)
		assert.Equal(t, int64(1), agg.TotalCalls)
	})

	t.Run("should preserve the uuid when a later upsert carries none", func(t *testing.T) {
		profileID := testProfileID()
		merchantUUID := uuid.New().String()

		_, err := repo.Upsert(ctx, models.MerchantAggregateUpsert{
			ProfileID: profileID,
			UUID:      &merchantUUID,
			Name:      "Blue Bottle Coffee",
		})
		require.NoError(t, err)

		agg, err := repo.Upsert(ctx, models.MerchantAggregateUpsert{
			ProfileID: profileID,
			Name:      "Blue Bottle Coffee Co",
		})
		require.NoError(t, err)

		require.NotNil(t, agg.UUID)
		assert.Equal(t, merchantUUID, *agg.UUID)
		assert.Equal(t, "Blue Bottle Coffee Co", agg.Name)
	})
}

func TestMailThreadMergeRules(t *testing.T) {
	db := setupLedgerDB(t)
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	repo := mailthread.NewRepository(db, logger)
	ctx := context.Background()

	int64Ptr := func(n int64) *int64 { return &n }

	t.Run("should leave the count untouched when none is provided", func(t *testing.T) {
		threadID := "test-thread-" + uuid.New().String()[:8]
		profileID := testProfileID()

		_, err := repo.Upsert(ctx, models.MailThreadUpsert{
			ThreadID:     threadID,
			ProfileID:    profileID,
			MessageCount: int64Ptr(5),
		})
		require.NoError(t, err)

		thread, err := repo.Upsert(ctx, models.MailThreadUpsert{
			ThreadID:           threadID,
			ProfileID:          profileID,
			LastMessagePreview: strPtr("Attached is the invoice"),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(5), thread.MessageCount)
		require.NotNil(t, thread.LastMessagePreview)
		assert.Equal(t, "Attached is the invoice", *thread.LastMessagePreview)
	})

	t.Run("should overwrite the count with an explicit zero", func(t *testing.T) {
		threadID := "test-thread-" + uuid.New().String()[:8]
		profileID := testProfileID()

		_, err := repo.Upsert(ctx, models.MailThreadUpsert{
			ThreadID:     threadID,
			ProfileID:    profileID,
			MessageCount: int64Ptr(5),
		})
		require.NoError(t, err)

		thread, err := repo.Upsert(ctx, models.MailThreadUpsert{
			ThreadID:     threadID,
			ProfileID:    profileID,
			MessageCount: int64Ptr(0),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), thread.MessageCount)
	})

	t.Run("should keep the newest last_message_at", func(t *testing.T) {
		threadID := "test-thread-" + uuid.New().String()[:8]
		profileID := testProfileID()
		newer := time.Now().UTC().Truncate(time.Second)
		older := newer.Add(-time.Hour)

		_, err := repo.Upsert(ctx, models.MailThreadUpsert{
			ThreadID:      threadID,
			ProfileID:     profileID,
			LastMessageAt: &newer,
		})
		require.NoError(t, err)

		thread, err := repo.Upsert(ctx, models.MailThreadUpsert{
			ThreadID:      threadID,
			ProfileID:     profileID,
			LastMessageAt: &older,
		})
		require.NoError(t, err)
		require.NotNil(t, thread.LastMessageAt)
		assert.WithinDuration(t, newer, *thread.LastMessageAt, time.Second)
	})
}
