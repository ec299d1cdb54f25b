package store

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techaura/aurabot/internal/domain"
	"github.com/techaura/aurabot/internal/logging"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", logging.New(io.Discard, "disabled", "json"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleSession() *domain.Session {
	now := time.Date(2026, 3, 2, 12, 0, 0, 123456789, time.UTC)
	sess := domain.NewSession("+573001234567", now)
	sess.Stage = domain.StagePricing
	sess.BuyingIntent = 45
	sess.Tags.Add(domain.TagVIP)
	sess.AppendInteraction(domain.Interaction{
		ID:        "int-1",
		Timestamp: now,
		Text:      "cuanto cuesta la de 64GB?",
		Direction: domain.DirectionInbound,
		Intent:    domain.IntentPricing,
		Sentiment: domain.SentimentNeutral,
		Channel:   "whatsapp",
	}, 50)
	sess.RecordFollowUp(now.Add(-48*time.Hour), 10)
	sess.AddSentHash(0xdeadbeefcafef00d, 20)
	sess.PendingTaskID = "task-1"
	human := now.Add(-time.Hour)
	sess.LastHumanChat = &human
	return sess
}

func TestMirror_PersistLoadRoundTrip(t *testing.T) {
	mirror := NewSQLiteMirror(testDB(t))
	want := sampleSession()

	require.NoError(t, mirror.Persist(want))

	got, err := mirror.Load(want.Contact)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.Contact, got.Contact)
	assert.Equal(t, want.Stage, got.Stage)
	assert.Equal(t, want.BuyingIntent, got.BuyingIntent)
	assert.True(t, got.Tags.Has(domain.TagVIP))
	assert.Equal(t, want.FollowUpTotal, got.FollowUpTotal)
	assert.Equal(t, want.PendingTaskID, got.PendingTaskID)

	require.Len(t, got.InteractionLog, 1)
	assert.Equal(t, want.InteractionLog[0].Text, got.InteractionLog[0].Text)
	assert.Equal(t, want.InteractionLog[0].Intent, got.InteractionLog[0].Intent)

	// Full 64-bit fingerprints must survive the JSON column.
	assert.Equal(t, []uint64{0xdeadbeefcafef00d}, got.SentHashes)

	// Timestamps round-trip to the nanosecond.
	assert.True(t, want.LastInteraction.Equal(got.LastInteraction))
	require.NotNil(t, got.LastFollowUp)
	assert.True(t, want.LastFollowUp.Equal(*got.LastFollowUp))
	require.NotNil(t, got.LastHumanChat)
	assert.True(t, want.LastHumanChat.Equal(*got.LastHumanChat))
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestMirror_LoadUnknownContact(t *testing.T) {
	mirror := NewSQLiteMirror(testDB(t))

	got, err := mirror.Load("+573009999999")
	require.NoError(t, err)
	assert.Nil(t, got, "an unknown contact is not an error")
}

func TestMirror_PersistUpserts(t *testing.T) {
	mirror := NewSQLiteMirror(testDB(t))
	sess := sampleSession()
	require.NoError(t, mirror.Persist(sess))

	sess.Stage = domain.StageClosing
	sess.BuyingIntent = 80
	sess.PendingTaskID = ""
	require.NoError(t, mirror.Persist(sess))

	got, err := mirror.Load(sess.Contact)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StageClosing, got.Stage)
	assert.Equal(t, 80, got.BuyingIntent)
	assert.Empty(t, got.PendingTaskID)
}

func TestMirror_NilOptionalTimestamps(t *testing.T) {
	mirror := NewSQLiteMirror(testDB(t))
	sess := domain.NewSession("+573001234567", time.Now().UTC())

	require.NoError(t, mirror.Persist(sess))

	got, err := mirror.Load(sess.Contact)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.LastFollowUp)
	assert.Nil(t, got.LastHumanChat)
	assert.True(t, got.LastInteraction.IsZero())
}

func TestMirror_DeleteIdempotent(t *testing.T) {
	mirror := NewSQLiteMirror(testDB(t))
	sess := sampleSession()
	require.NoError(t, mirror.Persist(sess))

	require.NoError(t, mirror.Delete(sess.Contact))
	require.NoError(t, mirror.Delete(sess.Contact), "deleting an absent row is fine")

	got, err := mirror.Load(sess.Contact)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMirror_RejectsUnknownStage(t *testing.T) {
	db := testDB(t)
	mirror := NewSQLiteMirror(db)

	_, err := db.SQL().Exec(
		`INSERT INTO sessions (contact, stage, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		"+573001234567", "haggling", "2026-03-02T12:00:00Z", "2026-03-02T12:00:00Z",
	)
	require.NoError(t, err)

	_, err = mirror.Load("+573001234567")
	assert.Error(t, err)
}

func TestOpen_MigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aurabot.db")
	log := logging.New(io.Discard, "disabled", "json")

	db, err := Open(path, log)
	require.NoError(t, err)
	require.NoError(t, NewSQLiteMirror(db).Persist(sampleSession()))
	require.NoError(t, db.Close())

	// Reopening runs no migrations and keeps the data.
	db, err = Open(path, log)
	require.NoError(t, err)
	defer db.Close()

	got, err := NewSQLiteMirror(db).Load("+573001234567")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StagePricing, got.Stage)
}
