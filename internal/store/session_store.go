package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/techaura/aurabot/internal/domain"
)

// SQLiteMirror implements engine.Mirror backed by SQLite. It is strictly
// write-through: the in-memory store stays authoritative and consults the
// mirror only on first touch of a contact.
type SQLiteMirror struct {
	db *DB
}

// NewSQLiteMirror creates a mirror using the given database.
func NewSQLiteMirror(db *DB) *SQLiteMirror {
	return &SQLiteMirror{db: db}
}

// Persist upserts the full session row.
func (m *SQLiteMirror) Persist(sess *domain.Session) error {
	tags, err := json.Marshal(sess.Tags.List())
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	log, err := json.Marshal(sess.InteractionLog)
	if err != nil {
		return fmt.Errorf("encoding interaction log: %w", err)
	}
	history, err := json.Marshal(sess.FollowUpHistory)
	if err != nil {
		return fmt.Errorf("encoding follow-up history: %w", err)
	}
	hashes, err := json.Marshal(sess.SentHashes)
	if err != nil {
		return fmt.Errorf("encoding fingerprints: %w", err)
	}

	_, err = m.db.sql.Exec(
		`INSERT INTO sessions (contact, stage, buying_intent, tags, interaction_log,
			followup_history, followup_total, last_interaction, last_followup,
			sent_hashes, pending_task_id, last_human_chat, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(contact) DO UPDATE SET
			stage = excluded.stage,
			buying_intent = excluded.buying_intent,
			tags = excluded.tags,
			interaction_log = excluded.interaction_log,
			followup_history = excluded.followup_history,
			followup_total = excluded.followup_total,
			last_interaction = excluded.last_interaction,
			last_followup = excluded.last_followup,
			sent_hashes = excluded.sent_hashes,
			pending_task_id = excluded.pending_task_id,
			last_human_chat = excluded.last_human_chat,
			updated_at = excluded.updated_at`,
		sess.Contact, string(sess.Stage), sess.BuyingIntent, string(tags), string(log),
		string(history), sess.FollowUpTotal, formatTime(sess.LastInteraction),
		formatTimePtr(sess.LastFollowUp), string(hashes), sess.PendingTaskID,
		formatTimePtr(sess.LastHumanChat), formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("persisting session %s: %w", sess.Contact, err)
	}
	return nil
}

// Load reads one session row, returning (nil, nil) when the contact is
// unknown.
func (m *SQLiteMirror) Load(contact string) (*domain.Session, error) {
	var (
		sess                              domain.Session
		stage                             string
		tags, log, history, hashes        string
		lastInteraction, created, updated string
		lastFollowUp, lastHumanChat       sql.NullString
	)

	err := m.db.sql.QueryRow(
		`SELECT contact, stage, buying_intent, tags, interaction_log,
			followup_history, followup_total, last_interaction, last_followup,
			sent_hashes, pending_task_id, last_human_chat, created_at, updated_at
		 FROM sessions WHERE contact = ?`, contact,
	).Scan(
		&sess.Contact, &stage, &sess.BuyingIntent, &tags, &log,
		&history, &sess.FollowUpTotal, &lastInteraction, &lastFollowUp,
		&hashes, &sess.PendingTaskID, &lastHumanChat, &created, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", contact, err)
	}

	sess.Stage = domain.Stage(stage)
	if !sess.Stage.Valid() {
		return nil, fmt.Errorf("session %s has unknown stage %q", contact, stage)
	}

	var tagList []string
	if err := json.Unmarshal([]byte(tags), &tagList); err != nil {
		return nil, fmt.Errorf("decoding tags for %s: %w", contact, err)
	}
	sess.Tags = domain.TagSet{}
	for _, t := range tagList {
		sess.Tags.Add(t)
	}

	if err := json.Unmarshal([]byte(log), &sess.InteractionLog); err != nil {
		return nil, fmt.Errorf("decoding interaction log for %s: %w", contact, err)
	}
	if err := json.Unmarshal([]byte(history), &sess.FollowUpHistory); err != nil {
		return nil, fmt.Errorf("decoding follow-up history for %s: %w", contact, err)
	}
	if err := json.Unmarshal([]byte(hashes), &sess.SentHashes); err != nil {
		return nil, fmt.Errorf("decoding fingerprints for %s: %w", contact, err)
	}

	sess.LastInteraction = parseTime(lastInteraction)
	sess.LastFollowUp = parseTimePtr(lastFollowUp)
	sess.LastHumanChat = parseTimePtr(lastHumanChat)
	sess.CreatedAt = parseTime(created)
	sess.UpdatedAt = parseTime(updated)
	return &sess, nil
}

// Delete removes the session row. Deleting an absent row is not an error.
func (m *SQLiteMirror) Delete(contact string) error {
	if _, err := m.db.sql.Exec(`DELETE FROM sessions WHERE contact = ?`, contact); err != nil {
		return fmt.Errorf("deleting session %s: %w", contact, err)
	}
	return nil
}

// Timestamps round-trip as RFC 3339 with nanoseconds: the send gates
// compare exact instants, so the sqlite datetime() granularity is not
// enough here.

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
