package store

import (
	"database/sql"
	"fmt"
)

// Summary is a write-once audit record of a digest generation. Rows are
// appended, never updated.
type Summary struct {
	ID        int64
	ChannelID string
	Summary   string
	CreatedAt string // ISO-8601
}

// CreateSummary appends a new Summary row and returns it.
func (s *Store) CreateSummary(channelID, text string) (*Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowISO()
	res, err := s.db.Exec(
		`INSERT INTO summaries (channel_id, summary, created_at) VALUES (?, ?, ?)`,
		nullable(channelID), text, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create summary: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read summary id: %w", err)
	}

	return &Summary{ID: id, ChannelID: channelID, Summary: text, CreatedAt: now}, nil
}

// ListSummaries returns the most recent summaries, newest first.
func (s *Store) ListSummaries(limit int) ([]*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, channel_id, summary, created_at FROM summaries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*Summary
	for rows.Next() {
		sm := &Summary{}
		var channelID sql.NullString
		if err := rows.Scan(&sm.ID, &channelID, &sm.Summary, &sm.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		sm.ChannelID = channelID.String
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}
