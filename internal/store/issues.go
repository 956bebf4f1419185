package store

import (
	"database/sql"
	"fmt"
)

// Issue represents a detected issue. Issues are always channel-scoped.
type Issue struct {
	ID          int64
	Description string
	Severity    string // critical, high, medium, low
	ChannelID   string
	Resolved    bool
	ResolvedAt  string // ISO-8601, "" while unresolved
	DetectedAt  string // ISO-8601
}

const issueColumns = `id, description, severity, channel_id, resolved, resolved_at, detected_at`

func scanIssue(row interface{ Scan(...any) error }) (*Issue, error) {
	i := &Issue{}
	var channelID, resolvedAt sql.NullString
	var resolved int
	if err := row.Scan(&i.ID, &i.Description, &i.Severity, &channelID, &resolved, &resolvedAt, &i.DetectedAt); err != nil {
		return nil, err
	}
	i.ChannelID = channelID.String
	i.Resolved = resolved != 0
	i.ResolvedAt = resolvedAt.String
	return i, nil
}

// CreateIssue inserts a new unresolved issue and returns it with the
// store-assigned id.
func (s *Store) CreateIssue(channelID, description, severity string) (*Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowISO()
	res, err := s.db.Exec(
		`INSERT INTO issues (description, severity, channel_id, resolved, detected_at) VALUES (?, ?, ?, 0, ?)`,
		description, severity, nullable(channelID), now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read issue id: %w", err)
	}

	return &Issue{
		ID:          id,
		Description: description,
		Severity:    severity,
		ChannelID:   channelID,
		DetectedAt:  now,
	}, nil
}

// ListIssues returns all issues for a channel, newest first.
func (s *Store) ListIssues(channelID string) ([]*Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+issueColumns+` FROM issues WHERE channel_id = ? ORDER BY id DESC`, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	var issues []*Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, i)
	}
	return issues, rows.Err()
}

// FindUnresolvedIssue resolves idOrText to at most one currently-unresolved
// issue in the channel, using the same id-vs-substring rule as tasks.
// Returns (nil, nil) when nothing matches.
func (s *Store) FindUnresolvedIssue(channelID, idOrText string) (*Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qb := &queryBuilder{}
	if isAllDigits(idOrText) {
		qb.where("id = ?", idOrText)
	} else {
		qb.where("description LIKE ?", "%"+idOrText+"%")
	}
	qb.where("channel_id = ?", channelID)
	qb.where("resolved = 0")
	clause, args := qb.clause()

	row := s.db.QueryRow(`SELECT `+issueColumns+` FROM issues`+clause+` ORDER BY id DESC LIMIT 1`, args...)
	i, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find issue: %w", err)
	}
	return i, nil
}

// ResolveIssue marks an issue resolved, stamps resolved_at and rewrites the
// description. Resolution is one-way; there is no un-resolve.
func (s *Store) ResolveIssue(id int64, resolvedAt, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE issues SET resolved = 1, resolved_at = ?, description = ? WHERE id = ? AND resolved = 0`,
		resolvedAt, description, id,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve issue: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("issue not found or already resolved: %d", id)
	}
	return nil
}

// DeleteResolvedIssues bulk-deletes all resolved issues in the channel and
// returns the number of rows removed.
func (s *Store) DeleteResolvedIssues(channelID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM issues WHERE channel_id = ? AND resolved = 1`, channelID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete resolved issues: %w", err)
	}
	return res.RowsAffected()
}

// SeverityCount pairs a severity with the number of issues carrying it.
type SeverityCount struct {
	Severity string
	Count    int
}

// CountIssuesBySeverity counts all issues grouped by severity. Deliberately
// global — the digest's severity breakdown spans every channel.
func (s *Store) CountIssuesBySeverity() ([]SeverityCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT severity, COUNT(*) FROM issues GROUP BY severity`)
	if err != nil {
		return nil, fmt.Errorf("failed to count issues: %w", err)
	}
	defer rows.Close()

	var counts []SeverityCount
	for rows.Next() {
		var c SeverityCount
		if err := rows.Scan(&c.Severity, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan issue count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
