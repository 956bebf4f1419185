// Package issue implements the issue lifecycle: severity classification,
// channel-scoped listing and one-way resolution.
package issue

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/devtrack-agent/internal/store"
)

// NotFoundReply renders the sentinel for a failed issue resolution.
func NotFoundReply(idOrText string) string {
	return fmt.Sprintf("Issue not found for %q", idOrText)
}

// NoIssuesReply is the sentinel for a channel with zero issues.
const NoIssuesReply = "No issues found."

// Engine renders issue operations as user-facing reply strings. Unlike the
// task engine, store failures are wrapped with a generic message.
type Engine struct {
	store  *store.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewEngine creates an issue engine.
func NewEngine(st *store.Store, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  st,
		logger: logger.With().Str("component", "issue.engine").Logger(),
		now:    time.Now,
	}
}

// AddIssue logs a new unresolved issue. Severity defaults to the classifier
// output when not supplied.
func (e *Engine) AddIssue(channelID, title, severity string) (string, error) {
	if severity == "" {
		severity = DetectSeverity(title)
	}
	issue, err := e.store.CreateIssue(channelID, title, severity)
	if err != nil {
		e.logger.Error().Err(err).Str("channel", channelID).Msg("create issue failed")
		return "", fmt.Errorf("failed to log issue: %w", err)
	}
	e.logger.Info().Int64("id", issue.ID).Str("severity", severity).Msg("issue logged")
	return fmt.Sprintf("Detected issue (severity: %s). Logged to issue tracker.", severity), nil
}

// ShowIssues renders the channel's issues: unresolved first, then resolved,
// each sub-grouped by severity in fixed order. Resolved entries carry their
// resolution date.
func (e *Engine) ShowIssues(channelID string) (string, error) {
	issues, err := e.store.ListIssues(channelID)
	if err != nil {
		e.logger.Error().Err(err).Str("channel", channelID).Msg("list issues failed")
		return "", fmt.Errorf("failed to retrieve issues: %w", err)
	}
	if len(issues) == 0 {
		return NoIssuesReply, nil
	}

	bySection := map[bool]map[string][]*store.Issue{
		false: {},
		true:  {},
	}
	for _, i := range issues {
		bySection[i.Resolved][i.Severity] = append(bySection[i.Resolved][i.Severity], i)
	}

	var b strings.Builder
	writeSection := func(title string, group map[string][]*store.Issue, resolved bool) {
		empty := true
		for _, sev := range SeverityOrder {
			if len(group[sev]) > 0 {
				empty = false
			}
		}
		if empty {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(title + "\n")
		for _, sev := range SeverityOrder {
			for _, i := range group[sev] {
				if resolved {
					fmt.Fprintf(&b, "#%d • %s [%s] (resolved %s)\n", i.ID, i.Description, i.Severity, i.ResolvedAt)
				} else {
					fmt.Fprintf(&b, "#%d • %s [%s]\n", i.ID, i.Description, i.Severity)
				}
			}
		}
	}

	writeSection("Unresolved issues:", bySection[false], false)
	writeSection("Resolved issues:", bySection[true], true)
	return strings.TrimRight(b.String(), "\n"), nil
}

// ResolveIssue resolves idOrText against the channel's unresolved issues and
// marks the match resolved. The stored description is rewritten to carry the
// resolution timestamp; resolution is one-way.
func (e *Engine) ResolveIssue(channelID, idOrText string) (string, error) {
	issue, err := e.store.FindUnresolvedIssue(channelID, idOrText)
	if err != nil {
		e.logger.Error().Err(err).Str("channel", channelID).Msg("find issue failed")
		return "", fmt.Errorf("failed to resolve issue: %w", err)
	}
	if issue == nil {
		return NotFoundReply(idOrText), nil
	}

	now := e.now().UTC()
	resolvedAt := now.Format(store.ISOFormat)
	description := fmt.Sprintf("[Resolved %s] %s", now.Format("2006-01-02 15:04 UTC"), issue.Description)

	if err := e.store.ResolveIssue(issue.ID, resolvedAt, description); err != nil {
		e.logger.Error().Err(err).Int64("id", issue.ID).Msg("resolve issue failed")
		return "", fmt.Errorf("failed to resolve issue: %w", err)
	}
	e.logger.Info().Int64("id", issue.ID).Msg("issue resolved")
	return fmt.Sprintf("Resolved issue #%d %q", issue.ID, issue.Description), nil
}

// DeleteResolved bulk-deletes all resolved issues in the channel.
func (e *Engine) DeleteResolved(channelID string) (string, error) {
	count, err := e.store.DeleteResolvedIssues(channelID)
	if err != nil {
		e.logger.Error().Err(err).Str("channel", channelID).Msg("delete resolved issues failed")
		return "", fmt.Errorf("failed to delete issues: %w", err)
	}
	e.logger.Info().Int64("count", count).Msg("resolved issues deleted")
	return fmt.Sprintf("Deleted %d resolved issues", count), nil
}
