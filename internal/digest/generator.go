// Package digest aggregates task and issue counts into the daily summary.
package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/devtrack-agent/internal/issue"
	"github.com/p-blackswan/devtrack-agent/internal/store"
)

// Notifier posts a rendered digest to the outbound channel. Delivery is
// best-effort: failures are logged, never retried or re-raised.
type Notifier interface {
	PostMessage(channel, text string) error
}

// Generator renders and persists daily summaries.
type Generator struct {
	store          *store.Store
	notifier       Notifier // optional
	defaultChannel string
	logger         zerolog.Logger
	now            func() time.Time
}

// NewGenerator creates a digest generator. notifier may be nil when no
// outbound delivery is configured.
func NewGenerator(st *store.Store, notifier Notifier, defaultChannel string, logger zerolog.Logger) *Generator {
	return &Generator{
		store:          st,
		notifier:       notifier,
		defaultChannel: defaultChannel,
		logger:         logger.With().Str("component", "digest").Logger(),
		now:            time.Now,
	}
}

// Generate renders the daily summary, persists it as a new Summary row and
// returns the text verbatim. Each call appends a row; nothing is overwritten.
//
// Task counts are scoped to channelID when given; the issue severity
// breakdown is always global. That asymmetry is intentional.
func (g *Generator) Generate(channelID string) (string, error) {
	taskCounts, err := g.store.CountTasksByStatus(store.Scope{ChannelID: channelID})
	if err != nil {
		g.logger.Error().Err(err).Msg("task count failed")
		return "", err
	}
	issueCounts, err := g.store.CountIssuesBySeverity()
	if err != nil {
		g.logger.Error().Err(err).Msg("issue count failed")
		return "", err
	}

	now := g.now().UTC()
	date := now.Format("2006-01-02")

	var b strings.Builder
	fmt.Fprintf(&b, "🗓️ **Daily Developer Summary** (%s)\n\n", date)

	b.WriteString("**📋 Tasks Overview:**\n")
	if len(taskCounts) > 0 {
		for _, c := range taskCounts {
			fmt.Fprintf(&b, "  • %d %s\n", c.Count, c.Status)
		}
	} else {
		b.WriteString("  • No tasks recorded\n")
	}

	b.WriteString("\n**🚨 Issues by Severity:**\n")
	bySeverity := make(map[string]int, len(issueCounts))
	for _, c := range issueCounts {
		bySeverity[c.Severity] = c.Count
	}
	hasIssues := false
	for _, sev := range issue.SeverityOrder {
		if count, ok := bySeverity[sev]; ok {
			fmt.Fprintf(&b, "  • %d %s\n", count, sev)
			hasIssues = true
		}
	}
	if !hasIssues {
		b.WriteString("  • No issues recorded\n")
	}

	// Up to 5 tasks created since today's UTC midnight.
	recent, err := g.store.TasksCreatedSince(date+"T00:00:00.000Z", 5)
	if err != nil {
		g.logger.Error().Err(err).Msg("recent tasks failed")
		return "", err
	}
	if len(recent) > 0 {
		b.WriteString("\n**🔄 Recent Tasks:**\n")
		for _, t := range recent {
			fmt.Fprintf(&b, "  • %q [%s]\n", t.Title, t.Status)
		}
	}

	summary := b.String()
	if _, err := g.store.CreateSummary(channelID, summary); err != nil {
		g.logger.Error().Err(err).Msg("persist summary failed")
		return "", err
	}
	g.logger.Info().Str("channel", channelID).Msg("daily summary generated")
	return summary, nil
}

// Run generates the digest for the default channel and pushes it to the
// outbound notifier when one is configured. Used by the scheduler and the
// manual trigger endpoint.
func (g *Generator) Run() (string, error) {
	summary, err := g.Generate(g.defaultChannel)
	if err != nil {
		return "", err
	}

	if g.notifier != nil {
		channel := g.defaultChannel
		if channel == "" {
			channel = "global"
		}
		if err := g.notifier.PostMessage(channel, summary); err != nil {
			g.logger.Error().Err(err).Msg("outbound digest post failed")
		} else {
			g.logger.Info().Str("channel", channel).Msg("digest posted to outbound channel")
		}
	}
	return summary, nil
}

// RecentSummaries renders the most recent persisted summaries.
func (g *Generator) RecentSummaries(limit int) (string, error) {
	summaries, err := g.store.ListSummaries(limit)
	if err != nil {
		g.logger.Error().Err(err).Msg("list summaries failed")
		return "", err
	}
	if len(summaries) == 0 {
		return "No summaries yet.", nil
	}
	lines := make([]string, len(summaries))
	for i, s := range summaries {
		lines[i] = s.CreatedAt + " • " + s.Summary
	}
	return strings.Join(lines, "\n\n"), nil
}
