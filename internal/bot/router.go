// Package bot implements the command router: an ordered pattern table that
// maps inbound chat text to task, issue and digest operations.
package bot

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/devtrack-agent/internal/digest"
	"github.com/p-blackswan/devtrack-agent/internal/issue"
	"github.com/p-blackswan/devtrack-agent/internal/metrics"
	"github.com/p-blackswan/devtrack-agent/internal/store"
	"github.com/p-blackswan/devtrack-agent/internal/task"
)

// HelpReply is the final fallback when nothing matched and the external
// agent produced no output.
const HelpReply = `Hi — I'm the DevTracker assistant. Try: "add task <title>", "mark <task> as done", "delete <task>", "delete all completed", "issue <title>", "show issues", "resolve issue <title>", or "summary".`

// Metadata carries the scoping keys of an inbound message.
type Metadata struct {
	ChannelID string `json:"channelId,omitempty"`
	UserID    string `json:"userId,omitempty"`
}

// Reply is the caller-facing result of routing one message.
type Reply struct {
	Output  string `json:"output"`
	Actions []any  `json:"actions,omitempty"`
}

// AgentReply is the usable result of an external agent delegation.
type AgentReply struct {
	Output  string
	Actions []any
}

// ExternalAgent delegates unmatched input to the conversational agent.
// Implementations swallow failures and return nil.
type ExternalAgent interface {
	Query(ctx context.Context, input, systemPrompt string, md Metadata) *AgentReply
}

// intent is one row of the ordered dispatch table. The handler returns nil
// to fall through to the next row (empty operand after a syntactic match).
type intent struct {
	name    string
	pattern *regexp.Regexp
	handle  func(match []string, md Metadata) (*Reply, error)
}

// Router dispatches inbound text across the ordered intent table, then to
// the external agent, then to the static help reply.
type Router struct {
	tasks          *task.Engine
	issues         *issue.Engine
	digest         *digest.Generator
	agent          ExternalAgent // nil when not configured
	systemPrompt   string
	defaultChannel string
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	intents        []intent
}

// NewRouter builds a router over the three engines. agent may be nil.
func NewRouter(tasks *task.Engine, issues *issue.Engine, dg *digest.Generator, agent ExternalAgent, systemPrompt, defaultChannel string, m *metrics.Metrics, logger zerolog.Logger) *Router {
	r := &Router{
		tasks:          tasks,
		issues:         issues,
		digest:         dg,
		agent:          agent,
		systemPrompt:   systemPrompt,
		defaultChannel: defaultChannel,
		metrics:        m,
		logger:         logger.With().Str("component", "bot.router").Logger(),
	}
	r.intents = r.buildIntents()
	return r
}

// buildIntents returns the dispatch table in canonical priority order.
// Issue commands come first so "delete" and "show" are not shadowed by task
// commands; the bulk "delete all completed" must precede the generic delete.
func (r *Router) buildIntents() []intent {
	return []intent{
		{
			name:    "issue_add",
			pattern: regexp.MustCompile(`(?is)^issue\s+(.+)$`),
			handle: func(m []string, md Metadata) (*Reply, error) {
				title := strings.TrimSpace(m[1])
				if title == "" {
					return nil, nil
				}
				return r.reply(r.issues.AddIssue(r.channel(md), title, ""))
			},
		},
		{
			name:    "issues_show",
			pattern: regexp.MustCompile(`(?i)^show\s+issues$`),
			handle: func(m []string, md Metadata) (*Reply, error) {
				return r.reply(r.issues.ShowIssues(r.channel(md)))
			},
		},
		{
			name:    "issue_resolve",
			pattern: regexp.MustCompile(`(?is)^resolve\s+issue\s+(.+)$`),
			handle: func(m []string, md Metadata) (*Reply, error) {
				operand := strings.TrimSpace(m[1])
				if operand == "" {
					return nil, nil
				}
				return r.reply(r.issues.ResolveIssue(r.channel(md), operand))
			},
		},
		{
			name:    "issues_delete_resolved",
			pattern: regexp.MustCompile(`(?i)^delete\s+all\s+resolved\s+issues$`),
			handle: func(m []string, md Metadata) (*Reply, error) {
				return r.reply(r.issues.DeleteResolved(r.channel(md)))
			},
		},
		{
			name:    "task_add",
			pattern: regexp.MustCompile(`(?is)^add\s+task\s+(.+)$`),
			handle: func(m []string, md Metadata) (*Reply, error) {
				title := strings.TrimSpace(m[1])
				if title == "" {
					return nil, nil
				}
				return r.reply(r.tasks.AddTask(title, "", r.scope(md)))
			},
		},
		{
			name:    "task_mark",
			pattern: regexp.MustCompile(`(?is)^mark\s+(.+)\s+as\s+(\S+(?:\s+\S+)*)$`),
			handle: func(m []string, md Metadata) (*Reply, error) {
				operand := strings.TrimSpace(m[1])
				status := normalizeStatus(m[2])
				if operand == "" || status == "" {
					return nil, nil
				}
				return r.reply(r.tasks.MarkTask(operand, status, r.scope(md)))
			},
		},
		{
			// Checked before the generic delete so "all completed" is never
			// parsed as a title fragment.
			name:    "tasks_delete_completed",
			pattern: regexp.MustCompile(`(?i)^delete\s+all\s+completed(?:\s+tasks)?$`),
			handle: func(m []string, md Metadata) (*Reply, error) {
				return r.reply(r.tasks.DeleteCompleted(r.scope(md)))
			},
		},
		{
			name:    "task_delete",
			pattern: regexp.MustCompile(`(?is)^delete\s+(.+)$`),
			handle: func(m []string, md Metadata) (*Reply, error) {
				operand := strings.TrimSpace(m[1])
				if operand == "" {
					return nil, nil
				}
				return r.reply(r.tasks.DeleteTask(operand, r.scope(md)))
			},
		},
		{
			name:    "tasks_list",
			pattern: regexp.MustCompile(`(?i)^(?:show|list)\s+tasks$`),
			handle: func(m []string, md Metadata) (*Reply, error) {
				return r.reply(r.tasks.ListTasks("", r.scope(md)))
			},
		},
		{
			name:    "summary",
			pattern: regexp.MustCompile(`(?i)^(?:summary|daily\s+summary|show\s+summary)$`),
			handle: func(m []string, md Metadata) (*Reply, error) {
				out, err := r.digest.Generate(r.channel(md))
				r.metrics.ObserveDigestRun("command", statusLabel(err))
				return r.reply(out, err)
			},
		},
	}
}

// HandleMessage routes one inbound message to exactly one reply. Pattern
// misses degrade to the external agent and finally the help text; only
// engine failures propagate as errors.
func (r *Router) HandleMessage(ctx context.Context, text string, md Metadata) (*Reply, error) {
	trimmed := strings.TrimSpace(text)

	if trimmed != "" {
		for _, in := range r.intents {
			m := in.pattern.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			start := time.Now()
			reply, err := in.handle(m, md)
			if err != nil {
				r.metrics.ObserveCommand(in.name, "error", time.Since(start))
				r.logger.Error().Err(err).Str("intent", in.name).Msg("command failed")
				return nil, err
			}
			if reply == nil {
				// Matched syntactically but the operand was empty: no match.
				continue
			}
			r.metrics.ObserveCommand(in.name, "ok", time.Since(start))
			r.logger.Info().Str("intent", in.name).Str("channel", r.channel(md)).Msg("command routed")
			return reply, nil
		}
	}

	if r.agent != nil {
		if out := r.agent.Query(ctx, text, r.systemPrompt, md); out != nil && out.Output != "" {
			r.metrics.ObserveCommand("external_agent", "ok", 0)
			return &Reply{Output: out.Output, Actions: out.Actions}, nil
		}
	}

	r.metrics.ObserveCommand("help", "ok", 0)
	return &Reply{Output: HelpReply}, nil
}

// channel returns the effective channel id, falling back to the configured
// default.
func (r *Router) channel(md Metadata) string {
	if md.ChannelID != "" {
		return md.ChannelID
	}
	return r.defaultChannel
}

func (r *Router) scope(md Metadata) store.Scope {
	return store.Scope{ChannelID: r.channel(md), UserID: md.UserID}
}

func (r *Router) reply(out string, err error) (*Reply, error) {
	if err != nil {
		return nil, err
	}
	return &Reply{Output: out}, nil
}

// normalizeStatus collapses internal whitespace to underscores so phrases
// like "in progress" become status tokens.
func normalizeStatus(s string) string {
	return strings.Join(strings.Fields(s), "_")
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
