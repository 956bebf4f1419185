// Package task implements CRUD and query operations over tasks, scoped
// additively by channel and user.
package task

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/devtrack-agent/internal/store"
	"github.com/p-blackswan/devtrack-agent/internal/ttlcache"
)

// NotFoundReply renders the sentinel for a failed task resolution.
func NotFoundReply(idOrText string) string {
	return fmt.Sprintf("Task not found for %q", idOrText)
}

// NoTasksReply is the sentinel for an empty listing.
const NoTasksReply = "No tasks found."

// Engine renders task operations as user-facing reply strings. Store
// failures propagate unwrapped; resolution misses become sentinel strings.
type Engine struct {
	store  *store.Store
	cache  *ttlcache.Cache[string, string] // read path only; nil disables
	logger zerolog.Logger
}

// NewEngine creates a task engine. A nil cache disables list caching.
func NewEngine(st *store.Store, cache *ttlcache.Cache[string, string], logger zerolog.Logger) *Engine {
	return &Engine{
		store:  st,
		cache:  cache,
		logger: logger.With().Str("component", "task.engine").Logger(),
	}
}

// AddTask creates a pending task and confirms with its assigned id.
func (e *Engine) AddTask(title, labels string, sc store.Scope) (string, error) {
	t, err := e.store.CreateTask(title, labels, sc)
	if err != nil {
		e.logger.Error().Err(err).Msg("create task failed")
		return "", err
	}
	e.logger.Info().Int64("id", t.ID).Str("channel", sc.ChannelID).Msg("task added")
	return fmt.Sprintf("Added task #%d: %q", t.ID, t.Title), nil
}

// ListTasks renders tasks matching the filter, one line per task, newest
// first. Results are served from the read cache when fresh.
func (e *Engine) ListTasks(status string, sc store.Scope) (string, error) {
	key := cacheKey(status, sc)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			e.logger.Debug().Str("key", key).Msg("list served from cache")
			return cached, nil
		}
	}

	tasks, err := e.store.ListTasks(store.TaskFilter{Status: status, Scope: sc})
	if err != nil {
		e.logger.Error().Err(err).Msg("list tasks failed")
		return "", err
	}

	out := NoTasksReply
	if len(tasks) > 0 {
		lines := make([]string, len(tasks))
		for i, t := range tasks {
			lines[i] = FormatLine(t)
		}
		out = strings.Join(lines, "\n")
	}

	if e.cache != nil {
		e.cache.Put(key, out)
	}
	return out, nil
}

// MarkTask resolves idOrText and updates the task's status.
func (e *Engine) MarkTask(idOrText, status string, sc store.Scope) (string, error) {
	t, err := e.store.FindTask(idOrText, sc)
	if err != nil {
		e.logger.Error().Err(err).Msg("find task failed")
		return "", err
	}
	if t == nil {
		return NotFoundReply(idOrText), nil
	}
	if err := e.store.UpdateTaskStatus(t.ID, status); err != nil {
		e.logger.Error().Err(err).Int64("id", t.ID).Msg("update task status failed")
		return "", err
	}
	e.logger.Info().Int64("id", t.ID).Str("status", status).Msg("task marked")
	return fmt.Sprintf("Marked #%d %q as %s", t.ID, t.Title, status), nil
}

// DeleteTask resolves idOrText and permanently removes the task.
func (e *Engine) DeleteTask(idOrText string, sc store.Scope) (string, error) {
	t, err := e.store.FindTask(idOrText, sc)
	if err != nil {
		e.logger.Error().Err(err).Msg("find task failed")
		return "", err
	}
	if t == nil {
		return NotFoundReply(idOrText), nil
	}
	if err := e.store.DeleteTask(t.ID); err != nil {
		e.logger.Error().Err(err).Int64("id", t.ID).Msg("delete task failed")
		return "", err
	}
	e.logger.Info().Int64("id", t.ID).Msg("task deleted")
	return fmt.Sprintf("Deleted task #%d %q", t.ID, t.Title), nil
}

// DeleteCompleted bulk-deletes tasks with status exactly 'done' in scope.
func (e *Engine) DeleteCompleted(sc store.Scope) (string, error) {
	count, err := e.store.DeleteCompletedTasks(sc)
	if err != nil {
		e.logger.Error().Err(err).Msg("delete completed tasks failed")
		return "", err
	}
	e.logger.Info().Int64("count", count).Msg("completed tasks deleted")
	return fmt.Sprintf("Deleted %d completed tasks", count), nil
}

// ProgressChart maps each status token present in scope to its task count.
func (e *Engine) ProgressChart(sc store.Scope) (map[string]int, error) {
	counts, err := e.store.CountTasksByStatus(sc)
	if err != nil {
		e.logger.Error().Err(err).Msg("count tasks failed")
		return nil, err
	}
	chart := make(map[string]int, len(counts))
	for _, c := range counts {
		chart[c.Status] = c.Count
	}
	return chart, nil
}

// FormatLine renders a task as "#id • title [status]".
func FormatLine(t *store.Task) string {
	return fmt.Sprintf("#%d • %s [%s]", t.ID, t.Title, t.Status)
}

// cacheKey derives the filter signature used as the list cache key.
func cacheKey(status string, sc store.Scope) string {
	channel := sc.ChannelID
	if channel == "" {
		channel = "global"
	}
	user := sc.UserID
	if user == "" {
		user = "all"
	}
	if status == "" {
		status = "all"
	}
	return "tasks_" + channel + "_" + user + "_" + status
}
