// Package workflow validates claim status transitions against an injectable
// transition table.
package workflow

import (
	"fmt"
	"sort"
	"strings"

	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/apperr"
)

// Table maps a source status to the set of statuses it may move to.
type Table map[models.RequestStatus]map[models.RequestStatus]bool

// Relaxed lets every open status move to any other status. Completed is terminal.
var Relaxed = Table{
	models.StatusPending:    allow(models.StatusReceived, models.StatusInProgress, models.StatusRejected, models.StatusCompleted),
	models.StatusReceived:   allow(models.StatusPending, models.StatusInProgress, models.StatusRejected, models.StatusCompleted),
	models.StatusInProgress: allow(models.StatusPending, models.StatusReceived, models.StatusRejected, models.StatusCompleted),
	models.StatusRejected:   allow(models.StatusPending, models.StatusReceived, models.StatusInProgress, models.StatusCompleted),
	models.StatusCompleted:  allow(),
}

// Strict is the linear review graph: pending → received → in_progress → completed,
// with rejection possible at every open step and rejected claims reopenable to pending.
var Strict = Table{
	models.StatusPending:    allow(models.StatusReceived, models.StatusRejected),
	models.StatusReceived:   allow(models.StatusInProgress, models.StatusRejected),
	models.StatusInProgress: allow(models.StatusCompleted, models.StatusRejected),
	models.StatusRejected:   allow(models.StatusPending),
	models.StatusCompleted:  allow(),
}

func allow(to ...models.RequestStatus) map[models.RequestStatus]bool {
	m := make(map[models.RequestStatus]bool, len(to))
	for _, s := range to {
		m[s] = true
	}
	return m
}

// Policy returns the preset registered under name ("relaxed" or "strict").
func Policy(name string) (Table, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "relaxed":
		return Relaxed, nil
	case "strict":
		return Strict, nil
	}
	return nil, fmt.Errorf("unknown workflow policy %q", name)
}

// Engine checks transitions. It holds no state besides its table.
type Engine struct {
	table Table
}

// NewEngine returns an engine over table.
func NewEngine(table Table) *Engine {
	return &Engine{table: table}
}

// Check decides whether a claim in current may move to target.
//
// It returns noop=true when target equals current and current is open; the
// caller then skips the write. Completed claims reject every transition,
// itself included.
func (e *Engine) Check(current, target models.RequestStatus) (noop bool, err error) {
	if !target.Valid() {
		return false, apperr.Validation("status", "unknown status %q", target)
	}
	if current == models.StatusCompleted {
		return false, apperr.Conflict("claim is completed and can no longer change status")
	}
	if current == target {
		return true, nil
	}
	if !e.table[current][target] {
		return false, apperr.Conflict("cannot move claim from %s to %s (allowed: %s)",
			current, target, strings.Join(e.Allowed(current), ", "))
	}
	return false, nil
}

// Allowed lists the targets reachable from current, sorted.
func (e *Engine) Allowed(current models.RequestStatus) []string {
	out := make([]string, 0, len(e.table[current]))
	for s, ok := range e.table[current] {
		if ok {
			out = append(out, string(s))
		}
	}
	sort.Strings(out)
	if len(out) == 0 {
		return []string{"none"}
	}
	return out
}
