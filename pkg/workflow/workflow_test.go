package workflow

import (
	"errors"
	"testing"

	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/apperr"
)

func TestEngineCommonRules(t *testing.T) {
	presets := map[string]Table{"relaxed": Relaxed, "strict": Strict}

	for name, table := range presets {
		e := NewEngine(table)
		t.Run(name, func(t *testing.T) {
			for _, s := range models.AllStatuses {
				noop, err := e.Check(models.StatusCompleted, s)
				if !errors.Is(err, apperr.ErrConflict) {
					t.Errorf("completed -> %s: err = %v, want Conflict", s, err)
				}
				if noop {
					t.Errorf("completed -> %s: noop = true", s)
				}
			}

			for _, s := range models.AllStatuses {
				if s == models.StatusCompleted {
					continue
				}
				noop, err := e.Check(s, s)
				if err != nil || !noop {
					t.Errorf("%s -> %s: noop=%v err=%v, want no-op success", s, s, noop, err)
				}
			}

			if _, err := e.Check(models.StatusPending, "archived"); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("unknown target: err = %v, want Validation", err)
			}
			// unknown target wins even over the terminal check
			if _, err := e.Check(models.StatusCompleted, ""); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("completed -> empty: err = %v, want Validation", err)
			}

			if _, err := e.Check(models.StatusPending, models.StatusReceived); err != nil {
				t.Errorf("pending -> received: %v", err)
			}
		})
	}
}

func TestEngineTransitions(t *testing.T) {
	tests := []struct {
		name    string
		table   Table
		from    models.RequestStatus
		to      models.RequestStatus
		wantErr bool
	}{
		{"relaxed pending to completed", Relaxed, models.StatusPending, models.StatusCompleted, false},
		{"relaxed rejected to in_progress", Relaxed, models.StatusRejected, models.StatusInProgress, false},
		{"relaxed in_progress to pending", Relaxed, models.StatusInProgress, models.StatusPending, false},
		{"relaxed received to rejected", Relaxed, models.StatusReceived, models.StatusRejected, false},

		{"strict pending to received", Strict, models.StatusPending, models.StatusReceived, false},
		{"strict pending to rejected", Strict, models.StatusPending, models.StatusRejected, false},
		{"strict received to in_progress", Strict, models.StatusReceived, models.StatusInProgress, false},
		{"strict in_progress to completed", Strict, models.StatusInProgress, models.StatusCompleted, false},
		{"strict rejected to pending", Strict, models.StatusRejected, models.StatusPending, false},
		{"strict pending to completed", Strict, models.StatusPending, models.StatusCompleted, true},
		{"strict received to pending", Strict, models.StatusReceived, models.StatusPending, true},
		{"strict rejected to received", Strict, models.StatusRejected, models.StatusReceived, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			noop, err := NewEngine(tt.table).Check(tt.from, tt.to)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrConflict) {
					t.Errorf("err = %v, want Conflict", err)
				}
				return
			}
			if err != nil || noop {
				t.Errorf("noop=%v err=%v, want applied transition", noop, err)
			}
		})
	}
}

func TestScenarioRelaxed(t *testing.T) {
	e := NewEngine(Relaxed)
	cur := models.StatusPending
	for _, next := range []models.RequestStatus{models.StatusReceived, models.StatusCompleted} {
		if _, err := e.Check(cur, next); err != nil {
			t.Fatalf("%s -> %s: %v", cur, next, err)
		}
		cur = next
	}
	if _, err := e.Check(cur, models.StatusPending); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("completed -> pending: err = %v, want Conflict", err)
	}
}

func TestPolicy(t *testing.T) {
	tests := []struct {
		name    string
		want    Table
		wantErr bool
	}{
		{"", Relaxed, false},
		{"relaxed", Relaxed, false},
		{"STRICT", Strict, false},
		{"lenient", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Policy(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Policy(%q) err = %v", tt.name, err)
			}
			if !tt.wantErr && len(got[models.StatusPending]) != len(tt.want[models.StatusPending]) {
				t.Errorf("Policy(%q) returned the wrong preset", tt.name)
			}
		})
	}
}

func TestAllowed(t *testing.T) {
	e := NewEngine(Strict)
	got := e.Allowed(models.StatusPending)
	if len(got) != 2 || got[0] != "received" || got[1] != "rejected" {
		t.Errorf("Allowed(pending) = %v", got)
	}
	if got := e.Allowed(models.StatusCompleted); len(got) != 1 || got[0] != "none" {
		t.Errorf("Allowed(completed) = %v", got)
	}
}
