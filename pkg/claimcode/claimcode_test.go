package claimcode

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"gorm.io/gorm"

	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/apperr"
	"p9e.in/reasonsform/testutil"
)

var strictPattern = regexp.MustCompile(`^[RM]-\d{6}-\d{3}-[A-Z0-9]{3}$`)

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

var day = time.Date(2026, 10, 16, 10, 30, 0, 0, time.UTC)

func insert(t *testing.T, db *gorm.DB, code, key string) *models.Request {
	t.Helper()
	r := &models.Request{
		RequestCode: code,
		SequenceKey: key,
		RequestType: models.RequestTypeRefund,
		Status:      models.StatusPending,
	}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("insert %s: %v", code, err)
	}
	return r
}

func TestGenerateFormat(t *testing.T) {
	db := testutil.NewDB(t)
	g := New()

	tests := []struct {
		typ    models.RequestType
		prefix string
	}{
		{models.RequestTypeRefund, "R-261016-001-"},
		{models.RequestTypeMisdeposit, "M-261016-001-"},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			c, err := g.Generate(context.Background(), db, tt.typ, day)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if !strictPattern.MatchString(c.RequestCode) {
				t.Errorf("code %q does not match %s", c.RequestCode, strictPattern)
			}
			if c.RequestCode[:len(tt.prefix)] != tt.prefix {
				t.Errorf("code %q, want prefix %q", c.RequestCode, tt.prefix)
			}
			if !ValidFormat(c.RequestCode) {
				t.Errorf("ValidFormat(%q) = false", c.RequestCode)
			}
		})
	}
}

func TestGenerateUsesMaxNotCount(t *testing.T) {
	db := testutil.NewDB(t)
	insert(t, db, "R-261016-001-AAA", "R-261016-001")
	insert(t, db, "R-261016-003-BBB", "R-261016-003")
	// other day and other type must not influence the sequence
	insert(t, db, "R-261015-009-CCC", "R-261015-009")
	insert(t, db, "M-261016-007-DDD", "M-261016-007")

	c, err := New().Generate(context.Background(), db, models.RequestTypeRefund, day)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if c.SequenceKey != "R-261016-004" {
		t.Errorf("SequenceKey = %q, want R-261016-004", c.SequenceKey)
	}
}

func TestGenerateAfterDeletionDoesNotReuse(t *testing.T) {
	db := testutil.NewDB(t)
	insert(t, db, "R-261016-001-AAA", "R-261016-001")
	last := insert(t, db, "R-261016-002-BBB", "R-261016-002")
	insert(t, db, "R-261016-003-CCC", "R-261016-003")

	if err := db.Delete(&models.Request{}, last.ID).Error; err != nil {
		t.Fatal(err)
	}
	c, err := New().Generate(context.Background(), db, models.RequestTypeRefund, day)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if c.SequenceKey != "R-261016-004" {
		t.Errorf("SequenceKey = %q, want R-261016-004", c.SequenceKey)
	}
}

func TestGenerateRetriesOnTakenCode(t *testing.T) {
	db := testutil.NewDB(t)
	// legacy row whose code collides with the first candidate
	insert(t, db, "R-261016-001-000", "legacy-1")

	c, err := NewWithRand(zeroReader{}).Generate(context.Background(), db, models.RequestTypeRefund, day)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if c.RequestCode != "R-261016-002-000" {
		t.Errorf("RequestCode = %q, want R-261016-002-000", c.RequestCode)
	}
}

func TestGenerateExhausted(t *testing.T) {
	db := testutil.NewDB(t)
	for i := 1; i <= MaxAttempts; i++ {
		insert(t, db, fmt.Sprintf("R-261016-%03d-000", i), fmt.Sprintf("legacy-%d", i))
	}

	_, err := NewWithRand(zeroReader{}).Generate(context.Background(), db, models.RequestTypeRefund, day)
	if !errors.Is(err, apperr.ErrUnavailable) {
		t.Fatalf("Generate() error = %v, want Unavailable", err)
	}
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("Generate() error = %v, want wrapped ErrExhausted", err)
	}
}

func TestGenerateRejectsUnknownType(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := New().Generate(context.Background(), db, models.RequestType("bogus"), day)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Generate() error = %v, want Validation", err)
	}
}

func TestValidFormat(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"R-261016-001-A7F", true},
		{"M-261016-123-000", true},
		{"R-261016-1000-ABC", true},
		{"X-261016-001-A7F", false},
		{"R-26101-001-A7F", false},
		{"R-261016-01-A7F", false},
		{"R-261016-001-a7f", false},
		{"R-261016-001-A7F' OR 1=1", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ValidFormat(tt.code); got != tt.want {
				t.Errorf("ValidFormat(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}
