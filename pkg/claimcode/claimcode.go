// Package claimcode issues request codes of the form
// <prefix>-<YYMMDD>-<NNN>-<RRR>, e.g. R-261016-004-A7F.
//
// NNN is one more than the highest sequence already stored for the same
// prefix and day, so gaps left by deleted claims are never reused. RRR is a
// random suffix that makes codes hard to guess; it plays no part in
// uniqueness. Uniqueness is guaranteed by the unique indexes on
// requests.sequence_key and requests.request_code: the pre-check below only
// narrows the race window, and callers retry on gorm.ErrDuplicatedKey.
package claimcode

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/apperr"
)

// MaxAttempts bounds the candidate sequence numbers tried per call.
const MaxAttempts = 5

// Pattern matches a well-formed request code.
var Pattern = regexp.MustCompile(`^[RM]-\d{6}-\d{3,}-[A-Z0-9]{3}$`)

// ErrExhausted is wrapped in an apperr.Unavailable when every attempt collided.
var ErrExhausted = errors.New("no free sequence number after retries")

// Code is a freshly issued identifier.
type Code struct {
	RequestCode string
	SequenceKey string
}

// Generator issues codes. The zero value is not usable; call New.
type Generator struct {
	rand     io.Reader
	attempts int
}

// New returns a Generator backed by crypto/rand.
func New() *Generator {
	return &Generator{rand: rand.Reader, attempts: MaxAttempts}
}

// NewWithRand returns a Generator drawing suffixes from r.
func NewWithRand(r io.Reader) *Generator {
	return &Generator{rand: r, attempts: MaxAttempts}
}

// ValidFormat reports whether code has the request code shape.
func ValidFormat(code string) bool {
	return Pattern.MatchString(code)
}

// SequencePrefix is the "<prefix>-<YYMMDD>-" part shared by every code of
// the given type issued on the day of now.
func SequencePrefix(t models.RequestType, now time.Time) string {
	return t.CodePrefix() + "-" + now.Format("060102") + "-"
}

// Generate must run on the transaction that will insert the request, so the
// sequence lookup and the insert see the same snapshot.
func (g *Generator) Generate(ctx context.Context, tx *gorm.DB, t models.RequestType, now time.Time) (Code, error) {
	if !t.Valid() {
		return Code{}, apperr.Validation("request type", "unknown request type %q", t)
	}
	prefix := SequencePrefix(t, now)

	next, err := maxSequence(ctx, tx, prefix)
	if err != nil {
		return Code{}, apperr.FromStorage(err)
	}

	for attempt := 0; attempt < g.attempts; attempt++ {
		next++
		key := fmt.Sprintf("%s%03d", prefix, next)

		suffix, err := g.suffix()
		if err != nil {
			return Code{}, apperr.Internal(fmt.Errorf("random suffix: %w", err))
		}
		code := key + "-" + suffix

		var n int64
		err = tx.WithContext(ctx).Model(&models.Request{}).
			Where("sequence_key = ? OR request_code = ?", key, code).
			Count(&n).Error
		if err != nil {
			return Code{}, apperr.FromStorage(err)
		}
		if n == 0 {
			return Code{RequestCode: code, SequenceKey: key}, nil
		}
	}
	return Code{}, apperr.Unavailable(fmt.Errorf("%s: %w", prefix, ErrExhausted))
}

// maxSequence parses the highest NNN stored under prefix. Keys are parsed in
// Go because string ordering breaks once a day passes 999 claims.
func maxSequence(ctx context.Context, tx *gorm.DB, prefix string) (int, error) {
	var keys []string
	err := tx.WithContext(ctx).Model(&models.Request{}).
		Where("sequence_key LIKE ?", prefix+"%").
		Pluck("sequence_key", &keys).Error
	if err != nil {
		return 0, err
	}

	highest := 0
	for _, k := range keys {
		n, err := strconv.Atoi(strings.TrimPrefix(k, prefix))
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest, nil
}

// suffix returns three uppercase hex characters.
func (g *Generator) suffix() (string, error) {
	var b [2]byte
	if _, err := io.ReadFull(g.rand, b[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("%03X", binary.BigEndian.Uint16(b[:])&0x0FFF), nil
}
