// Package notify delivers best-effort operator notifications. Delivery runs
// on a bounded goroutine pool, is time-limited, and never reports failure to
// the caller.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/logger"
)

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "reasonsform_notifications_total",
	Help: "Notifications by delivery result.",
}, []string{"result"})

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Notifier is what the claim service depends on.
type Notifier interface {
	Notify(text string)
}

// Noop discards every message.
type Noop struct{}

func (Noop) Notify(string) {}

// Dispatcher hands messages to a Sender on an ants pool.
type Dispatcher struct {
	pool    *ants.Pool
	sender  Sender
	timeout time.Duration
}

// NewDispatcher runs at most workers deliveries at once. Submissions beyond
// that are dropped rather than queued.
func NewDispatcher(sender Sender, workers int, timeout time.Duration) (*Dispatcher, error) {
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true), ants.WithPanicHandler(func(p any) {
		logger.Error("❌ Notification worker panic: %v", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create notification pool: %w", err)
	}
	return &Dispatcher{pool: pool, sender: sender, timeout: timeout}, nil
}

// Notify returns immediately.
func (d *Dispatcher) Notify(text string) {
	err := d.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, text); err != nil {
			notificationsTotal.WithLabelValues("failed").Inc()
			logger.Warn("⚠️  Notification delivery failed: %v", err)
			return
		}
		notificationsTotal.WithLabelValues("sent").Inc()
	})
	if err != nil {
		notificationsTotal.WithLabelValues("dropped").Inc()
		if errors.Is(err, ants.ErrPoolOverload) {
			logger.Warn("⚠️  Notification dropped, pool is busy")
			return
		}
		logger.Warn("⚠️  Notification dropped: %v", err)
	}
}

// Close waits up to timeout for in-flight deliveries.
func (d *Dispatcher) Close(timeout time.Duration) {
	if err := d.pool.ReleaseTimeout(timeout); err != nil {
		logger.Warn("⚠️  Notification pool did not drain: %v", err)
	}
}

// ClaimSubmitted formats the message sent after a claim is created.
func ClaimSubmitted(r *models.Request, source string, fileCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📥 New %s (%s)\n", strings.ToLower(r.RequestType.Label()), source)
	fmt.Fprintf(&b, "Code: %s\n", r.RequestCode)
	fmt.Fprintf(&b, "Applicant: %s\n", models.MaskName(r.ApplicantName))
	fmt.Fprintf(&b, "Amount: %s\n", FormatAmount(r.DepositAmount))
	fmt.Fprintf(&b, "Bank: %s\n", r.BankName)
	fmt.Fprintf(&b, "Attachments: %d", fileCount)
	return b.String()
}

// DailySummary formats the scheduled summary.
func DailySummary(day time.Time, created map[models.RequestType]int64, pending int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Claims summary for %s\n", day.Format(models.DateLayout))
	fmt.Fprintf(&b, "Refund claims: %d\n", created[models.RequestTypeRefund])
	fmt.Fprintf(&b, "Misdeposit claims: %d\n", created[models.RequestTypeMisdeposit])
	fmt.Fprintf(&b, "Pending backlog: %d", pending)
	return b.String()
}

// FormatAmount renders 2500000 as "2,500,000".
func FormatAmount(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
