package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"p9e.in/reasonsform/models"
)

type recordingSender struct {
	got  chan string
	err  error
	wait time.Duration
}

func (s *recordingSender) Send(ctx context.Context, text string) error {
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			s.got <- "timeout"
			return ctx.Err()
		}
	}
	s.got <- text
	return s.err
}

func TestDispatcherDelivers(t *testing.T) {
	s := &recordingSender{got: make(chan string, 1)}
	d, err := NewDispatcher(s, 2, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close(time.Second)

	d.Notify("hello")
	select {
	case got := <-s.got:
		if got != "hello" {
			t.Errorf("sent %q, want hello", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestDispatcherNeverBlocksOrFails(t *testing.T) {
	s := &recordingSender{got: make(chan string, 4), err: errors.New("boom"), wait: time.Hour}
	d, err := NewDispatcher(s, 1, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close(time.Second)

	start := time.Now()
	d.Notify("first")  // occupies the only worker until the timeout
	d.Notify("second") // dropped: the pool is non-blocking
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Errorf("Notify blocked for %v", elapsed)
	}

	select {
	case got := <-s.got:
		if got != "timeout" {
			t.Errorf("got %q, want the send to be cut off by the timeout", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send was not bounded by the timeout")
	}
}

func TestTelegramSend(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var msg telegramMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if msg.ChatID != "42" || msg.Text != "hi" {
			t.Errorf("message = %+v", msg)
		}
		if msg.Text == "hi" {
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.baseURL = srv.URL
	if err := tg.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times", calls.Load())
	}
}

func TestTelegramErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	tg := NewTelegram("SECRET", "42")
	tg.baseURL = srv.URL

	err := tg.Send(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("Send() error = %v, want API description", err)
	}

	srv.Close()
	err = tg.Send(context.Background(), "hi")
	if err == nil {
		t.Fatal("Send() to closed server succeeded")
	}
	if strings.Contains(err.Error(), "SECRET") {
		t.Errorf("error leaks the bot token: %v", err)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{2000000, "2,000,000"},
		{12345678, "12,345,678"},
		{-1500, "-1,500"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.in); got != tt.want {
			t.Errorf("FormatAmount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClaimSubmittedMasksApplicant(t *testing.T) {
	r := &models.Request{
		RequestCode:   "R-261016-001-A7F",
		RequestType:   models.RequestTypeRefund,
		ApplicantName: "Kim Minsu",
		DepositAmount: 2500000,
		BankName:      "KB",
	}
	msg := ClaimSubmitted(r, "public", 2)
	if strings.Contains(msg, "Kim Minsu") {
		t.Errorf("message leaks applicant name:\n%s", msg)
	}
	for _, want := range []string{"R-261016-001-A7F", "K**", "2,500,000", "Attachments: 2"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
