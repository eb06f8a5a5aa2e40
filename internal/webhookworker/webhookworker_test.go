package webhookworker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nittei/core/domain"
	"nittei/core/port/out"
)

type fakeAccounts struct {
	accounts map[uuid.UUID]*domain.Account
}

func (f *fakeAccounts) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	return f.accounts[id], nil
}
func (f *fakeAccounts) GetByAPIKeyHash(context.Context, string) (*domain.Account, error) {
	return nil, nil
}
func (f *fakeAccounts) Create(context.Context, *domain.Account) error { return nil }
func (f *fakeAccounts) Update(context.Context, *domain.Account) error { return nil }
func (f *fakeAccounts) Delete(context.Context, uuid.UUID) error       { return nil }

func discardLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestSignIsDeterministicAndKeyed(t *testing.T) {
	payload := []byte(`{"hello":"world"}`)
	a := sign("key-a", payload)
	b := sign("key-a", payload)
	c := sign("key-b", payload)

	if a != b {
		t.Errorf("same key should produce the same signature, got %q and %q", a, b)
	}
	if a == c {
		t.Error("different keys should produce different signatures")
	}
}

func TestQueueEnqueueDropsOnFullBuffer(t *testing.T) {
	q := NewQueue(1, discardLogger())
	d := out.WebhookDelivery{AccountID: uuid.New(), Kind: out.WebhookEventCreated, Payload: []byte("{}")}

	if err := q.Enqueue(context.Background(), d); err != nil {
		t.Fatalf("first enqueue should succeed: %v", err)
	}
	if err := q.Enqueue(context.Background(), d); err != nil {
		t.Fatalf("enqueue on a full queue should drop silently, not error: %v", err)
	}
}

func TestDispatcherDeliversSignedPayload(t *testing.T) {
	received := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	webhookURL := srv.URL
	signingKey := "shh"
	accountID := uuid.New()
	accounts := &fakeAccounts{accounts: map[uuid.UUID]*domain.Account{
		accountID: {ID: accountID, WebhookURL: &webhookURL, WebhookSigningKey: &signingKey},
	}}

	queue := NewQueue(10, discardLogger())
	cfg := Config{Workers: 2, QueueSize: 10, Timeout: time.Second, MaxRetries: 0, RetryDelay: time.Millisecond}
	d := NewDispatcher(queue, accounts, cfg, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	if err := queue.Enqueue(ctx, out.WebhookDelivery{AccountID: accountID, Kind: out.WebhookEventCreated, Payload: []byte(`{"x":1}`)}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case req := <-received:
		if req.Header.Get("X-Nittei-Signature") == "" {
			t.Error("expected a signature header on a signed account's delivery")
		}
		if req.Header.Get("X-Nittei-Event") != string(out.WebhookEventCreated) {
			t.Errorf("expected event header %q, got %q", out.WebhookEventCreated, req.Header.Get("X-Nittei-Event"))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for webhook delivery")
	}
}
