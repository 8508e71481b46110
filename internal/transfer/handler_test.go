package transfer

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sango-pay/sango_pay/internal/lock"
)

func newTestApp(t *testing.T) (*fiber.App, *fixture) {
	t.Helper()
	f := newFixture(t, lock.NewMemory())
	h := NewHandler(f.svc)

	app := fiber.New()
	app.Post("/transfers", h.Transfer)
	app.Post("/deposits", h.Deposit)
	app.Post("/withdrawals", h.Withdraw)
	app.Get("/transfers", h.GetByIdempotencyKey)
	app.Get("/transfers/:reference", h.GetByReference)

	return app, f
}

func postJSON(t *testing.T, app *fiber.App, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode body %q: %v", raw, err)
		}
	}
	return resp.StatusCode, decoded
}

func TestHandlerTransferCreatesAndReplays(t *testing.T) {
	app, f := newTestApp(t)
	f.wallet(t, "w-src", 150000)
	f.wallet(t, "w-dst", 0)

	body := `{"source_wallet_id":"w-src","destination_wallet_id":"w-dst","amount":"250.00","currency":"USD","idempotency_key":"key-http-1"}`

	status, first := postJSON(t, app, "/transfers", body, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d (%v)", status, first)
	}
	if first["status"] != "COMPLETED" {
		t.Fatalf("expected COMPLETED, got %v", first["status"])
	}
	if first["reference"] == "" || first["transaction_id"] == "" {
		t.Fatalf("missing identifiers in %v", first)
	}

	status, second := postJSON(t, app, "/transfers", body, nil)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", status)
	}
	if second["transaction_id"] != first["transaction_id"] || second["reference"] != first["reference"] {
		t.Fatalf("replay diverged: %v vs %v", second, first)
	}

	if got := f.balance(t, "w-src"); got != 125000 {
		t.Fatalf("source debited twice? balance %d", got)
	}
}

func TestHandlerHeaderOverridesBodyKey(t *testing.T) {
	app, f := newTestApp(t)
	f.wallet(t, "w-a", 10000)
	f.wallet(t, "w-b", 0)

	body := `{"source_wallet_id":"w-a","destination_wallet_id":"w-b","amount":"10.00","currency":"USD","idempotency_key":"body-key"}`
	headers := map[string]string{"Idempotency-Key": "header-key"}

	status, _ := postJSON(t, app, "/transfers", body, headers)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d", status)
	}

	if _, err := f.svc.GetByIdempotencyKey(context.Background(), "header-key"); err != nil {
		t.Fatalf("expected log under header key: %v", err)
	}
	if _, err := f.svc.GetByIdempotencyKey(context.Background(), "body-key"); err == nil {
		t.Fatal("body key should have been ignored")
	}
}

func TestHandlerRejectsMalformedAmount(t *testing.T) {
	app, f := newTestApp(t)
	f.wallet(t, "w-a", 10000)
	f.wallet(t, "w-b", 0)

	for _, amount := range []string{"", "abc", "-5.00", "10.001"} {
		body := `{"source_wallet_id":"w-a","destination_wallet_id":"w-b","amount":"` + amount + `","currency":"USD","idempotency_key":"key-` + amount + `"}`
		status, _ := postJSON(t, app, "/transfers", body, nil)
		if status != fiber.StatusBadRequest {
			t.Fatalf("amount %q: expected 400 got %d", amount, status)
		}
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	app, f := newTestApp(t)
	f.wallet(t, "w-poor", 100)
	f.wallet(t, "w-rich", 100000)

	// Unknown wallet resolves to 404.
	body := `{"source_wallet_id":"w-ghost","destination_wallet_id":"w-rich","amount":"1.00","currency":"USD","idempotency_key":"key-404"}`
	if status, _ := postJSON(t, app, "/transfers", body, nil); status != fiber.StatusNotFound {
		t.Fatalf("expected 404 got %d", status)
	}

	// Insufficient funds resolves to 422.
	body = `{"source_wallet_id":"w-poor","destination_wallet_id":"w-rich","amount":"50.00","currency":"USD","idempotency_key":"key-422"}`
	if status, _ := postJSON(t, app, "/transfers", body, nil); status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", status)
	}

	// Missing idempotency key resolves to 400.
	body = `{"source_wallet_id":"w-rich","destination_wallet_id":"w-poor","amount":"1.00","currency":"USD"}`
	if status, _ := postJSON(t, app, "/transfers", body, nil); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 got %d", status)
	}
}

func TestHandlerContentionAnswersRetryAfter(t *testing.T) {
	app, f := newTestApp(t)
	f.wallet(t, "w-a", 10000)
	f.wallet(t, "w-b", 0)

	// Hold the advisory lock so the request loses the race.
	granted, err := f.locks.Acquire(context.Background(), "busy-key", time.Minute)
	if err != nil || !granted {
		t.Fatalf("pre-acquire lock: granted=%v err=%v", granted, err)
	}

	body := `{"source_wallet_id":"w-a","destination_wallet_id":"w-b","amount":"10.00","currency":"USD","idempotency_key":"busy-key"}`
	req := httptest.NewRequest(fiber.MethodPost, "/transfers", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.StatusCode)
	}
	if resp.Header.Get(fiber.HeaderRetryAfter) == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestHandlerDepositAndWithdrawalRoutes(t *testing.T) {
	app, f := newTestApp(t)
	f.wallet(t, "w-solo", 0)

	body := `{"destination_wallet_id":"w-solo","amount":"100.00","currency":"USD","idempotency_key":"dep-1"}`
	if status, _ := postJSON(t, app, "/deposits", body, nil); status != fiber.StatusCreated {
		t.Fatalf("deposit: expected 201 got %d", status)
	}
	if got := f.balance(t, "w-solo"); got != 10000 {
		t.Fatalf("deposit not applied, balance %d", got)
	}

	body = `{"source_wallet_id":"w-solo","amount":"40.00","currency":"USD","idempotency_key":"wd-1"}`
	if status, _ := postJSON(t, app, "/withdrawals", body, nil); status != fiber.StatusCreated {
		t.Fatalf("withdrawal: expected 201 got %d", status)
	}
	if got := f.balance(t, "w-solo"); got != 6000 {
		t.Fatalf("withdrawal not applied, balance %d", got)
	}
}

func TestHandlerLookupByReferenceAndKey(t *testing.T) {
	app, f := newTestApp(t)
	f.wallet(t, "w-a", 10000)
	f.wallet(t, "w-b", 0)

	body := `{"source_wallet_id":"w-a","destination_wallet_id":"w-b","amount":"25.00","currency":"USD","idempotency_key":"lookup-key"}`
	status, created := postJSON(t, app, "/transfers", body, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d", status)
	}
	ref, _ := created["reference"].(string)

	req := httptest.NewRequest(fiber.MethodGet, "/transfers/"+ref, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("lookup by reference: expected 200 got %d", resp.StatusCode)
	}
	var entry map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["amount"] != "25.00" || entry["status"] != "COMPLETED" {
		t.Fatalf("unexpected log payload: %v", entry)
	}

	req = httptest.NewRequest(fiber.MethodGet, "/transfers?idempotency_key=lookup-key", nil)
	resp2, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != fiber.StatusOK {
		t.Fatalf("lookup by key: expected 200 got %d", resp2.StatusCode)
	}

	req = httptest.NewRequest(fiber.MethodGet, "/transfers/txn_missing", nil)
	resp3, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != fiber.StatusNotFound {
		t.Fatalf("unknown reference: expected 404 got %d", resp3.StatusCode)
	}
}
