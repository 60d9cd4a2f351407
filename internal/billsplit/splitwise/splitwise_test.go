package splitwise

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		APIURL:    server.URL,
		APIKey:    "test-key",
		UserID:    101,
		PartnerID: 202,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{UserID: 1, PartnerID: 2}); err == nil {
		t.Error("expected error for missing api key")
	}
	if _, err := NewClient(Config{APIKey: "k", PartnerID: 2}); err == nil {
		t.Error("expected error for missing user id")
	}
}

func TestListExpensesSince(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("updated_after")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"expenses": [
			{"id": 11, "cost": "40.00", "description": "Dinner",
			 "currency_code": "USD", "date": "2026-04-10T19:30:00Z",
			 "updated_at": "2026-04-10T20:00:00Z",
			 "category": {"name": "Dining out"},
			 "repayments": [{"from": 202, "to": 101, "amount": "20.00"}]},
			{"id": 12, "cost": "60.00", "description": "Unrelated",
			 "repayments": [{"from": 999, "to": 101, "amount": "30.00"}]},
			{"id": 13, "cost": "15.00", "description": "Settling up",
			 "payment": true, "repayments": [{"from": 202, "to": 101, "amount": "15.00"}]}
		]}`))
	})

	since := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	records, err := client.ListExpensesSince(context.Background(), since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/get_expenses" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "2026-04-01T00:00:00Z" {
		t.Errorf("updated_after = %q", gotQuery)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization = %q", gotAuth)
	}

	// The unrelated repayment is dropped; the settlement stays, netting zero.
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	dinner := records[0]
	if dinner.ID != "11" || dinner.Category != "Dining out" || dinner.Currency != "USD" {
		t.Errorf("record = %+v", dinner)
	}
	if !dinner.TransactionBalance.Equal(decimal.NewFromInt(20)) {
		t.Errorf("balance = %s, want 20", dinner.TransactionBalance)
	}
	settlement := records[1]
	if !settlement.Payment || !settlement.TransactionBalance.IsZero() {
		t.Errorf("settlement = %+v", settlement)
	}
}

func TestCreateExpenseSplitsDownTheMiddle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("cost"); got != "40.00" {
			t.Errorf("cost = %q", got)
		}
		if got := r.PostForm.Get("users__0__paid_share"); got != "40.00" {
			t.Errorf("owner paid share = %q", got)
		}
		if got := r.PostForm.Get("users__0__owed_share"); got != "20.00" {
			t.Errorf("owner owed share = %q", got)
		}
		if got := r.PostForm.Get("users__1__owed_share"); got != "20.00" {
			t.Errorf("partner owed share = %q", got)
		}
		w.Write([]byte(`{"expenses": [
			{"id": 42, "cost": "40.00", "description": "Dinner",
			 "date": "2026-04-10T00:00:00Z",
			 "repayments": [{"from": 202, "to": 101, "amount": "20.00"}]}
		]}`))
	})

	record, err := client.CreateExpense(context.Background(), "Dinner",
		decimal.NewFromInt(40), time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.ID != "42" {
		t.Errorf("id = %q", record.ID)
	}
	if !record.TransactionBalance.Equal(decimal.NewFromInt(20)) {
		t.Errorf("balance = %s, want 20", record.TransactionBalance)
	}
}

func TestCreateExpenseRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"expenses": [], "errors": {"base": ["Invalid expense"]}}`))
	})
	_, err := client.CreateExpense(context.Background(), "Dinner",
		decimal.NewFromInt(40), time.Now())
	if err == nil {
		t.Fatal("expected error from provider rejection")
	}
}

func TestDeleteExpense(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"success": true}`))
	})
	if err := client.DeleteExpense(context.Background(), "42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/delete_expense/42" {
		t.Errorf("path = %q", gotPath)
	}

	failing := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false}`))
	})
	if err := failing.DeleteExpense(context.Background(), "42"); err == nil {
		t.Fatal("expected error when the provider reports failure")
	}
}

func TestGetBalance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_friend/202" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"friend": {"balance": [{"currency_code": "USD", "amount": "-12.34"}]}}`))
	})
	balance, err := client.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("-12.34")) {
		t.Errorf("balance = %s", balance)
	}
}

func TestErrorStatusPropagates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})
	if _, err := client.GetBalance(context.Background()); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
