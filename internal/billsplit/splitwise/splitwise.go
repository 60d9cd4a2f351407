package splitwise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/billsplit"
	"ledgersync/internal/core"
)

const stampLayout = "2006-01-02T15:04:05Z"

type Config struct {
	APIURL    string
	APIKey    string
	UserID    int64
	PartnerID int64
}

// Client talks to the Splitwise REST API.
type Client struct {
	http      *http.Client
	apiURL    string
	apiKey    string
	userID    int64
	partnerID int64
}

var _ billsplit.Service = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing splitwise api key")
	}
	if cfg.UserID == 0 || cfg.PartnerID == 0 {
		return nil, errors.New("missing splitwise user or partner id")
	}
	return &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		apiURL:    strings.TrimSuffix(cfg.APIURL, "/"),
		apiKey:    cfg.APIKey,
		userID:    cfg.UserID,
		partnerID: cfg.PartnerID,
	}, nil
}

type (
	wireExpense struct {
		ID           int64           `json:"id"`
		Cost         string          `json:"cost"`
		Description  string          `json:"description"`
		Payment      bool            `json:"payment"`
		CurrencyCode string          `json:"currency_code"`
		Date         string          `json:"date"`
		CreatedAt    string          `json:"created_at"`
		UpdatedAt    string          `json:"updated_at"`
		DeletedAt    string          `json:"deleted_at"`
		Category     wireCategory    `json:"category"`
		Repayments   []wireRepayment `json:"repayments"`
	}

	wireCategory struct {
		Name string `json:"name"`
	}

	wireRepayment struct {
		From   int64  `json:"from"`
		To     int64  `json:"to"`
		Amount string `json:"amount"`
	}

	wireBalance struct {
		CurrencyCode string `json:"currency_code"`
		Amount       string `json:"amount"`
	}
)

func (c *Client) ListExpensesSince(ctx context.Context, since time.Time) ([]core.BillRecord, error) {
	params := url.Values{"limit": {"0"}}
	if !since.IsZero() {
		params.Set("updated_after", since.UTC().Format(stampLayout))
	}

	var payload struct {
		Expenses []wireExpense `json:"expenses"`
	}
	if err := c.get(ctx, "/get_expenses?"+params.Encode(), &payload); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	var records []core.BillRecord
	for _, e := range payload.Expenses {
		record, ok, err := c.toRecord(e)
		if err != nil {
			return nil, fmt.Errorf("expense %d: %w", e.ID, err)
		}
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (c *Client) CreateExpense(ctx context.Context, description string, cost decimal.Decimal, date time.Time) (core.BillRecord, error) {
	paid, owed := billsplit.SplitCost(cost)

	form := url.Values{
		"cost":        {cost.StringFixed(2)},
		"description": {description},
		"date":        {date.UTC().Format(stampLayout)},

		"users__0__user_id":    {strconv.FormatInt(c.userID, 10)},
		"users__0__paid_share": {cost.StringFixed(2)},
		"users__0__owed_share": {paid.StringFixed(2)},

		"users__1__user_id":    {strconv.FormatInt(c.partnerID, 10)},
		"users__1__paid_share": {"0.00"},
		"users__1__owed_share": {owed.StringFixed(2)},
	}

	var payload struct {
		Expenses []wireExpense    `json:"expenses"`
		Errors   map[string][]any `json:"errors"`
	}
	if err := c.postForm(ctx, "/create_expense", form, &payload); err != nil {
		return core.BillRecord{}, fmt.Errorf("create expense: %w", err)
	}
	if len(payload.Errors) > 0 {
		return core.BillRecord{}, fmt.Errorf("create expense rejected: %v", payload.Errors)
	}
	if len(payload.Expenses) == 0 {
		return core.BillRecord{}, errors.New("create expense: empty response")
	}

	record, ok, err := c.toRecord(payload.Expenses[0])
	if err != nil {
		return core.BillRecord{}, fmt.Errorf("created expense: %w", err)
	}
	if !ok {
		return core.BillRecord{}, errors.New("created expense has unexpected repayment shape")
	}
	return record, nil
}

func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	var payload struct {
		Success bool `json:"success"`
	}
	if err := c.postForm(ctx, "/delete_expense/"+id, nil, &payload); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	if !payload.Success {
		return fmt.Errorf("delete expense %s: provider reported failure", id)
	}
	return nil
}

func (c *Client) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	var payload struct {
		Friend struct {
			Balance []wireBalance `json:"balance"`
		} `json:"friend"`
	}
	path := "/get_friend/" + strconv.FormatInt(c.partnerID, 10)
	if err := c.get(ctx, path, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	if len(payload.Friend.Balance) == 0 {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(payload.Friend.Balance[0].Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance %q: %w", payload.Friend.Balance[0].Amount, err)
	}
	return amount, nil
}

func (c *Client) toRecord(e wireExpense) (core.BillRecord, bool, error) {
	cost, err := decimal.NewFromString(e.Cost)
	if err != nil {
		return core.BillRecord{}, false, fmt.Errorf("parse cost %q: %w", e.Cost, err)
	}

	repayments := make([]billsplit.Repayment, 0, len(e.Repayments))
	for _, r := range e.Repayments {
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil {
			return core.BillRecord{}, false, fmt.Errorf("parse repayment %q: %w", r.Amount, err)
		}
		repayments = append(repayments, billsplit.Repayment{From: r.From, To: r.To, Amount: amount})
	}

	balance, ok := billsplit.TransactionBalance(cost, e.Payment, c.userID, c.partnerID, repayments)
	if !ok {
		return core.BillRecord{}, false, nil
	}

	record := core.BillRecord{
		ID:                 strconv.FormatInt(e.ID, 10),
		Cost:               cost,
		TransactionBalance: balance,
		Category:           e.Category.Name,
		Currency:           e.CurrencyCode,
		Payment:            e.Payment,
		Deleted:            e.DeletedAt != "",
		Description:        e.Description,
	}
	for _, f := range []struct {
		raw  string
		dest *time.Time
	}{
		{e.Date, &record.Date},
		{e.CreatedAt, &record.CreatedAt},
		{e.UpdatedAt, &record.UpdatedAt},
	} {
		if f.raw == "" {
			continue
		}
		if *f.dest, err = time.Parse(stampLayout, f.raw); err != nil {
			return core.BillRecord{}, false, fmt.Errorf("parse timestamp %q: %w", f.raw, err)
		}
	}
	return record, true, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, dest)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: unexpected status %d", req.URL.Path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
