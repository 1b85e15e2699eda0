package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway is the method-agnostic interface every payment adapter implements.
// A transport failure is returned as an error; the service treats it as an
// unknown outcome, never as a decline.
type Gateway interface {
	Authorize(ctx context.Context, req *AuthorizeRequest) (*Authorization, error)
}

// Registry maps payment methods to their Gateway implementations.
type Registry map[Method]Gateway

// ── Cash ─────────────────────────────────────────────────────────────────────
// The amount is counted at the drawer, so cash is approved on the spot and
// carries no terminal reference.

type cashGateway struct{}

func NewCashGateway() Gateway { return cashGateway{} }

func (cashGateway) Authorize(_ context.Context, req *AuthorizeRequest) (*Authorization, error) {
	if !req.Amount.IsPositive() {
		return &Authorization{Status: StatusDeclined, Reason: "amount must be greater than 0"}, nil
	}
	return &Authorization{Status: StatusApproved}, nil
}

// ── Card terminal bridge ─────────────────────────────────────────────────────
// Talks to the in-store terminal bridge over HTTP. The bridge owns the card
// protocol; we only see a normalised JSON verdict.

type terminalGateway struct {
	baseURL string
	client  *http.Client
}

func NewTerminalGateway(baseURL string, client *http.Client) Gateway {
	if client == nil {
		client = &http.Client{}
	}
	return &terminalGateway{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type terminalRequest struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

type terminalResponse struct {
	Status    string `json:"status"`
	AuthCode  string `json:"auth_code"`
	CardLast4 string `json:"card_last4"`
	CardType  string `json:"card_type"`
	Message   string `json:"message"`
}

func (g *terminalGateway) Authorize(ctx context.Context, req *AuthorizeRequest) (*Authorization, error) {
	body, err := json.Marshal(terminalRequest{
		Amount:    req.Amount.StringFixed(2),
		Currency:  req.Currency,
		Reference: req.Reference,
	})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/authorizations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.Reference)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("terminal request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("terminal bridge returned %d", resp.StatusCode)
	}
	var out terminalResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode terminal response: %w", err)
	}
	return &Authorization{
		Status:    NormaliseStatus(out.Status),
		AuthCode:  out.AuthCode,
		CardLast4: out.CardLast4,
		CardType:  out.CardType,
		Reason:    out.Message,
	}, nil
}

// ── Sandbox terminal ─────────────────────────────────────────────────────────
// Used when no bridge is configured. Approves every card after delay.

type sandboxGateway struct {
	delay time.Duration
}

func NewSandboxGateway(delay time.Duration) Gateway {
	return &sandboxGateway{delay: delay}
}

func (g *sandboxGateway) Authorize(ctx context.Context, req *AuthorizeRequest) (*Authorization, error) {
	select {
	case <-time.After(g.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if !req.Amount.GreaterThan(decimal.Zero) {
		return &Authorization{Status: StatusDeclined, Reason: "amount must be greater than 0"}, nil
	}
	return &Authorization{
		Status:    StatusApproved,
		AuthCode:  fmt.Sprintf("SBX%06d", rand.Intn(1000000)),
		CardLast4: "4242",
		CardType:  "VISA",
	}, nil
}

// ── Status Normaliser ────────────────────────────────────────────────────────

func NormaliseStatus(terminalStatus string) Status {
	switch strings.ToUpper(strings.TrimSpace(terminalStatus)) {
	case "APPROVED", "SUCCESSFUL", "COMPLETED":
		return StatusApproved
	case "DECLINED", "CANCELLED", "CANCELED", "FAILED":
		return StatusDeclined
	default:
		// PENDING, ERROR and anything unknown: the charge may or may not exist.
		return StatusTimeout
	}
}
