package payment

import (
	"github.com/shopspring/decimal"
)

// Method is how the customer pays at the counter.
type Method string

const (
	MethodCash Method = "cash"
	MethodCard Method = "card"
)

// Valid reports whether m is an accepted payment method.
func (m Method) Valid() bool {
	return m == MethodCash || m == MethodCard
}

// Status is the normalised authorization result.
type Status string

const (
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
	// StatusTimeout means the outcome is unknown; the charge may have gone through.
	StatusTimeout Status = "timeout"
)

// AuthorizeRequest asks a gateway to take a payment. Reference is the sale's
// request key, so a repeated authorization for the same attempt is recognisable
// on the terminal side.
type AuthorizeRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Method    Method          `json:"method"`
	Reference string          `json:"reference"`
}

// Authorization is what came back from the gateway.
type Authorization struct {
	Status    Status `json:"status"`
	AuthCode  string `json:"auth_code,omitempty"`
	CardLast4 string `json:"card_last4,omitempty"`
	CardType  string `json:"card_type,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (a *Authorization) Approved() bool { return a != nil && a.Status == StatusApproved }
