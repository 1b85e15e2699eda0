package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestTerminalGateway_Authorize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		status     int
		body       string
		wantStatus Status
		wantErr    bool
	}{
		{"approved", http.StatusOK, `{"status":"APPROVED","auth_code":"A1","card_last4":"1111","card_type":"VISA"}`, StatusApproved, false},
		{"declined", http.StatusOK, `{"status":"DECLINED","message":"insufficient funds"}`, StatusDeclined, false},
		{"pending is unknown", http.StatusOK, `{"status":"PENDING"}`, StatusTimeout, false},
		{"bridge error", http.StatusBadGateway, `{}`, "", true},
		{"garbage body", http.StatusOK, `not-json`, "", true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var gotKey string
			var gotBody terminalRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/authorizations" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				gotKey = r.Header.Get("Idempotency-Key")
				_ = json.NewDecoder(r.Body).Decode(&gotBody)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			gw := NewTerminalGateway(srv.URL+"/", srv.Client())
			auth, err := gw.Authorize(context.Background(), &AuthorizeRequest{
				Amount:    decimal.RequireFromString("23.2"),
				Currency:  "ZMW",
				Method:    MethodCard,
				Reference: "req-1",
			})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", auth)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if auth.Status != tc.wantStatus {
				t.Fatalf("expected status %s, got %s", tc.wantStatus, auth.Status)
			}
			if gotKey != "req-1" {
				t.Fatalf("expected idempotency key header req-1, got %q", gotKey)
			}
			if gotBody.Amount != "23.20" {
				t.Fatalf("expected amount 23.20, got %s", gotBody.Amount)
			}
		})
	}
}

type blockingGateway struct{}

func (blockingGateway) Authorize(ctx context.Context, _ *AuthorizeRequest) (*Authorization, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestService_Authorize(t *testing.T) {
	t.Parallel()

	svc := NewService(Registry{
		MethodCash: NewCashGateway(),
		MethodCard: blockingGateway{},
	}, 20*time.Millisecond, zap.NewNop())

	t.Run("cash approves immediately", func(t *testing.T) {
		auth, err := svc.Authorize(context.Background(), AuthorizeRequest{Amount: decimal.NewFromInt(10), Method: MethodCash, Reference: "k"})
		if err != nil || !auth.Approved() {
			t.Fatalf("expected approval, got %+v err=%v", auth, err)
		}
		if auth.AuthCode != "" {
			t.Fatalf("cash must not carry an auth code")
		}
	})

	t.Run("gateway timeout is not a decline", func(t *testing.T) {
		auth, err := svc.Authorize(context.Background(), AuthorizeRequest{Amount: decimal.NewFromInt(10), Method: MethodCard, Reference: "k"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if auth.Status != StatusTimeout {
			t.Fatalf("expected timeout status, got %s", auth.Status)
		}
	})

	t.Run("unknown method", func(t *testing.T) {
		_, err := svc.Authorize(context.Background(), AuthorizeRequest{Amount: decimal.NewFromInt(10), Method: "voucher"})
		if err == nil {
			t.Fatalf("expected unsupported method error")
		}
	})
}

func TestSandboxGateway_RespectsContext(t *testing.T) {
	t.Parallel()
	gw := NewSandboxGateway(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := gw.Authorize(ctx, &AuthorizeRequest{Amount: decimal.NewFromInt(1)}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestNormaliseStatus(t *testing.T) {
	t.Parallel()
	cases := map[string]Status{
		"approved":  StatusApproved,
		" DECLINED": StatusDeclined,
		"cancelled": StatusDeclined,
		"ERROR":     StatusTimeout,
		"":          StatusTimeout,
	}
	for in, want := range cases {
		if got := NormaliseStatus(in); got != want {
			t.Errorf("NormaliseStatus(%q) = %s, want %s", in, got, want)
		}
	}
}
