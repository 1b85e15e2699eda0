package reconciliation_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/modules/reconciliation"
)

func router(d *desk, role auth.Role) http.Handler {
	r := chi.NewRouter()
	r.Use(auth.Anonymous(role))
	reconciliation.NewHandler(d.Reconciliation).RegisterRoutes(r)
	return r
}

func call(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestHandler_ResolveNeedsManager(t *testing.T) {
	d := newDesk(t)
	id := d.park(t, "till-1-h1")
	path := "/api/v1/reconciliation/" + id.String()
	body := `{"approved":true,"note":"checked the terminal log"}`

	if w := call(router(d, auth.RoleCashier), http.MethodPost, path+"/resolve", body); w.Code != http.StatusForbidden {
		t.Fatalf("cashier resolve status = %d, want 403", w.Code)
	}

	manager := router(d, auth.RoleManager)
	if w := call(manager, http.MethodPost, path+"/resolve", `{"approved":true}`); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("resolve without note status = %d, want 422", w.Code)
	}
	if w := call(manager, http.MethodPost, path+"/resolve", body); w.Code != http.StatusOK {
		t.Fatalf("manager resolve status = %d, body %s", w.Code, w.Body)
	}
	if w := call(manager, http.MethodPost, path+"/abandon", `{"note":"late"}`); w.Code != http.StatusConflict {
		t.Fatalf("abandon resolved entry status = %d, want 409", w.Code)
	}
}

func TestHandler_Lookups(t *testing.T) {
	d := newDesk(t)
	d.park(t, "till-1-h2")
	h := router(d, auth.RoleCashier)

	if w := call(h, http.MethodGet, "/api/v1/reconciliation/"+uuid.NewString(), ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown entry status = %d, want 404", w.Code)
	}
	if w := call(h, http.MethodGet, "/api/v1/reconciliation/not-a-uuid", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d, want 400", w.Code)
	}
	if w := call(h, http.MethodGet, "/api/v1/reconciliation/?status=nope", ""); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad status filter = %d, want 422", w.Code)
	}
	w := call(h, http.MethodGet, "/api/v1/reconciliation/?status=pending", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "till-1-h2") {
		t.Fatalf("list status = %d, body %s", w.Code, w.Body)
	}
}
