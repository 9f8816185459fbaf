package httpapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jobsdashboard/internal/adapters/httpapi"
	"jobsdashboard/internal/core"
	"jobsdashboard/pkg/domain"
)

func newServer(t *testing.T) (*httptest.Server, *core.Service) {
	t.Helper()
	svc := core.NewInMemoryService(nil)
	srv := httptest.NewServer(httpapi.NewHandler(svc, nil))
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestCompanyLifecycle(t *testing.T) {
	srv, _ := newServer(t)
	base := srv.URL + "/api/v1/companies"

	resp := do(t, http.MethodPost, base, `{"_id":"temp-1-1","name":"Acme","address":"1 Main St"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", resp.StatusCode)
	}
	created := decode[domain.Company](t, resp)
	if created.ID == "" || domain.IsTemporaryID(created.ID) {
		t.Fatalf("server should assign a permanent id, got %q", created.ID)
	}

	resp = do(t, http.MethodPut, base+"/"+created.ID, `{"name":"Acme Corp","address":"2 Main St"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status %d", resp.StatusCode)
	}
	if updated := decode[domain.Company](t, resp); updated.ID != created.ID || updated.Name != "Acme Corp" {
		t.Fatalf("unexpected update %+v", updated)
	}

	resp = do(t, http.MethodGet, base+"/", "")
	list := decode[[]domain.Company](t, resp)
	if len(list) != 1 || list[0].Address != "2 Main St" {
		t.Fatalf("unexpected list %+v", list)
	}

	resp = do(t, http.MethodDelete, base+"/"+created.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, base+"/"+created.ID, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestEmptyListEncodesArray(t *testing.T) {
	srv, _ := newServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/api/v1/skills", "")
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("expected empty array, got %s", raw)
	}
}

func TestErrorStatuses(t *testing.T) {
	srv, _ := newServer(t)
	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown resource", http.MethodGet, "/api/v1/widgets", "", http.StatusNotFound},
		{"outside prefix", http.MethodGet, "/healthz", "", http.StatusNotFound},
		{"nested path", http.MethodGet, "/api/v1/jobs/a/b", "", http.StatusNotFound},
		{"bad json", http.MethodPost, "/api/v1/banks", "{", http.StatusBadRequest},
		{"blank name", http.MethodPost, "/api/v1/banks", `{"name":" "}`, http.StatusUnprocessableEntity},
		{"missing reference", http.MethodPost, "/api/v1/jobs", `{"title":"Welder","companyId":"ghost"}`, http.StatusUnprocessableEntity},
		{"update missing", http.MethodPut, "/api/v1/shifts/nope", `{"name":"Night"}`, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/v1/states/nope", "", http.StatusNotFound},
		{"collection method", http.MethodDelete, "/api/v1/cities", "", http.StatusMethodNotAllowed},
		{"item method", http.MethodPost, "/api/v1/cities/x", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, tc.method, srv.URL+tc.path, tc.body)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestRuleViolationBodyListsViolations(t *testing.T) {
	srv, _ := newServer(t)
	resp := do(t, http.MethodPost, srv.URL+"/api/v1/cities", `{"name":"Austin","stateId":"ghost"}`)
	body := decode[struct {
		Error      string             `json:"error"`
		Violations []domain.Violation `json:"violations"`
	}](t, resp)
	if len(body.Violations) == 0 || body.Violations[0].Rule != "reference_integrity" {
		t.Fatalf("unexpected violations %+v", body)
	}
}

func TestResourcesCoverEveryEntity(t *testing.T) {
	h := httpapi.NewHandler(core.NewInMemoryService(nil), nil)
	if got := len(h.Resources()); got != len(domain.EntityTypes()) {
		t.Fatalf("expected %d resources, got %v", len(domain.EntityTypes()), h.Resources())
	}
}

func TestNilServiceReturns500(t *testing.T) {
	rec := httptest.NewRecorder()
	httpapi.NewHandler(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
