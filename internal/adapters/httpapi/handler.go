// Package httpapi exposes the job-board service over a JSON REST API rooted at
// /api/v1.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"jobsdashboard/internal/core"
	"jobsdashboard/internal/observability"
	"jobsdashboard/pkg/domain"
)

// Prefix is the path every resource lives under.
const Prefix = "/api/v1/"

const maxBodyBytes = 1 << 20

// resource binds the CRUD operations of one entity type to untyped JSON.
type resource struct {
	list   func(ctx context.Context) (any, error)
	get    func(ctx context.Context, id string) (any, error)
	create func(ctx context.Context, body []byte) (any, error)
	update func(ctx context.Context, id string, body []byte) (any, error)
	remove func(ctx context.Context, id string) error
}

// errBadPayload marks request bodies that failed to decode.
var errBadPayload = errors.New("invalid json payload")

func bind[T domain.Entity[T]](svc *core.Service) resource {
	decode := func(body []byte) (T, error) {
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return v, fmt.Errorf("%w: %v", errBadPayload, err)
		}
		return v, nil
	}
	return resource{
		list: func(ctx context.Context) (any, error) {
			items, err := core.List[T](ctx, svc)
			if items == nil {
				items = []T{}
			}
			return items, err
		},
		get: func(ctx context.Context, id string) (any, error) {
			return core.Get[T](ctx, svc, id)
		},
		create: func(ctx context.Context, body []byte) (any, error) {
			v, err := decode(body)
			if err != nil {
				return nil, err
			}
			// The server owns identity and timestamps.
			created, _, err := core.Create(ctx, svc, v.WithBase(domain.Base{}))
			return created, err
		},
		update: func(ctx context.Context, id string, body []byte) (any, error) {
			v, err := decode(body)
			if err != nil {
				return nil, err
			}
			updated, _, err := core.Replace(ctx, svc, id, v)
			return updated, err
		},
		remove: func(ctx context.Context, id string) error {
			_, err := core.Delete[T](ctx, svc, id)
			return err
		},
	}
}

// Handler routes /api/v1/<resource>[/<id>] requests to the service.
type Handler struct {
	Service   *core.Service
	Logger    observability.Logger
	resources map[string]resource
}

// NewHandler constructs a REST handler for every entity type.
func NewHandler(svc *core.Service, logger observability.Logger) *Handler {
	h := &Handler{Service: svc, Logger: observability.OrNoop(logger)}
	if svc == nil {
		return h
	}
	h.resources = map[string]resource{
		domain.EntityCompany.Resource():    bind[domain.Company](svc),
		domain.EntityDepartment.Resource(): bind[domain.Department](svc),
		domain.EntitySkill.Resource():      bind[domain.Skill](svc),
		domain.EntityBank.Resource():       bind[domain.Bank](svc),
		domain.EntityJob.Resource():        bind[domain.Job](svc),
		domain.EntityCity.Resource():       bind[domain.City](svc),
		domain.EntityState.Resource():      bind[domain.State](svc),
		domain.EntityShift.Resource():      bind[domain.Shift](svc),
		domain.EntityOnboarding.Resource(): bind[domain.Onboarding](svc),
	}
	return h
}

// Resources lists the served collection names.
func (h *Handler) Resources() []string {
	out := make([]string, 0, len(h.resources))
	for name := range h.resources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	if !strings.HasPrefix(path, Prefix) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	name, id, _ := strings.Cut(strings.TrimPrefix(path, Prefix), "/")
	res, ok := h.resources[name]
	if !ok || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if id == "" {
		h.handleCollection(w, r, res)
		return
	}
	h.handleItem(w, r, res, id)
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request, res resource) {
	switch r.Method {
	case http.MethodGet:
		items, err := res.list(r.Context())
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		body, err := readBody(r)
		if err != nil {
			h.fail(w, err)
			return
		}
		created, err := res.create(r.Context(), body)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request, res resource, id string) {
	switch r.Method {
	case http.MethodGet:
		rec, err := res.get(r.Context(), id)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodPut, http.MethodPatch:
		body, err := readBody(r)
		if err != nil {
			h.fail(w, err)
			return
		}
		updated, err := res.update(r.Context(), id, body)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := res.remove(r.Context(), id); err != nil {
			h.fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, PUT, PATCH, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return body, nil
}

// fail maps service errors onto HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var (
		notFound  domain.ErrNotFound
		violation domain.RuleViolationError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &violation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      err.Error(),
			"violations": violation.Result.Violations,
		})
	case errors.Is(err, errBadPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.Logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
