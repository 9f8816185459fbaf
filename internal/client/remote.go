// Package client is the dashboard's data-access layer. Each entity type gets a
// Slice that reads through the shared query cache and routes mutations either
// through the optimistic coordinator or through tag invalidation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jobsdashboard/internal/core"
	"jobsdashboard/pkg/domain"
)

// Remote performs server calls for one entity type.
type Remote[T domain.Entity[T]] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, draft T) (T, error)
	Update(ctx context.Context, id string, v T) (T, error)
	Delete(ctx context.Context, id string) error
}

// ServiceRemote calls a core.Service in process.
type ServiceRemote[T domain.Entity[T]] struct {
	Service *core.Service
}

// NewServiceRemote returns a remote backed by svc.
func NewServiceRemote[T domain.Entity[T]](svc *core.Service) ServiceRemote[T] {
	return ServiceRemote[T]{Service: svc}
}

func (r ServiceRemote[T]) List(ctx context.Context) ([]T, error) {
	return core.List[T](ctx, r.Service)
}

func (r ServiceRemote[T]) Get(ctx context.Context, id string) (T, error) {
	return core.Get[T](ctx, r.Service, id)
}

func (r ServiceRemote[T]) Create(ctx context.Context, draft T) (T, error) {
	created, _, err := core.Create(ctx, r.Service, draft.WithBase(domain.Base{}))
	return created, err
}

func (r ServiceRemote[T]) Update(ctx context.Context, id string, v T) (T, error) {
	updated, _, err := core.Replace(ctx, r.Service, id, v)
	return updated, err
}

func (r ServiceRemote[T]) Delete(ctx context.Context, id string) error {
	_, err := core.Delete[T](ctx, r.Service, id)
	return err
}

// StatusError is returned by HTTPRemote for non-2xx responses.
type StatusError struct {
	Method  string
	URL     string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Message)
}

// HTTPRemote calls the REST API served by the httpapi adapter.
type HTTPRemote[T domain.Entity[T]] struct {
	base   string
	client *http.Client
}

// NewHTTPRemote returns a remote for T rooted at baseURL. A nil client uses
// one with the given timeout.
func NewHTTPRemote[T domain.Entity[T]](baseURL string, client *http.Client, timeout time.Duration) (*HTTPRemote[T], error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	var zero T
	return &HTTPRemote[T]{
		base:   u.String() + "/api/v1/" + zero.Kind().Resource(),
		client: client,
	}, nil
}

// URL returns the collection endpoint.
func (r *HTTPRemote[T]) URL() string { return r.base }

func (r *HTTPRemote[T]) List(ctx context.Context) ([]T, error) {
	var out []T
	err := r.do(ctx, http.MethodGet, r.base, nil, &out)
	return out, err
}

func (r *HTTPRemote[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	err := r.do(ctx, http.MethodGet, r.item(id), nil, &out)
	return out, err
}

func (r *HTTPRemote[T]) Create(ctx context.Context, draft T) (T, error) {
	var out T
	err := r.do(ctx, http.MethodPost, r.base, draft.WithBase(domain.Base{}), &out)
	return out, err
}

func (r *HTTPRemote[T]) Update(ctx context.Context, id string, v T) (T, error) {
	var out T
	err := r.do(ctx, http.MethodPut, r.item(id), v, &out)
	return out, err
}

func (r *HTTPRemote[T]) Delete(ctx context.Context, id string) error {
	return r.do(ctx, http.MethodDelete, r.item(id), nil, nil)
}

func (r *HTTPRemote[T]) item(id string) string {
	return r.base + "/" + url.PathEscape(id)
}

func (r *HTTPRemote[T]) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
		return &StatusError{Method: method, URL: target, Status: resp.StatusCode, Message: payload.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, target, err)
	}
	return nil
}
