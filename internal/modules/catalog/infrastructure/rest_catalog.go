package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"courtsync/internal/modules/catalog/application/port"
	"courtsync/internal/modules/catalog/domain"
	"courtsync/internal/platform/rest"
)

// EntityRoutes describes the REST resource layout for one entity type:
// collections hang off a parent resource (GET /api/<parent>/<id>/<name>)
// while details are addressed flat (GET /api/<name>/<id>).
type EntityRoutes struct {
	Parent string
	Name   string
}

func (r EntityRoutes) listPath(scope domain.Scope) (string, error) {
	parent := scope.ParentID()
	if parent == "" {
		return "", fmt.Errorf("%w: missing scope id", port.ErrUpstream)
	}
	return "/api/" + r.Parent + "/" + url.PathEscape(parent) + "/" + r.Name, nil
}

func (r EntityRoutes) detailPath(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", port.ErrNotFound
	}
	return "/api/" + r.Name + "/" + url.PathEscape(trimmed), nil
}

// RESTCatalog implements port.Fetcher against the booking platform's REST
// API. List responses arrive enveloped ({"courts": [...]}) keyed by the
// entity name; details and writes return the bare entity.
type RESTCatalog[T any] struct {
	client *rest.Client
	routes EntityRoutes
}

func NewRESTCatalog[T any](client *rest.Client, routes EntityRoutes) *RESTCatalog[T] {
	return &RESTCatalog[T]{client: client, routes: routes}
}

func (c *RESTCatalog[T]) List(ctx context.Context, scope domain.Scope) ([]T, error) {
	path, err := c.routes.listPath(scope)
	if err != nil {
		return nil, err
	}
	res, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", c.routes.Name, err)
	}
	raw, ok := envelope[c.routes.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s list missing %q key", port.ErrUpstream, c.routes.Name, c.routes.Name)
	}
	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode %s records: %w", c.routes.Name, err)
	}
	return records, nil
}

func (c *RESTCatalog[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	path, err := c.routes.detailPath(id)
	if err != nil {
		return zero, err
	}
	res, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return zero, err
	}
	defer res.Body.Close()

	var record T
	if err := json.NewDecoder(res.Body).Decode(&record); err != nil {
		return zero, fmt.Errorf("decode %s detail: %w", c.routes.Name, err)
	}
	return record, nil
}

func (c *RESTCatalog[T]) Create(ctx context.Context, scope domain.Scope, payload T) (T, error) {
	var zero T
	path, err := c.routes.listPath(scope)
	if err != nil {
		return zero, err
	}
	res, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return zero, err
	}
	defer res.Body.Close()

	var record T
	if err := json.NewDecoder(res.Body).Decode(&record); err != nil {
		return zero, fmt.Errorf("decode created %s: %w", c.routes.Name, err)
	}
	return record, nil
}

func (c *RESTCatalog[T]) Update(ctx context.Context, scope domain.Scope, id string, payload T) (T, error) {
	var zero T
	path, err := c.routes.detailPath(id)
	if err != nil {
		return zero, err
	}
	res, err := c.do(ctx, http.MethodPut, path, payload)
	if err != nil {
		return zero, err
	}
	defer res.Body.Close()

	var record T
	if err := json.NewDecoder(res.Body).Decode(&record); err != nil {
		return zero, fmt.Errorf("decode updated %s: %w", c.routes.Name, err)
	}
	return record, nil
}

func (c *RESTCatalog[T]) Delete(ctx context.Context, scope domain.Scope, id string) error {
	path, err := c.routes.detailPath(id)
	if err != nil {
		return err
	}
	res, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	res.Body.Close()
	return nil
}

// do issues the request and maps the status line onto the port's sentinel
// errors, keeping the server's error message in the wrapped text.
func (c *RESTCatalog[T]) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	req, err := c.client.NewRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	res, err := c.client.Do(req)
	if err != nil {
		slog.Warn("catalog request error", slog.String("entity", c.routes.Name), slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", port.ErrUpstream, err)
	}
	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		res.Body.Close()
		return nil, port.ErrForbidden
	case res.StatusCode == http.StatusNotFound:
		res.Body.Close()
		return nil, port.ErrNotFound
	case res.StatusCode < 200 || res.StatusCode > 299:
		message := rest.ErrorMessage(res)
		res.Body.Close()
		slog.Warn("catalog unexpected status", slog.String("entity", c.routes.Name), slog.Int("status", res.StatusCode), slog.String("path", path), slog.String("message", message))
		return nil, fmt.Errorf("%w: %s", port.ErrUpstream, message)
	}
	return res, nil
}

var _ port.Fetcher[domain.Court] = (*RESTCatalog[domain.Court])(nil)

// Route tables for the catalog entity types.
var (
	CourtRoutes        = EntityRoutes{Parent: "clubs", Name: "courts"}
	ClubRoutes         = EntityRoutes{Parent: "organizations", Name: "clubs"}
	OrganizationRoutes = EntityRoutes{Parent: "platform", Name: "organizations"}
)
