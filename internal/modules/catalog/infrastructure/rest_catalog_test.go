package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courtsync/internal/modules/catalog/application/port"
	"courtsync/internal/modules/catalog/domain"
	"courtsync/internal/platform/rest"
)

func newCatalog(t *testing.T, handler http.HandlerFunc) (*RESTCatalog[domain.Court], *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := rest.NewClient(server.URL, "test-token", 2*time.Second, nil)
	return NewRESTCatalog[domain.Court](client, CourtRoutes), server
}

func TestListDecodesEnvelopeAndSendsAuth(t *testing.T) {
	var gotPath, gotAuth string
	catalog, _ := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"courts": []domain.Court{
				{ID: "court-1", ClubID: "club-1", Name: "Center"},
				{ID: "court-2", ClubID: "club-1", Name: "North"},
			},
		})
	})

	records, err := catalog.List(context.Background(), domain.Scope{ClubID: "club-1"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if gotPath != "/api/clubs/club-1/courts" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if len(records) != 2 || records[1].Name != "North" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestListMissingScopeFailsWithoutRequest(t *testing.T) {
	called := false
	catalog, _ := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	if _, err := catalog.List(context.Background(), domain.Scope{}); !errors.Is(err, port.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if called {
		t.Fatal("no request should be issued for an empty scope")
	}
}

func TestGetMapsNotFound(t *testing.T) {
	catalog, _ := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "no such court"})
	})
	if _, err := catalog.Get(context.Background(), "court-9"); !errors.Is(err, port.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestErrorPayloadMessageSurfaces(t *testing.T) {
	catalog, _ := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "name already taken"})
	})
	_, err := catalog.Create(context.Background(), domain.Scope{ClubID: "club-1"}, domain.Court{Name: "Center"})
	if !errors.Is(err, port.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if got := err.Error(); got != "upstream request failed: name already taken" {
		t.Fatalf("server message not surfaced: %q", got)
	}
}

func TestErrorPayloadFallsBackToStatus(t *testing.T) {
	catalog, _ := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	})
	_, err := catalog.Get(context.Background(), "court-1")
	if !errors.Is(err, port.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if got := err.Error(); got != "upstream request failed: unexpected response 502" {
		t.Fatalf("unexpected fallback message: %q", got)
	}
}

func TestForbiddenMapsSentinel(t *testing.T) {
	catalog, _ := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	if _, err := catalog.Get(context.Background(), "court-1"); !errors.Is(err, port.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestUpdateSendsJSONBody(t *testing.T) {
	var gotMethod, gotContentType string
	var gotBody domain.Court
	catalog, _ := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		gotBody.ID = "court-1"
		json.NewEncoder(w).Encode(gotBody)
	})

	updated, err := catalog.Update(context.Background(), domain.Scope{ClubID: "club-1"}, "court-1", domain.Court{Name: "Renamed"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Fatalf("expected PUT, got %s", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Fatalf("missing json content type, got %q", gotContentType)
	}
	if gotBody.Name != "Renamed" || updated.ID != "court-1" {
		t.Fatalf("body round trip failed: %+v / %+v", gotBody, updated)
	}
}
