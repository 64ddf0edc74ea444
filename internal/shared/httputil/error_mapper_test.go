package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	catalogport "courtsync/internal/modules/catalog/application/port"
	"courtsync/internal/shared/auth"
)

func TestMapSentinelErrors(t *testing.T) {
	m := NewErrorMapper()
	cases := []struct {
		err    error
		status int
	}{
		{nil, http.StatusOK},
		{catalogport.ErrNotFound, http.StatusNotFound},
		{catalogport.ErrForbidden, http.StatusForbidden},
		{catalogport.ErrUpstream, http.StatusBadGateway},
		{auth.ErrMissingToken, http.StatusUnauthorized},
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := m.Map(tc.err); got.Status != tc.status {
			t.Errorf("Map(%v) = %d, want %d", tc.err, got.Status, tc.status)
		}
	}
}

func TestMapUnwrapsWrappedErrors(t *testing.T) {
	m := NewErrorMapper()
	err := fmt.Errorf("fetch courts: %w", catalogport.ErrNotFound)
	if got := m.Map(err); got.Status != http.StatusNotFound {
		t.Fatalf("wrapped sentinel not matched: %+v", got)
	}
}

func TestMapContextErrorsTakePrecedence(t *testing.T) {
	m := NewErrorMapper()
	if got := m.Map(context.DeadlineExceeded); got.Status != http.StatusGatewayTimeout {
		t.Fatalf("deadline mapped to %d", got.Status)
	}
	if got := m.Map(context.Canceled); got.Status != http.StatusServiceUnavailable {
		t.Fatalf("cancel mapped to %d", got.Status)
	}
}

func TestWithMappingExtends(t *testing.T) {
	errTeapot := errors.New("teapot")
	m := NewErrorMapper().WithMapping(errTeapot, http.StatusTeapot, "short and stout")
	got := m.Map(errTeapot)
	if got.Status != http.StatusTeapot || got.Message != "short and stout" {
		t.Fatalf("custom mapping ignored: %+v", got)
	}
}
