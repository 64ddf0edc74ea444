package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"courtsync/internal/modules/bookings/domain"
	catalogport "courtsync/internal/modules/catalog/application/port"
	"courtsync/internal/platform/rest"
)

// RESTBookingFeed fetches the authoritative booking list for a club. The
// reconnect resync uses it to cover any event gap after a transport drop.
type RESTBookingFeed struct {
	client *rest.Client
}

func NewRESTBookingFeed(client *rest.Client) *RESTBookingFeed {
	return &RESTBookingFeed{client: client}
}

// List returns the club's bookings, optionally bounded to a date range.
func (f *RESTBookingFeed) List(ctx context.Context, clubID string, from, to time.Time) ([]domain.Booking, error) {
	club := strings.TrimSpace(clubID)
	if club == "" {
		return nil, fmt.Errorf("%w: missing club id", catalogport.ErrUpstream)
	}
	path := "/api/clubs/" + url.PathEscape(club) + "/bookings"

	req, err := f.client.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	values := url.Values{}
	if !from.IsZero() {
		values.Set("from", from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		values.Set("to", to.UTC().Format(time.RFC3339))
	}
	req.URL.RawQuery = values.Encode()

	res, err := f.client.Do(req)
	if err != nil {
		slog.Warn("booking feed request error", slog.String("clubId", club), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", catalogport.ErrUpstream, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, catalogport.ErrNotFound
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return nil, catalogport.ErrForbidden
	case res.StatusCode != http.StatusOK:
		message := rest.ErrorMessage(res)
		slog.Warn("booking feed unexpected status", slog.String("clubId", club), slog.Int("status", res.StatusCode), slog.String("message", message))
		return nil, fmt.Errorf("%w: %s", catalogport.ErrUpstream, message)
	}

	var envelope struct {
		Bookings []domain.Booking `json:"bookings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode booking list: %w", err)
	}
	return envelope.Bookings, nil
}
