package domain

import (
	"strings"
	"time"
)

// Organization is the top-level tenant owning one or more clubs.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

func (o Organization) RecordID() string { return o.ID }

// Club is a facility belonging to an organization; courts and bookings are
// scoped to a club.
type Club struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	Address        string `json:"address,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
	OpeningHour    int    `json:"openingHour,omitempty"`
	ClosingHour    int    `json:"closingHour,omitempty"`
}

func (c Club) RecordID() string { return c.ID }

// Court is a bookable resource inside a club.
type Court struct {
	ID        string `json:"id"`
	ClubID    string `json:"clubId"`
	Name      string `json:"name"`
	Sport     string `json:"sport,omitempty"`
	Surface   string `json:"surface,omitempty"`
	Indoor    bool   `json:"indoor,omitempty"`
	Active    bool   `json:"active"`
	SlotMins  int    `json:"slotMinutes,omitempty"`
	PriceCent int64  `json:"priceCents,omitempty"`
}

func (c Court) RecordID() string { return c.ID }

// Scope identifies the parent resource a collection fetch is bound to.
// Exactly one of the ids is normally set (courts hang off a club, clubs off
// an organization, organizations off the platform root).
type Scope struct {
	OrganizationID string
	ClubID         string
}

// Key is the canonical cache/coalescing key for the scope.
func (s Scope) Key() string {
	org := strings.TrimSpace(s.OrganizationID)
	club := strings.TrimSpace(s.ClubID)
	return "org=" + org + "|club=" + club
}

// ParentID returns the id the collection route is built from.
func (s Scope) ParentID() string {
	if club := strings.TrimSpace(s.ClubID); club != "" {
		return club
	}
	return strings.TrimSpace(s.OrganizationID)
}
