package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	bookinguc "courtsync/internal/modules/bookings/application/usecase"
	catalogusecase "courtsync/internal/modules/catalog/application/usecase"
	catalogdomain "courtsync/internal/modules/catalog/domain"
	notifuc "courtsync/internal/modules/notifications/application/usecase"
	"courtsync/internal/modules/realtime/domain"
	"courtsync/internal/modules/realtime/infrastructure"
	"courtsync/internal/shared/auth"
	"courtsync/internal/shared/httputil"
	"courtsync/internal/shared/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler serves the gateway's downstream surface: cached catalog reads
// with write-through mutations, booking and notification snapshots, and
// the websocket fan-out endpoint.
type Handler struct {
	hub           *infrastructure.Hub
	validator     auth.TokenValidator
	organizations *catalogusecase.EntityCache[catalogdomain.Organization]
	clubs         *catalogusecase.EntityCache[catalogdomain.Club]
	courts        *catalogusecase.EntityCache[catalogdomain.Court]
	bookings      *bookinguc.BookingStore
	notifications *notifuc.NotificationStore
	errors        *httputil.ErrorMapper
}

func NewHandler(
	hub *infrastructure.Hub,
	validator auth.TokenValidator,
	organizations *catalogusecase.EntityCache[catalogdomain.Organization],
	clubs *catalogusecase.EntityCache[catalogdomain.Club],
	courts *catalogusecase.EntityCache[catalogdomain.Court],
	bookings *bookinguc.BookingStore,
	notifications *notifuc.NotificationStore,
) *Handler {
	return &Handler{
		hub:           hub,
		validator:     validator,
		organizations: organizations,
		clubs:         clubs,
		courts:        courts,
		bookings:      bookings,
		notifications: notifications,
		errors:        httputil.NewErrorMapper(),
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/ws", h.websocket)

	api := e.Group("/api", h.requireAuth)
	api.GET("/organizations/:orgId", h.getOrganization)
	api.GET("/organizations/:orgId/clubs", h.listClubs)
	api.GET("/clubs/:clubId", h.getClub)
	api.GET("/clubs/:clubId/courts", h.listCourts)
	api.POST("/clubs/:clubId/courts", h.createCourt)
	api.GET("/courts/:id", h.getCourt)
	api.PUT("/courts/:id", h.updateCourt)
	api.DELETE("/courts/:id", h.deleteCourt)
	api.GET("/clubs/:clubId/bookings", h.listBookings)
	api.GET("/clubs/:clubId/locks", h.listLocks)
	api.GET("/clubs/:clubId/notifications", h.listNotifications)
}

// requireAuth enforces a valid bearer token on the read API. Without a
// validator configured the gateway runs open, which is the local dev
// setup.
func (h *Handler) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.validator == nil {
			return next(c)
		}
		token := auth.ExtractToken(c.Request(), "token")
		claims, err := h.validator.Validate(token)
		if err != nil {
			return h.httpError(err)
		}
		c.Set("session", auth.NewSession(claims))
		return next(c)
	}
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"clubId": h.bookings.ClubID(),
		"time":   time.Now().UTC(),
	})
}

func (h *Handler) getOrganization(c echo.Context) error {
	org, err := h.organizations.EnsureByID(c.Request().Context(), c.Param("orgId"), fetchOptions(c))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, org)
}

func (h *Handler) listClubs(c echo.Context) error {
	scope := catalogdomain.Scope{OrganizationID: c.Param("orgId")}
	clubs, err := h.clubs.Collection(c.Request().Context(), scope, fetchOptions(c))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"clubs": clubs})
}

func (h *Handler) getClub(c echo.Context) error {
	club, err := h.clubs.EnsureByID(c.Request().Context(), c.Param("clubId"), fetchOptions(c))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, club)
}

func (h *Handler) listCourts(c echo.Context) error {
	scope := catalogdomain.Scope{ClubID: c.Param("clubId")}
	courts, err := h.courts.Collection(c.Request().Context(), scope, fetchOptions(c))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"courts":        courts,
		"lastFetchedAt": h.courts.LastFetchedAt(),
	})
}

func (h *Handler) getCourt(c echo.Context) error {
	court, err := h.courts.EnsureByID(c.Request().Context(), c.Param("id"), fetchOptions(c))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, court)
}

func (h *Handler) createCourt(c echo.Context) error {
	var payload catalogdomain.Court
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid court payload")
	}
	scope := catalogdomain.Scope{ClubID: c.Param("clubId")}
	created, err := h.courts.Create(c.Request().Context(), scope, payload)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateCourt(c echo.Context) error {
	var payload catalogdomain.Court
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid court payload")
	}
	scope := catalogdomain.Scope{ClubID: payload.ClubID}
	updated, err := h.courts.Update(c.Request().Context(), scope, c.Param("id"), payload)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteCourt(c echo.Context) error {
	scope := catalogdomain.Scope{ClubID: c.QueryParam("clubId")}
	if err := h.courts.Delete(c.Request().Context(), scope, c.Param("id")); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) listBookings(c echo.Context) error {
	if err := h.requireActiveClub(c.Param("clubId")); err != nil {
		return err
	}
	var bookings any
	if courtID := c.QueryParam("courtId"); courtID != "" {
		bookings = h.bookings.BookingsForCourt(courtID)
	} else {
		bookings = h.bookings.Bookings()
	}
	return c.JSON(http.StatusOK, map[string]any{"bookings": bookings})
}

func (h *Handler) listLocks(c echo.Context) error {
	if err := h.requireActiveClub(c.Param("clubId")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"locks": h.bookings.ActiveLocks(time.Now())})
}

func (h *Handler) listNotifications(c echo.Context) error {
	if err := h.requireActiveClub(c.Param("clubId")); err != nil {
		return err
	}
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"notifications": h.notifications.Recent(limit)})
}

// websocket upgrades a downstream client and joins it to the club topics
// its token grants. Browsers cannot set headers on websocket dials, so
// the token is also accepted as ?token=.
func (h *Handler) websocket(c echo.Context) error {
	r := c.Request()
	userID := "anonymous"
	sessionID := uuid.NewString()
	var claims *auth.Claims

	if h.validator != nil {
		token := auth.ExtractToken(r, "token")
		parsed, err := h.validator.Validate(token)
		if err != nil {
			return h.httpError(err)
		}
		claims = parsed
		userID = claims.Subject
		sessionID = claims.SessionID
	}

	requested := splitClubs(c.QueryParam("clubs"))
	if len(requested) == 0 && h.bookings.ClubID() != "" {
		requested = []string{h.bookings.ClubID()}
	}
	granted := make([]string, 0, len(requested))
	for _, clubID := range requested {
		if claims != nil && !claims.CanAccessClub(clubID) {
			slog.Warn("ws club denied", slog.String("userId", userID), slog.String("clubId", clubID))
			continue
		}
		granted = append(granted, clubID)
	}
	if len(granted) == 0 {
		return echo.NewHTTPError(http.StatusForbidden, "no accessible clubs")
	}

	conn, err := upgrader.Upgrade(c.Response(), r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", slog.String("userId", userID), slog.Any("error", err))
		return err
	}

	sub := infrastructure.NewSubscriber(h.hub, conn, userID, sessionID, 8)
	h.hub.Attach(sub, granted)
	go sub.WritePump()
	go sub.ReadPump()

	// The welcome frame goes through the send queue; the write pump is
	// the connection's only writer.
	payload, _ := json.Marshal(map[string]any{"clubs": granted, "userId": userID})
	connected := &domain.Envelope{Kind: domain.EventUnknown, Name: "connected", Payload: payload, ReceivedAt: time.Now().UTC()}
	if data, err := domain.EncodeEnvelope(connected); err == nil {
		sub.Enqueue(data)
	}

	slog.Info("ws connected", slog.String("userId", userID), slog.String("sessionId", sessionID), slog.Any("clubs", granted))
	return nil
}

// requireActiveClub guards the store-backed reads: the gateway holds one
// club's bookings, a request for another club would silently serve the
// wrong tenant's data.
func (h *Handler) requireActiveClub(clubID string) error {
	active := h.bookings.ClubID()
	if active != "" && clubID != active {
		return echo.NewHTTPError(http.StatusNotFound, "club not synchronized by this gateway")
	}
	return nil
}

func (h *Handler) httpError(err error) error {
	info := h.errors.Map(err)
	return echo.NewHTTPError(info.Status, info.Message)
}

func fetchOptions(c echo.Context) catalogusecase.FetchOptions {
	force := strings.EqualFold(c.QueryParam("force"), "true")
	return catalogusecase.FetchOptions{Force: force}
}

func splitClubs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
