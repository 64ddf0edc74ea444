package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"courtsync/internal/config"
	bookinguc "courtsync/internal/modules/bookings/application/usecase"
	bookinginfra "courtsync/internal/modules/bookings/infrastructure"
	catalogusecase "courtsync/internal/modules/catalog/application/usecase"
	catalogdomain "courtsync/internal/modules/catalog/domain"
	cataloginfra "courtsync/internal/modules/catalog/infrastructure"
	notifuc "courtsync/internal/modules/notifications/application/usecase"
	"courtsync/internal/modules/notifications/repository"
	realtimeport "courtsync/internal/modules/realtime/application/port"
	realtimeuc "courtsync/internal/modules/realtime/application/usecase"
	"courtsync/internal/modules/realtime/domain"
	"courtsync/internal/modules/realtime/infrastructure"
	transport "courtsync/internal/modules/realtime/interface"
	"courtsync/internal/platform/broker"
	"courtsync/internal/platform/rest"
	"courtsync/internal/shared/auth"
	"courtsync/internal/shared/logging"
)

// fanoutSink applies each event through the dispatcher and, when the
// application succeeds, re-broadcasts the envelope to downstream
// websocket subscribers.
type fanoutSink struct {
	dispatcher *realtimeuc.Dispatcher
	hub        *infrastructure.Hub
}

func (s fanoutSink) Dispatch(ctx context.Context, ev *domain.Envelope) error {
	if err := s.dispatcher.Dispatch(ctx, ev); err != nil {
		return err
	}
	s.hub.Broadcast(ctx, ev)
	return nil
}

var _ realtimeport.EventSink = fanoutSink{}

func main() {
	if err := godotenv.Overload(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, ".env load warning: %v\n", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		os.Exit(1)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}
	slog.Info("starting courtsync gateway",
		slog.String("upstream", cfg.Upstream.BaseURL),
		slog.String("feed", cfg.Upstream.WSURL),
		slog.String("club", cfg.Sync.ActiveClub),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Upstream REST access and the entity caches built on it.
	client := rest.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Token, 0, nil)
	organizations := catalogusecase.NewEntityCache[catalogdomain.Organization]("organizations",
		cataloginfra.NewRESTCatalog[catalogdomain.Organization](client, cataloginfra.OrganizationRoutes))
	clubs := catalogusecase.NewEntityCache[catalogdomain.Club]("clubs",
		cataloginfra.NewRESTCatalog[catalogdomain.Club](client, cataloginfra.ClubRoutes))
	courts := catalogusecase.NewEntityCache[catalogdomain.Court]("courts",
		cataloginfra.NewRESTCatalog[catalogdomain.Court](client, cataloginfra.CourtRoutes))

	bookingFeed := bookinginfra.NewRESTBookingFeed(client)
	bookingStore := bookinguc.NewBookingStore(cfg.Sync.ActiveClub)

	notifRepo, err := repository.NewSQLite(cfg.Storage.NotificationDB)
	if err != nil {
		slog.Error("notification store unavailable", slog.Any("error", err))
		os.Exit(1)
	}
	defer notifRepo.Close()
	notifications := notifuc.NewNotificationStore(notifRepo, 200)
	if err := notifications.Warm(ctx, cfg.Sync.ActiveClub); err != nil {
		slog.Warn("notification warmup failed", slog.Any("error", err))
	}

	dispatcher := realtimeuc.NewDispatcher(bookingStore, notifications, realtimeuc.Hooks{}, cfg.Sync.DebounceWindow)
	defer dispatcher.Close()

	hub := infrastructure.NewHub()
	sink := fanoutSink{dispatcher: dispatcher, hub: hub}

	resync := func(attempt int) {
		slog.Info("resynchronizing after reconnect", slog.Int("attempt", attempt))
		rctx, rcancel := context.WithTimeout(ctx, 30*time.Second)
		defer rcancel()

		courts.Invalidate()
		clubs.Invalidate()
		organizations.Invalidate()

		if cfg.Sync.ActiveClub == "" {
			return
		}
		from := time.Now().Add(-24 * time.Hour)
		to := time.Now().Add(30 * 24 * time.Hour)
		batch, err := bookingFeed.List(rctx, cfg.Sync.ActiveClub, from, to)
		if err != nil {
			slog.Error("booking resync failed", slog.Int("attempt", attempt), slog.Any("error", err))
			return
		}
		bookingStore.ReplaceAll(batch)
		slog.Info("booking resync complete", slog.Int("bookings", len(batch)))
	}

	channel := infrastructure.NewSocketChannel(infrastructure.ChannelOptions{
		URL:         cfg.Upstream.WSURL,
		Token:       cfg.Upstream.Token,
		AutoConnect: cfg.Sync.AutoConnect,
		OnReconnect: resync,
		MinBackoff:  cfg.Sync.MinBackoff,
		MaxBackoff:  cfg.Sync.MaxBackoff,
	}, sink)
	defer channel.Close()

	broker.Start(ctx, sink, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topics)

	var validator auth.TokenValidator
	if cfg.Security.JWTSecret != "" || cfg.Security.JWTPublicKey != "" {
		validator = auth.NewJWTValidatorWithPublicKey(cfg.Security.JWTSecret, cfg.Security.JWTPublicKey)
	} else {
		slog.Warn("no jwt key configured, downstream api runs open")
	}

	e := echo.New()
	e.HideBanner = true
	transport.NewHandler(hub, validator, organizations, clubs, courts, bookingStore, notifications).Register(e)

	go func() {
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", slog.Any("error", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	slog.Info("shutting down")

	dispatcher.Flush()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", slog.Any("error", err))
	}
}
