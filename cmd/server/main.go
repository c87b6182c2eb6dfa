package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	dochandler "lexflow/internal/document/handler"
	docmetrics "lexflow/internal/document/metrics"
	docservice "lexflow/internal/document/service"
	"lexflow/internal/document/sweeper"
	idhandler "lexflow/internal/identity/handler"
	idservice "lexflow/internal/identity/service"
	jwttoken "lexflow/internal/jwt_token"
	"lexflow/internal/platform/config"
	"lexflow/internal/platform/httpserver"
	"lexflow/internal/platform/logger"
	"lexflow/internal/platform/metrics"
	"lexflow/pkg/platform/audit/publisher"
	"lexflow/pkg/platform/httputil"
	adminmw "lexflow/pkg/platform/middleware/admin"
	"lexflow/pkg/platform/middleware/auth"
	"lexflow/pkg/platform/middleware/metadata"
	"lexflow/pkg/platform/middleware/request"
	"lexflow/pkg/platform/middleware/requesttime"
)

const (
	auditBuffer     = 1024
	shutdownTimeout = 10 * time.Second
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("lexflow stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.close()

	pub := publisher.NewPublisher(infra.auditStore, publisher.WithAsyncBuffer(auditBuffer))
	defer pub.Close()

	jwt := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)
	identity := idservice.New(infra.users, jwt,
		idservice.WithLogger(log),
		idservice.WithAuditPublisher(pub),
		idservice.WithTokenTTL(cfg.TokenTTL),
	)
	documents, err := docservice.New(infra.stores, infra.tx, identity, infra.blobs,
		docservice.WithLogger(log),
		docservice.WithAuditPublisher(pub),
		docservice.WithMetrics(docmetrics.New()),
	)
	if err != nil {
		return err
	}

	docs := dochandler.New(documents, log)
	router := chi.NewRouter()
	router.Use(request.RequestID)
	router.Use(request.Recovery(log))
	router.Use(request.Logger(log))
	router.Use(metadata.ClientMetadata)
	router.Use(requesttime.Middleware)
	router.Use(metrics.NewHTTP().Middleware)

	router.Get("/healthz", healthHandler(infra))
	router.Handle("/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(cfg.AdminAPIToken, log))
		idhandler.New(identity, log).Register(r)
		docs.RegisterAdmin(r)
	})
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(jwttoken.NewMiddlewareAdapter(jwt), log))
		docs.Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)
	expiry := sweeper.NewWorker(documents, infra.locker, cfg.SweepInterval, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting lexflow", "addr", cfg.Addr, "storage", infra.kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := expiry.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

func healthHandler(infra *infrastructure) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := infra.ping(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Storage: infra.kind})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Storage: infra.kind})
	}
}
