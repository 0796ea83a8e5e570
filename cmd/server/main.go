// Command txguard-server starts the transaction security HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/txguard/internal/audit"
	"github.com/and161185/txguard/internal/config"
	pkgcrypto "github.com/and161185/txguard/internal/crypto"
	"github.com/and161185/txguard/internal/envelope"
	"github.com/and161185/txguard/internal/limiter"
	"github.com/and161185/txguard/internal/migrate"
	"github.com/and161185/txguard/internal/nonce"
	"github.com/and161185/txguard/internal/repository/postgres"
	"github.com/and161185/txguard/internal/security"
	httpserver "github.com/and161185/txguard/internal/server/http"
	"github.com/and161185/txguard/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

// main loads configuration, runs migrations and serves the API until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		// logger config depends on cfg; fall back to a bare one
		zap.NewExample().Fatal("config", zap.Error(err))
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.Stringer("config", cfg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(cfg *config.Config) *zap.Logger {
	zc := zap.NewProductionConfig()
	if !cfg.Production {
		zc = zap.NewDevelopmentConfig()
	}
	if lvl, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zc.Level = lvl
	}
	logger, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ver, err := migrate.Up(ctx, cfg.DSN, logger)
	if err != nil {
		return err
	}
	logger.Info("schema ready", zap.Int64("version", ver))

	pool, err := postgres.Open(ctx, cfg.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	encKey, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return err
	}
	cipher, err := pkgcrypto.NewCipher(encKey)
	if err != nil {
		return err
	}
	signKey, err := cfg.SigningKey()
	if err != nil {
		return err
	}
	signer, err := pkgcrypto.NewSigner(signKey)
	if err != nil {
		return err
	}

	rec := audit.NewZapRecorder(logger)

	// Repositories
	db := &postgres.DB{Pool: pool}
	userRepo := postgres.NewUserRepo(db)
	cardRepo := postgres.NewCardRepo(db)

	loginLim := limiter.NewPG(pool, cfg.LimiterWindow, cfg.LoginMaxFailures, cfg.LoginBlock)
	reauthLim := limiter.NewPG(pool, cfg.LimiterWindow, cfg.ReauthMaxFailures, cfg.ReauthBlock)

	// Services
	authSvc := service.NewAuthService(userRepo, []byte(cfg.JWTKey), cfg.AccessTTL, loginLim,
		service.WithReauthLimiter(reauthLim))
	cardSvc := service.NewCardService(cardRepo, cipher, logger.Named("cards"),
		service.WithCorruptionPolicy(cfg.CorruptedCardPolicy),
		service.WithAudit(rec))

	// Replay guard owns its sweep loop for the server lifetime.
	guard := nonce.NewGuard(cfg.NonceTTL,
		nonce.WithSweepInterval(cfg.NonceSweepInterval),
		nonce.WithLogger(logger.Named("nonce")))
	go guard.Run(ctx)

	envs := envelope.New(signer, guard,
		envelope.WithRequestWindow(cfg.RequestWindow),
		envelope.WithResponseWindow(cfg.ResponseWindow))

	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	app := httpserver.New(httpserver.Deps{
		Auth:      authSvc,
		Cards:     cardSvc,
		Envelopes: envs,
		Channel: security.NewChannelEnforcer(security.ChannelPolicy{
			Production: cfg.Production,
			TrustProxy: cfg.TrustProxy,
		}, rec),
		StepUp: security.NewStepUp(authSvc, rec, logger.Named("stepup")),
		Audit:  rec,
		Log:    logger.Named("http"),
	})
	router := app.Router()
	if !cfg.TrustProxy {
		if err := router.SetTrustedProxies(nil); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.TLSCert != "" {
			logger.Info("listening (TLS)", zap.String("addr", cfg.Addr))
			errCh <- srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
			return
		}
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			_ = srv.Close()
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
