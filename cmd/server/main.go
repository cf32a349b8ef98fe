package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/school-admin/internal/config"
	"github.com/iliyamo/school-admin/internal/database"
	"github.com/iliyamo/school-admin/internal/handler"
	"github.com/iliyamo/school-admin/internal/mail"
	"github.com/iliyamo/school-admin/internal/middleware"
	"github.com/iliyamo/school-admin/internal/notify"
	"github.com/iliyamo/school-admin/internal/queue"
	"github.com/iliyamo/school-admin/internal/repository"
	"github.com/iliyamo/school-admin/internal/router"
	"github.com/iliyamo/school-admin/internal/service"
	"github.com/iliyamo/school-admin/internal/utils"
)

const tokenPurgeInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := config.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBMigrate {
		if err := database.Migrate(cfg, log); err != nil {
			log.WithError(err).Fatal("migrate")
		}
	}
	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		log.WithError(err).Warn("redis unavailable; rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	var workers sync.WaitGroup
	sender := mailSender(ctx, cfg, log, &workers)

	// services
	sessions := &service.SessionIssuer{
		Access:  cfg.AccessToken,
		Refresh: cfg.RefreshToken,
		CSRF:    utils.NewCSRFBinder(cfg.CSRFSecret),
	}
	hasher := utils.NewPasswordHasher(cfg.Argon2.MemoryKB, cfg.Argon2.Time, cfg.Argon2.Parallelism)
	access := &service.AccessControlService{Items: repository.NewAccessControlRepo(db), Log: log}
	mailer := notify.New(cfg, sender, log)
	auth := service.NewAuthService(db, cfg, access, sessions, hasher, mailer, log)
	roles := &service.RoleService{
		DB:     db,
		Roles:  repository.NewRoleRepo(db),
		Users:  repository.NewUserRepo(db),
		Items:  repository.NewAccessControlRepo(db),
		Access: access,
		Log:    log,
	}
	account := &service.AccountService{
		DB:       db,
		Users:    repository.NewUserRepo(db),
		Tokens:   repository.NewTokenRepo(db),
		Roles:    repository.NewRoleRepo(db),
		Sessions: sessions,
		Hasher:   hasher,
		Log:      log,
	}

	// http
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.Metrics())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderContentType, middleware.CSRFHeader},
		AllowCredentials: true,
	}))

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)
	gate := router.NewGate(cfg, access, limiter)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, auth), gate)
	router.RegisterRoles(e, handler.NewRoleHandler(roles), gate)
	router.RegisterAccessControls(e, handler.NewAccessControlHandler(access), gate)
	router.RegisterAccount(e, handler.NewAccountHandler(cfg, account), gate)

	workers.Add(1)
	go func() {
		defer workers.Done()
		purgeExpiredTokens(ctx, auth, log)
	}()

	go func() {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	workers.Wait()
}

// mailSender picks the configured transport.  With amqp the API publishes
// and an in-process consumer relays to SMTP (or the log when no SMTP host
// is configured).
func mailSender(ctx context.Context, cfg config.Config, log *logrus.Logger, workers *sync.WaitGroup) mail.Sender {
	var direct mail.Sender = mail.LogSender{Log: log}
	if cfg.SMTP.Host != "" {
		direct = mail.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Pass, cfg.MailFrom)
	}

	switch cfg.MailTransport {
	case "amqp":
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := queue.StartMailConsumer(ctx, cfg.RabbitURL, direct, log); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("mail consumer stopped")
			}
		}()
		return queue.NewPublisher(cfg.RabbitURL, log)
	case "smtp":
		return direct
	default:
		return mail.LogSender{Log: log}
	}
}

func purgeExpiredTokens(ctx context.Context, auth *service.AuthService, log logrus.FieldLogger) {
	t := time.NewTicker(tokenPurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := auth.PurgeExpiredTokens(ctx)
			if err != nil {
				log.WithError(err).Warn("purge expired refresh tokens")
				continue
			}
			if n > 0 {
				log.WithField("count", n).Info("purged expired refresh tokens")
			}
		}
	}
}
