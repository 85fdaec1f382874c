package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webstack/api/handler"
	apiMiddleware "webstack/api/middleware"
	"webstack/api/routes"
	"webstack/config"
	"webstack/internal/entity"
	"webstack/internal/metrics"
	"webstack/internal/repository"
	"webstack/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	settings, err := config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	level, err := logrus.ParseLevel(settings.LogLevel)
	if err != nil {
		logger.WithError(err).Fatal("invalid LOG_LEVEL")
	}
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder, err := metrics.NewRecorder(nil)
	if err != nil {
		logger.WithError(err).Fatal("metrics")
	}

	manager, err := config.NewDatabaseManager(settings, recorder, logger)
	if err != nil {
		logger.WithError(err).Fatal("database configuration")
	}
	if err := manager.Connect(ctx); err != nil {
		logger.WithError(err).Error("database connect failed, will retry on demand")
	}
	client, err := manager.Client("")
	if err != nil {
		logger.WithError(err).Fatal("database client")
	}

	db := repository.NewDatabase(client, "")
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	securityRepo := repository.NewSecurityLogRepository(db)

	codec := service.NewTokenCodec(settings.DeviceCookie(), settings.SessionCookie(), recorder)
	authService := service.NewAuthService(
		userRepo,
		sessionRepo,
		securityRepo,
		service.BcryptPasswordHasher{},
		service.RealClock{},
		settings.Auth(),
		recorder,
		logger,
	)

	if settings.AdminUsername != "" {
		seedCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if _, err := authService.SeedUser(seedCtx, settings.AdminUsername, settings.AdminPassword, entity.UserRoleAdmin); err != nil {
			logger.WithError(err).Error("unable to seed admin user")
		}
		cancel()
	}

	validate := validator.New()
	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.HTTPErrorHandler = apiMiddleware.ErrorHandler()
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.Secure())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status": v.Status,
				"method": v.Method,
				"uri":    v.URI,
				"ip":     v.RemoteIP,
				"req_id": apiMiddleware.RequestIDFromContext(c),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	router := routes.NewRouter(app,
		handler.NewRootHandler(settings.Version),
		handler.NewAuthHandler(authService, validate),
		handler.NewTaskHandler(taskRepo, validate),
		apiMiddleware.AuthMiddleware{Auth: authService},
	)
	router.RegisterRoutes(apiMiddleware.RequestContext(authService, codec, logger))

	server := &http.Server{
		Addr:              settings.Addr(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{"addr": server.Addr, "env": settings.Env}).Info("server started")
		if err := app.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
	}
	if err := manager.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("database close")
	}
	logger.Info("server stopped")
}
