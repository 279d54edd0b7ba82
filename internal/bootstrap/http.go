package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/converti/converti-api/config"
	httpx "github.com/converti/converti-api/internal/http"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// StartHTTPServer binds the listener and serves the API in the background.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) (*http.Server, error) {
	if cfg == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
		appCfg.Sanitize()
	}

	handler := buildHTTPHandler(httpHandlerConfig{
		Logger:   logger,
		Services: routerServices(appCfg, cfg.Services, logger),
		Origins:  appCfg.AllowedOrigins,
	})

	ln, err := net.Listen("tcp", appCfg.HTTP.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", appCfg.HTTP.Addr, err)
	}
	if appCfg.HTTP.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, appCfg.HTTP.MaxConnections)
	}

	return startServer(logger, handler, ln, appCfg.HTTP), nil
}

func routerServices(appCfg *config.AppConfig, services ServiceContainer, logger *slog.Logger) httpx.RouterServices {
	var limiter *rate.Limiter
	if appCfg.HTTP.RateLimitEnabled() {
		limiter = rate.NewLimiter(rate.Limit(appCfg.HTTP.ConvertRateLimit), appCfg.HTTP.ConvertBurst)
	}

	return httpx.RouterServices{
		Conversions:    services.Conversions,
		APIPrefix:      appCfg.APIPrefix,
		AppName:        appCfg.AppName,
		MaxUploadBytes: appCfg.HTTP.MaxUploadBytes,
		ConvertLimiter: limiter,
		Logger:         logger,
	}
}

type httpHandlerConfig struct {
	Logger   *slog.Logger
	Services httpx.RouterServices
	Origins  []string
}

// buildHTTPHandler wraps the router: Recover -> Logging -> CORS -> Router.
func buildHTTPHandler(cfg httpHandlerConfig) http.Handler {
	h := httpx.NewRouter(cfg.Services)
	h = httpx.CORS(cfg.Origins)(h)
	h = httpx.Logging(cfg.Logger)(h)
	h = httpx.Recover(cfg.Logger)(h)
	return h
}

func startServer(logger *slog.Logger, handler http.Handler, ln net.Listener, cfg config.HTTPConfig) *http.Server {
	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(cfg.Context, shutdownWaitTimeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}
	return nil
}
