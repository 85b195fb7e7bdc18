package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"keystore/internal/config"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type Server struct {
	e    *echo.Echo
	addr string
	log  *slog.Logger
}

func New(cfg config.Config, log *slog.Logger, h Handlers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				log.ErrorContext(c.Request().Context(), "request", append(attrs, "err", v.Error)...)
				return nil
			}
			log.InfoContext(c.Request().Context(), "request", attrs...)
			return nil
		},
	}))

	RegisterRoutes(e, h, cfg.JWT)

	return &Server{e: e, addr: cfg.HTTP.Addr(), log: log}
}

// Echo はテストでServeHTTPするため
func (s *Server) Echo() *echo.Echo {
	return s.e
}

// Start はShutdownされるまでブロックする
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.addr)
	if err := s.e.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
