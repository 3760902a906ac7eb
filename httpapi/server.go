package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"forge.evalgo.org/telemetry"
)

// Server serves the dashboard feed over HTTP.
type Server struct {
	echo *echo.Echo
	feed *Feed
}

// NewServer builds a Server with the standard request-logging and
// panic-recovery middleware, wired to feed.
func NewServer(feed *Feed) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.HideBanner = true

	s := &Server{echo: e, feed: feed}
	e.GET("/status", s.handleStatus)
	e.GET("/events", s.handleEvents)
	return s
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.feed.Snapshot())
}

// handleEvents streams every telemetry event as it arrives, one JSON object
// per "data:" line, until the client disconnects.
func (s *Server) handleEvents(c echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	ch, unsubscribe := s.feed.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(res, "data: %s\n\n", payload); err != nil {
				return err
			}
			res.Flush()
		}
	}
}

// Start runs the server in the foreground on addr; it returns when the
// server stops (error or Shutdown).
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

var _ telemetry.Publisher = (*Feed)(nil)
