package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"chatproxy/internal/faults"
	"chatproxy/internal/metrics"
	"chatproxy/internal/router"
)

const unsupportedPlatformLabel = "unsupported"

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePlatforms(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"platforms": s.router.Registry().Endpoints(),
	})
}

func (s *Server) handleChatCompletions(c echo.Context) (err error) {
	platformID := c.Param("platform")
	label, mode := unsupportedPlatformLabel, metrics.ModeBuffered
	defer func() {
		metrics.RequestsTotal.WithLabelValues(label, mode, strconv.Itoa(statusOf(err))).Inc()
	}()

	if !s.router.Registry().Supports(platformID) {
		return faults.PlatformNotSupported(platformID)
	}
	label = platformID

	body, err := readBody(c, s.cfg.Server.MaxBodyBytes)
	if err != nil {
		return err
	}

	target, err := s.router.Normalize(platformID, body, c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return err
	}

	if target.Stream {
		mode = metrics.ModeStream
		return s.relay(c, target)
	}
	return s.forward(c, target)
}

func (s *Server) forward(c echo.Context, target router.Target) error {
	body, err := s.upstream.Forward(c.Request().Context(), target)
	if err != nil {
		s.logFault(c, target, err)
		return err
	}
	return c.JSONBlob(http.StatusOK, body)
}

func readBody(c echo.Context, limit int64) ([]byte, error) {
	req := c.Request()
	defer req.Body.Close()

	reader := io.Reader(req.Body)
	if limit > 0 {
		reader = http.MaxBytesReader(c.Response(), req.Body, limit)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, faults.NewClientError(http.StatusRequestEntityTooLarge, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, faults.NewClientError(http.StatusBadRequest, "failed to read request body")
	}
	return body, nil
}

func (s *Server) logFault(c echo.Context, target router.Target, err error) {
	env := faults.Translate(err)
	s.logger.Warn("upstream call failed",
		zap.String("platform", target.Platform),
		zap.String("model", target.Model),
		zap.Bool("stream", target.Stream),
		zap.Int("status", env.StatusCode),
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		zap.Error(err),
	)
}

func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return faults.Translate(err).StatusCode
}
