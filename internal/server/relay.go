package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"chatproxy/internal/metrics"
	"chatproxy/internal/router"
)

// relay copies the upstream event stream to the client chunk by chunk.
// Once the status line is written, failures can only end the stream.
func (s *Server) relay(c echo.Context, target router.Target) error {
	ctx := c.Request().Context()

	stream, err := s.upstream.Relay(ctx, target)
	if err != nil {
		s.logFault(c, target, err)
		return err
	}
	defer stream.Close()

	metrics.ActiveRelays.Inc()
	defer metrics.ActiveRelays.Dec()

	res := c.Response()
	header := res.Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	chunks := metrics.RelayedChunksTotal.WithLabelValues(target.Platform)
	relayed := 0
	for chunk := range stream.Chunks() {
		if _, err := res.Write(chunk); err != nil {
			metrics.RelayFailuresTotal.WithLabelValues(target.Platform, metrics.ReasonClientGone).Inc()
			s.logger.Info("client went away during relay",
				zap.String("platform", target.Platform),
				zap.Int("chunks", relayed),
				zap.Error(err),
			)
			return nil
		}
		res.Flush()
		relayed++
		chunks.Inc()
	}

	if err := stream.Err(); err != nil {
		reason := metrics.ReasonUpstream
		if ctx.Err() != nil {
			reason = metrics.ReasonClientGone
		}
		metrics.RelayFailuresTotal.WithLabelValues(target.Platform, reason).Inc()
		s.logger.Warn("relay ended before upstream completed",
			zap.String("platform", target.Platform),
			zap.String("model", target.Model),
			zap.String("reason", reason),
			zap.Int("chunks", relayed),
			zap.Error(err),
		)
		return nil
	}

	s.logger.Debug("relay complete",
		zap.String("platform", target.Platform),
		zap.Int("chunks", relayed),
	)
	return nil
}
