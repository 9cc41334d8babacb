package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"chatproxy/internal/faults"
)

// handleError renders every failure as a faults.Envelope.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	env := envelopeFor(err)
	if env.StatusCode >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Int("status", env.StatusCode),
			zap.Error(err),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(env.StatusCode)
	} else {
		err = c.JSON(env.StatusCode, env)
	}
	if err != nil {
		s.logger.Error("failed to write error response", zap.Error(err))
	}
}

func envelopeFor(err error) faults.Envelope {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		detail := http.StatusText(he.Code)
		switch msg := he.Message.(type) {
		case string:
			detail = msg
		case nil:
		default:
			detail = fmt.Sprint(msg)
		}
		return faults.Envelope{StatusCode: he.Code, Detail: detail}
	}
	return faults.Translate(err)
}
