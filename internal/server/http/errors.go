package httpserver

import (
	"errors"
	"net/http"

	"github.com/and161185/analysis-keeper/internal/errs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps service errors to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	var (
		te  *errs.TransportError
		mbe *http.MaxBytesError
	)
	switch {
	case errors.As(err, &te):
		return http.StatusBadGateway, "analysis engine unavailable"
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errs.ErrMalformedToken):
		return http.StatusUnauthorized, "malformed token"
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, "access denied"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, "too many attempts"
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge, "file too large"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
