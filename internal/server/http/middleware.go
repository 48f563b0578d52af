package httpserver

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/and161185/analysis-keeper/internal/errs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logging returns a gin middleware for structured access logging.
func Logging(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// metadata only, bodies may carry user files
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", c.ClientIP()),
		}
		if id, ok := UserIDFromCtx(c.Request.Context()); ok {
			fields = append(fields, zap.String("user_id", id.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("http", fields...)
			return
		}
		log.Info("http", fields...)
	}
}

// Recover returns a gin middleware that turns handler panics into 500s.
func Recover(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("route", c.FullPath()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}

// requireAuth resolves "Authorization: Bearer <JWT>" into a user id stored
// in the request context. The subject must still exist.
func (s *Server) requireAuth(c *gin.Context) {
	raw, err := bearerToken(c.GetHeader("Authorization"))
	if err != nil {
		s.fail(c, err)
		return
	}
	userID, err := s.tokens.Parse(raw)
	if err != nil {
		s.fail(c, err)
		return
	}
	if _, err := s.auth.Me(c.Request.Context(), userID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			err = errs.ErrUnauthorized
		}
		s.fail(c, err)
		return
	}
	c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), userID))
	c.Next()
}

func bearerToken(header string) (string, error) {
	v := strings.TrimSpace(header)
	if v == "" {
		return "", errs.ErrUnauthorized
	}
	if len(v) < 7 || !strings.EqualFold(v[:7], "bearer ") {
		return "", errs.ErrMalformedToken
	}
	t := strings.TrimSpace(v[7:])
	if t == "" {
		return "", errs.ErrMalformedToken
	}
	return t, nil
}
