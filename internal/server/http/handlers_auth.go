package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/and161185/analysis-keeper/internal/errs"
	"github.com/gin-gonic/gin"
)

type signupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	Email       string `json:"email"`
	Name        string `json:"name"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func (s *Server) signup(c *gin.Context) {
	var req signupRequest
	if !s.bind(c, &req) {
		return
	}
	if _, err := s.auth.Signup(c.Request.Context(), req.Email, req.Password, req.Name); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "signup complete"})
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !s.bind(c, &req) {
		return
	}
	res, err := s.auth.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		Email:       res.Email,
		Name:        res.Name,
	})
}

func (s *Server) me(c *gin.Context) {
	u, err := s.auth.Me(c.Request.Context(), mustUserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{ID: u.ID.String(), Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt})
}

func (s *Server) changePassword(c *gin.Context) {
	var req passwordRequest
	if !s.bind(c, &req) {
		return
	}
	err := s.auth.ChangePassword(c.Request.Context(), mustUserID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			// the caller is authenticated; only the confirmation was wrong
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "current password is incorrect"})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

func (s *Server) updateName(c *gin.Context) {
	var req nameRequest
	if !s.bind(c, &req) {
		return
	}
	if _, err := s.auth.UpdateName(c.Request.Context(), mustUserID(c), req.Name); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "name updated"})
}
