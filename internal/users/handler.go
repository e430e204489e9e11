// Package users exposes the user directory API. Every route re-checks the
// session itself; a rendered protected page is never trusted in its place.
package users

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"userdir/internal/logger"
	"userdir/internal/middleware"
	"userdir/internal/session"
	"userdir/internal/store"
)

type Handler struct {
	store store.Store
}

func NewHandler(s store.Store) *Handler {
	return &Handler{store: s}
}

func (h *Handler) RegisterRoutes(r gin.IRouter, auth *middleware.Auth) {
	g := r.Group("/api/users")

	g.GET("", auth.Require(h.List))
	g.POST("", auth.Require(h.Create))
	g.DELETE("/:id", auth.Require(h.Delete))
}

type createRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" binding:"required,email"`
}

func (h *Handler) Create(c *gin.Context, claims *session.Claims) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ctx := c.Request.Context()
	u, err := h.store.CreateUser(ctx, strings.TrimSpace(req.Email), strings.TrimSpace(req.Name))
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
			return
		}
		logger.From(ctx).Error("create user failed", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	logger.From(ctx).Info("user created",
		logger.UserID(u.ID),
		logger.Actor(claims.UserID()),
	)
	c.JSON(http.StatusOK, u)
}

// Delete answers 500 for an unknown id as well; the caller only learns the
// deletion failed.
func (h *Handler) Delete(c *gin.Context, claims *session.Claims) {
	ctx := c.Request.Context()
	id := c.Param("id")

	u, err := h.store.DeleteUser(ctx, id)
	if err != nil {
		logger.From(ctx).Error("delete user failed",
			logger.UserID(id),
			logger.Err(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	logger.From(ctx).Info("user deleted",
		logger.UserID(u.ID),
		logger.Actor(claims.UserID()),
	)
	c.JSON(http.StatusOK, u)
}

func (h *Handler) List(c *gin.Context, _ *session.Claims) {
	ctx := c.Request.Context()

	list, err := h.store.ListUsers(ctx)
	if err != nil {
		logger.From(ctx).Error("list users failed", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}
	c.JSON(http.StatusOK, list)
}
