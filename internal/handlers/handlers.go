package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"library/internal/models"
	"library/internal/services"
)

type LibraryHandler struct {
	circulation services.CirculationService
	inventory   services.InventoryService
	now         func() time.Time
	sweepLimit  *rate.Limiter
}

type Option func(*LibraryHandler)

// WithClock overrides the wall clock used as the operation time for issue,
// return and the overdue sweep.
func WithClock(now func() time.Time) Option {
	return func(h *LibraryHandler) { h.now = now }
}

// WithSweepRate limits how often the overdue sweep may be triggered.
func WithSweepRate(perMinute int) Option {
	return func(h *LibraryHandler) {
		if perMinute > 0 {
			h.sweepLimit = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
		}
	}
}

func RegisterRoutes(r *gin.Engine, circulation services.CirculationService, inventory services.InventoryService, opts ...Option) {
	h := &LibraryHandler{
		circulation: circulation,
		inventory:   inventory,
		now:         func() time.Time { return time.Now().UTC() },
		sweepLimit:  rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(h)
	}

	r.Use(requestLogger())

	api := r.Group("/api")
	api.GET("/health", h.health)

	authed := api.Group("", requireActor())
	staff := requireRole(models.UserRoleAdmin, models.UserRoleLibrarian)

	// Circulation
	tx := authed.Group("/transactions")
	tx.POST("/issue", staff, h.issue)
	tx.POST("/return", staff, h.returnCopy)
	tx.POST("/renew", h.renew)
	tx.GET("", staff, h.listTransactions)
	tx.GET("/overdue", staff, rateLimit(h.sweepLimit), h.findOverdue)
	tx.GET("/user/:userId", h.listActiveForUser)
	tx.GET("/:id", h.getTransaction)

	// Inventory
	inv := authed.Group("/inventory")
	inv.POST("", staff, h.createCopy)
	inv.POST("/bulk/:bookId", staff, h.createCopies)
	inv.GET("", h.listCopies)
	inv.GET("/summary", h.summary)
	inv.GET("/:id", h.getCopy)
	inv.PATCH("/:id", staff, h.updateCopy)
	inv.DELETE("/:id", staff, h.deleteCopy)
}

func (h *LibraryHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": h.now()})
}
