package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"library/internal/models"
	"library/internal/services"
)

type createCopyRequest struct {
	BookID string                 `json:"book_id" binding:"required"`
	Status *models.BookCopyStatus `json:"status"`
}

func (h *LibraryHandler) createCopy(c *gin.Context) {
	var req createCopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	bookID, ok := parseUUID(c, req.BookID, "book")
	if !ok {
		return
	}

	bookCopy, err := h.inventory.CreateCopy(c.Request.Context(), services.CreateCopyRequest{
		BookID: bookID,
		Status: req.Status,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bookCopy)
}

func (h *LibraryHandler) createCopies(c *gin.Context) {
	bookID, ok := parseUUIDParam(c, "bookId", "book")
	if !ok {
		return
	}
	count, err := strconv.Atoi(c.Query("count"))
	if err != nil {
		badRequest(c, "count must be an integer")
		return
	}

	copies, err := h.inventory.CreateCopies(c.Request.Context(), bookID, count)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": fmt.Sprintf("Created %d copies", len(copies)),
		"copies":  copies,
	})
}

func (h *LibraryHandler) listCopies(c *gin.Context) {
	copies, err := h.inventory.ListCopies(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, copies)
}

func (h *LibraryHandler) summary(c *gin.Context) {
	summary, err := h.inventory.Summary(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *LibraryHandler) getCopy(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id", "book copy")
	if !ok {
		return
	}

	bookCopy, err := h.inventory.GetCopy(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookCopy)
}

type updateCopyRequest struct {
	Status *models.BookCopyStatus `json:"status"`
}

func (h *LibraryHandler) updateCopy(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id", "book copy")
	if !ok {
		return
	}
	var req updateCopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	bookCopy, err := h.inventory.UpdateCopy(c.Request.Context(), id, services.UpdateCopyRequest{Status: req.Status})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookCopy)
}

func (h *LibraryHandler) deleteCopy(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id", "book copy")
	if !ok {
		return
	}

	if err := h.inventory.DeleteCopy(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Book copy deleted successfully"})
}
