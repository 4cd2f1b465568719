package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type issueRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	BookCopyID string `json:"book_copy_id" binding:"required"`
}

func (h *LibraryHandler) issue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	userID, ok := parseUUID(c, req.UserID, "user")
	if !ok {
		return
	}
	bookCopyID, ok := parseUUID(c, req.BookCopyID, "book copy")
	if !ok {
		return
	}

	txn, err := h.circulation.Issue(c.Request.Context(), userID, bookCopyID, h.now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

type transactionRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
}

func (h *LibraryHandler) returnCopy(c *gin.Context) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	id, ok := parseUUID(c, req.TransactionID, "transaction")
	if !ok {
		return
	}

	result, err := h.circulation.Return(c.Request.Context(), id, h.now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// renew is open to every role, but a student may only renew their own loans.
func (h *LibraryHandler) renew(c *gin.Context) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	id, ok := parseUUID(c, req.TransactionID, "transaction")
	if !ok {
		return
	}

	actor := actorFrom(c)
	if !actor.IsStaff() {
		txn, err := h.circulation.GetTransaction(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		if !actor.CanSee(txn.UserID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "transaction belongs to another user", "kind": "forbidden"})
			return
		}
	}

	txn, err := h.circulation.Renew(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (h *LibraryHandler) listTransactions(c *gin.Context) {
	txns, err := h.circulation.ListTransactions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

// findOverdue runs the overdue sweep and returns the transactions that were
// past due, as they were before the sweep flagged them.
func (h *LibraryHandler) findOverdue(c *gin.Context) {
	txns, err := h.circulation.FindOverdue(c.Request.Context(), h.now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (h *LibraryHandler) listActiveForUser(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "userId", "user")
	if !ok {
		return
	}
	if !actorFrom(c).CanSee(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot view another user's transactions", "kind": "forbidden"})
		return
	}

	txns, err := h.circulation.ListActiveForUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (h *LibraryHandler) getTransaction(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id", "transaction")
	if !ok {
		return
	}

	txn, err := h.circulation.GetTransaction(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !actorFrom(c).CanSee(txn.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "transaction belongs to another user", "kind": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, txn)
}
