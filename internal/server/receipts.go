package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/relief-tracker/internal/receipts"
)

// GET /receipts/:id
func (s *Server) getReceipt(c *gin.Context) {
	rec, err := s.deps.Receipts.GetReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// POST /receipts/:id/process?force=true runs the pipeline synchronously.
func (s *Server) processReceipt(c *gin.Context) {
	id, err := receipts.ParseID(c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	force := false
	if v := c.Query("force"); v != "" {
		if force, err = strconv.ParseBool(v); err != nil {
			respondBadRequest(c, "force must be a boolean")
			return
		}
	}

	rec, err := s.deps.Process.ProcessReceipt(c.Request.Context(), id, force)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type SetCategoryRequest struct {
	Category string `json:"category"`
}

// PUT /receipts/:id/category
func (s *Server) setCategory(c *gin.Context) {
	var req SetCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, fmt.Sprintf("invalid JSON format: %v", err))
		return
	}
	rec, err := s.deps.Receipts.SetCategory(c.Request.Context(), c.Param("id"), req.Category)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GET /users/:userId/receipts?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *Server) listReceipts(c *gin.Context) {
	recs, err := s.deps.Receipts.ListReceipts(c.Request.Context(), receipts.ListReceiptsRequest{
		UserID:   c.Param("userId"),
		FromDate: c.Query("from"),
		ToDate:   c.Query("to"),
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipts": recs, "count": len(recs)})
}
