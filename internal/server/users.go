package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/relief-tracker/internal/common"
	"github.com/joseph-ayodele/relief-tracker/internal/entity"
)

func pathYear(c *gin.Context) (int, bool) {
	raw := c.Param("year")
	if err := common.NewValidator().Field("year", raw, common.Year).Err(); err != nil {
		respondErr(c, err)
		return 0, false
	}
	y, _ := strconv.Atoi(raw)
	return y, true
}

func pathMonth(c *gin.Context) (entity.Month, bool) {
	m, err := entity.ParseMonth(c.Param("month"))
	if err != nil {
		respondBadRequest(c, "month must be formatted YYYY-MM")
		return entity.Month{}, false
	}
	return m, true
}

// GET /users/:userId/tax/:year
func (s *Server) getTaxSummary(c *gin.Context) {
	year, ok := pathYear(c)
	if !ok {
		return
	}
	sum, err := s.deps.Tax.Get(c.Request.Context(), c.Param("userId"), year)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// POST /users/:userId/tax/:year/recalculate
func (s *Server) recalculateTax(c *gin.Context) {
	year, ok := pathYear(c)
	if !ok {
		return
	}
	sum, err := s.deps.Tax.Calculate(c.Request.Context(), c.Param("userId"), year)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// GET /users/:userId/insights/:month
func (s *Server) getInsights(c *gin.Context) {
	month, ok := pathMonth(c)
	if !ok {
		return
	}
	doc, err := s.deps.Stored.GetInsights(c.Request.Context(), c.Param("userId"), month)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, "no insights for "+entity.InsightsKey(c.Param("userId"), month))
			return
		}
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// POST /users/:userId/insights/:month answers 204 when the month has no receipts.
func (s *Server) generateInsights(c *gin.Context) {
	month, ok := pathMonth(c)
	if !ok {
		return
	}
	doc, err := s.deps.Insights.Generate(c.Request.Context(), c.Param("userId"), month)
	if err != nil {
		respondErr(c, err)
		return
	}
	if doc == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, doc)
}
