package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/relief-tracker/internal/entity"
	"github.com/joseph-ayodele/relief-tracker/internal/export"
)

// exportWindow reads ?year= or ?from=&to= (YYYY-MM-DD).
// - only from -> from..today (inclusive)
// - only to   -> beginning..to (inclusive)
// - none      -> all.
func exportWindow(c *gin.Context) (export.Window, bool) {
	var w export.Window
	if y := strings.TrimSpace(c.Query("year")); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil || year < 2000 || year > 2100 {
			respondBadRequest(c, "year must be between 2000 and 2100")
			return w, false
		}
		return export.YearWindow(year), true
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &w.From}, {"to", &w.To}} {
		v := strings.TrimSpace(c.Query(p.name))
		if v == "" {
			continue
		}
		t, err := time.Parse(entity.DateLayout, v)
		if err != nil {
			respondBadRequest(c, p.name+" must be YYYY-MM-DD")
			return w, false
		}
		*p.dst = &t
	}
	return w, true
}

// GET /users/:userId/export.xlsx
func (s *Server) exportXLSX(c *gin.Context) {
	w, ok := exportWindow(c)
	if !ok {
		return
	}
	userID := c.Param("userId")
	data, err := s.deps.Export.ExportReceiptsXLSX(c.Request.Context(), userID, w)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "user_id", userID, "error", err)
		respondErr(c, err)
		return
	}
	attach(c, fmt.Sprintf("receipts_%s.xlsx", userID), export.ContentTypeXLSX, data)
}

// GET /users/:userId/export.csv
func (s *Server) exportCSV(c *gin.Context) {
	w, ok := exportWindow(c)
	if !ok {
		return
	}
	userID := c.Param("userId")
	data, err := s.deps.Export.ExportReceiptsCSV(c.Request.Context(), userID, w)
	if err != nil {
		s.logger.Error("export.csv.failed", "user_id", userID, "error", err)
		respondErr(c, err)
		return
	}
	attach(c, fmt.Sprintf("receipts_%s.csv", userID), export.ContentTypeCSV, data)
}

func attach(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}
