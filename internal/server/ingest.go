package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/relief-tracker/constants"
	"github.com/joseph-ayodele/relief-tracker/internal/ingest"
)

// CreateReceiptRequest registers an original that is already in storage.
type CreateReceiptRequest struct {
	UserID     string `json:"userId"`
	StorageRef string `json:"storageRef"`
	Source     string `json:"source"`
}

// POST /receipts
func (s *Server) createReceipt(c *gin.Context) {
	var req CreateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, fmt.Sprintf("invalid JSON format: %v", err))
		return
	}
	res, err := s.deps.Ingest.Register(c.Request.Context(), strings.TrimSpace(req.UserID), strings.TrimSpace(req.StorageRef), constants.ParseSourceChannel(req.Source))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// POST /receipts/upload (multipart: userId, file)
func (s *Server) uploadReceipt(c *gin.Context) {
	userID, name, data, ok := s.readUpload(c)
	if !ok {
		return
	}
	res, err := s.deps.Ingest.Upload(c.Request.Context(), userID, name, data)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(ingestStatus(res), res)
}

// POST /webhooks/forwarded accepts either a multipart file or a JSON body
// pointing at media the channel adapter already stored.
func (s *Server) forwardedReceipt(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		userID, name, data, ok := s.readUpload(c)
		if !ok {
			return
		}
		res, err := s.deps.Ingest.Forwarded(c.Request.Context(), userID, name, data)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(ingestStatus(res), res)
		return
	}

	var req CreateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, fmt.Sprintf("invalid JSON format: %v", err))
		return
	}
	res, err := s.deps.Ingest.Register(c.Request.Context(), strings.TrimSpace(req.UserID), strings.TrimSpace(req.StorageRef), constants.SourceForwarded)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) readUpload(c *gin.Context) (userID, name string, data []byte, ok bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ingest.MaxFileSize+1<<20)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondBadRequest(c, "no file provided")
		return "", "", nil, false
	}
	defer func() { _ = file.Close() }()

	data, err = io.ReadAll(file)
	if err != nil {
		s.logger.Warn("failed to read upload", "error", err)
		respondBadRequest(c, "failed to read file")
		return "", "", nil, false
	}
	return strings.TrimSpace(c.PostForm("userId")), header.Filename, data, true
}

// ingestStatus is 200 for a deduplicated upload and 201 for a new receipt.
func ingestStatus(res ingest.IngestionResult) int {
	if res.Deduplicated {
		return http.StatusOK
	}
	return http.StatusCreated
}
