package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa/internal/domain"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleIngest validates the upload from its header before reading the body.
func (s *Server) handleIngest(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = c.Error(domain.Invalid(domain.ErrInvalidInput,
				fmt.Sprintf("Uploaded file exceeds %d bytes", s.cfg.MaxUploadBytes)))
			return
		}
		_ = c.Error(domain.Invalid(domain.ErrInvalidInput, "Multipart field 'file' is required"))
		return
	}
	if err := s.ingest.Validate(fh.Filename, fh.Size); err != nil {
		_ = c.Error(err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		_ = c.Error(fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		_ = c.Error(fmt.Errorf("failed to read upload: %w", err))
		return
	}

	res, err := s.ingest.Ingest(c.Request.Context(), fh.Filename, data)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ingest complete", "result": res})
}

func (s *Server) handleAsk(c *gin.Context) {
	var req domain.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(domain.Invalid(domain.ErrInvalidInput, "Invalid request body: "+err.Error()))
		return
	}
	ans, err := s.ask.Ask(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

func (s *Server) handleCreateSchema(c *gin.Context) {
	if err := s.schema.Reset(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "schema created/reset"})
}

func (s *Server) handleListDocuments(c *gin.Context) {
	docs, err := s.schema.Documents()
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	id := c.Param("id")
	if err := s.schema.DeleteDocument(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "document deleted", "doc_id": id})
}
