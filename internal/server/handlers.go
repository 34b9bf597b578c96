package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/sheetwise-cli/internal/ai"
	"github.com/KaramelBytes/sheetwise-cli/internal/chat"
	"github.com/KaramelBytes/sheetwise-cli/internal/profile"
	"github.com/KaramelBytes/sheetwise-cli/internal/render"
	"github.com/KaramelBytes/sheetwise-cli/internal/session"
	"github.com/KaramelBytes/sheetwise-cli/internal/table"
)

type sheetRequest struct {
	Sheet string `json:"sheet" binding:"required"`
}

type questionRequest struct {
	Question string `json:"question" binding:"required"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		empty *profile.EmptyDatasetError
		gen   *chat.AnswerGenerationError
	)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrEmptyQuestion), errors.Is(err, table.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrNoDataset):
		return http.StatusConflict
	case errors.As(err, &empty):
		return http.StatusUnprocessableEntity
	case errors.As(err, &gen):
		if gen.Timeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	body := gin.H{"error": err.Error()}
	if hint := ai.Hint(err); hint != "" {
		body["hint"] = hint
	}
	c.AbortWithStatusJSON(status, body)
}

func (s *Server) lookup(c *gin.Context) (*session.Session, bool) {
	sess, err := s.store.Get(c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusNotFound, err)
		return nil, false
	}
	return sess, true
}

// createSession handles POST /api/sessions
func (s *Server) createSession(c *gin.Context) {
	sess := s.store.Create()
	c.JSON(http.StatusCreated, gin.H{"id": sess.ID})
}

// deleteSession handles DELETE /api/sessions/:id
func (s *Server) deleteSession(c *gin.Context) {
	if err := s.store.Delete(c.Param("id")); err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}

// uploadFile handles POST /api/sessions/:id/file
func (s *Server) uploadFile(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, http.StatusRequestEntityTooLarge, errors.New("file exceeds the upload limit"))
			return
		}
		s.fail(c, http.StatusBadRequest, errors.New("multipart field 'file' is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	defer f.Close()

	wb, err := table.Load(f, fh.Filename, s.opts.Load)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		s.fail(c, status, err)
		return
	}
	if err := sess.Load(wb); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	if sheet := strings.TrimSpace(c.PostForm("sheet")); sheet != "" {
		if _, err := sess.Select(sheet); err != nil {
			s.fail(c, http.StatusNotFound, err)
			return
		}
	}
	s.log.Info().Str("session", sess.ID).Str("file", fh.Filename).Int("sheets", len(wb.Sheets)).Msg("workbook loaded")
	snap := sess.Snapshot()
	c.JSON(http.StatusOK, gin.H{"id": snap.ID, "source": snap.Source, "active": snap.Active, "sheets": snap.Sheets})
}

// selectSheet handles PUT /api/sessions/:id/sheet
func (s *Server) selectSheet(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	var req sheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, errors.New("body must be {\"sheet\": \"name\"}"))
		return
	}
	ds, err := sess.Select(req.Sheet)
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, session.ErrNoDataset) {
			status = http.StatusConflict
		}
		s.fail(c, status, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": ds.Name, "rows": ds.Len(), "columns": ds.Columns})
}

// getProfile handles GET /api/sessions/:id/profile
func (s *Server) getProfile(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	p, err := sess.Profile(s.opts.Profile)
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, p)
		return
	}
	c.String(http.StatusOK, p.Text())
}

// askQuestion handles POST /api/sessions/:id/questions
func (s *Server) askQuestion(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, errors.New("body must be {\"question\": \"...\"}"))
		return
	}
	answer, err := sess.Ask(c.Request.Context(), s.orch, req.Question)
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer, "turns": len(sess.History())})
}

// getHistory handles GET /api/sessions/:id/history
func (s *Server) getHistory(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": sess.Snapshot().History})
}

// clearHistory handles DELETE /api/sessions/:id/history
func (s *Server) clearHistory(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	sess.Clear()
	c.Status(http.StatusNoContent)
}

// transcriptPage handles GET /sessions/:id
func (s *Server) transcriptPage(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	page, err := render.Transcript(sess.Snapshot())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}
