package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/and161185/analysis-keeper/internal/errs"
	"github.com/and161185/analysis-keeper/internal/model"
	"github.com/gin-gonic/gin"
)

type recordResponse struct {
	ID            int64     `json:"id"`
	FileName      string    `json:"fileName"`
	FileID        *string   `json:"fileId"`
	Summary       *string   `json:"summary"`
	ThumbnailPath *string   `json:"thumbnailPath"`
	ResultData    string    `json:"resultData"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toRecordResponse(r model.AnalysisRecord) recordResponse {
	return recordResponse{
		ID:            r.ID,
		FileName:      r.FileName,
		FileID:        r.FileID,
		Summary:       r.Summary,
		ThumbnailPath: r.ThumbnailPath,
		ResultData:    r.ResultData,
		CreatedAt:     r.CreatedAt,
	}
}

func (s *Server) upload(c *gin.Context) {
	// multipart framing adds a little on top of the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes+64<<10)

	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.fail(c, mbe)
			return
		}
		s.fail(c, fmt.Errorf("%w: multipart field \"file\" is required", errs.ErrValidation))
		return
	}
	if fh.Size > s.opts.MaxUploadBytes {
		s.fail(c, &http.MaxBytesError{Limit: s.opts.MaxUploadBytes})
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.fail(c, err)
		return
	}

	body, err := s.analysis.Analyze(c.Request.Context(), mustUserID(c), fh.Filename, data)
	if err != nil {
		s.fail(c, err)
		return
	}
	ct := "application/json"
	if !json.Valid(body) {
		ct = "text/plain; charset=utf-8"
	}
	c.Data(http.StatusOK, ct, body)
}

func (s *Server) history(c *gin.Context) {
	recs, err := s.analysis.History(c.Request.Context(), mustUserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]recordResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, toRecordResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getAnalysis(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		s.fail(c, fmt.Errorf("%w: bad analysis id", errs.ErrValidation))
		return
	}
	rec, err := s.analysis.Get(c.Request.Context(), id, mustUserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toRecordResponse(*rec))
}

func (s *Server) chart(c *gin.Context) {
	data, ct, err := s.analysis.Chart(c.Request.Context(), c.Param("fileId"), c.Param("chartType"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.Data(http.StatusOK, ct, data)
}
