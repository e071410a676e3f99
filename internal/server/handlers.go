package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/KaramelBytes/scoreguard/internal/analysis"
	"github.com/KaramelBytes/scoreguard/internal/logging"
	"github.com/KaramelBytes/scoreguard/internal/scoretable"
)

// errTooLarge marks uploads above the configured limit.
var errTooLarge = errors.New("upload exceeds size limit")

// analyzeResponse is the JSON body of POST /api/analyze.
type analyzeResponse struct {
	*analysis.Result
	AvailableClasses  []string `json:"available_classes"`
	AvailableSubjects []string `json:"available_subjects"`
	AnomalyCount      int      `json:"anomaly_count"`
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func (s *Server) analyze(c *gin.Context) {
	tbl, res, ok := s.run(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, analyzeResponse{
		Result:            res,
		AvailableClasses:  tbl.Classes(),
		AvailableSubjects: tbl.Subjects,
		AnomalyCount:      res.AnomalyCount(),
	})
}

func (s *Server) export(c *gin.Context) {
	_, res, ok := s.run(c)
	if !ok {
		return
	}
	b, err := res.AnomalyCSV()
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", analysis.ExportFileName))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", b)
}

// run loads the uploaded sheet and analyzes it with the form's selection. On
// failure the error response is already written.
func (s *Server) run(c *gin.Context) (*scoretable.Table, *analysis.Result, bool) {
	log := logging.FromContext(c.Request.Context())

	tbl, sel, err := s.parseRequest(c)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.fail(c, status, err)
		return nil, nil, false
	}

	res, err := analysis.Analyze(tbl, sel)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, analysis.ErrEmptyPopulation) {
			status = http.StatusUnprocessableEntity
		}
		s.fail(c, status, err)
		return nil, nil, false
	}
	res.RunID = uuid.New().String()
	log.Info("Analysis completed",
		"run_id", res.RunID,
		"source", res.Source,
		"students", res.Filtered.Len(),
		"anomalies", res.AnomalyCount(),
		"threshold", res.Threshold,
	)
	return tbl, res, true
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (s *Server) limit() int64 { return int64(s.cfg.MaxUploadMB) << 20 }

// parseRequest reads the multipart form: file, threshold, classes, subjects,
// delimiter, decimal and sheet.
func (s *Server) parseRequest(c *gin.Context) (*scoretable.Table, analysis.Selection, error) {
	var sel analysis.Selection
	limit := s.limit()
	if c.Request.ContentLength > limit {
		return nil, sel, fmt.Errorf("%w (%d MB)", errTooLarge, s.cfg.MaxUploadMB)
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	if err := c.Request.ParseMultipartForm(limit); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, sel, fmt.Errorf("%w (%d MB)", errTooLarge, s.cfg.MaxUploadMB)
		}
		return nil, sel, fmt.Errorf("invalid multipart form: %w", err)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return nil, sel, fmt.Errorf("missing 'file' in form data: %w", err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, sel, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, sel, fmt.Errorf("read upload: %w", err)
	}

	sheetIndex := 0
	sheetName := c.PostForm("sheet")
	if n, err := strconv.Atoi(sheetName); err == nil && n > 0 {
		sheetIndex, sheetName = n, ""
	}
	delimiter := c.PostForm("delimiter")
	if delimiter == "" {
		delimiter = s.cfg.Delimiter
	}
	decimal := c.PostForm("decimal")
	if decimal == "" {
		decimal = s.cfg.Decimal
	}
	opt, err := scoretable.ParseOptions(delimiter, decimal, sheetName, sheetIndex)
	if err != nil {
		return nil, sel, err
	}
	tbl, err := scoretable.Load(fh.Filename, bytes.NewReader(data), opt)
	if err != nil {
		return nil, sel, err
	}

	sel.Threshold = s.cfg.Threshold
	if v := strings.TrimSpace(c.PostForm("threshold")); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, sel, fmt.Errorf("invalid threshold %q", v)
		}
		sel.Threshold = t
	}
	if err := analysis.CheckThresholdRange(sel.Threshold); err != nil {
		return nil, sel, err
	}
	if vals, ok := c.GetPostFormArray("classes"); ok {
		sel.Classes = splitList(vals)
	}
	if vals, ok := c.GetPostFormArray("subjects"); ok {
		sel.Subjects = splitList(vals)
	}
	return tbl, sel, nil
}

// splitList flattens repeated and comma separated form values. The result is
// non-nil even when every value is blank, so an explicit empty selection stays
// distinguishable from an absent one.
func splitList(vals []string) []string {
	out := []string{}
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
