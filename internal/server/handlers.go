package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/internal/utils"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/analyzer"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/types"
)

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// AnalyzeResponse wraps the ordered results of one image
type AnalyzeResponse struct {
	Results []types.AnalysisResult `json:"results"`
}

// DescribeResponse carries a generated description
type DescribeResponse struct {
	Description string `json:"description"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	st := s.pipeline.Status(c.Request.Context())
	code := http.StatusOK
	if !st.Running {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, st)
}

// analyze handles POST /v1/analyze
//
// multipart fields: image (file), ocr (bool), hint (string), describe (bool)
func (s *Server) analyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	file, err := c.FormFile("image")
	if err != nil {
		s.logger.Warn("image upload missing", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "image file is required"})
		return
	}
	if !utils.IsImageFile(file.Filename) {
		c.JSON(http.StatusUnsupportedMediaType, ErrorResponse{Error: "unsupported image type"})
		return
	}

	opts := analyzer.AnalyzeOptions{Hint: c.PostForm("hint")}
	if opts.OCR, err = formBool(c, "ocr"); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "ocr must be a boolean"})
		return
	}
	if opts.Describe, err = formBool(c, "describe"); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "describe must be a boolean"})
		return
	}

	tmp, err := os.CreateTemp(s.cfg.UploadDir, "upload-*."+utils.Ext(file.Filename))
	if err != nil {
		s.logger.Error("cannot create upload file", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cannot store upload"})
		return
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if err := c.SaveUploadedFile(file, path); err != nil {
		s.logger.Error("cannot save upload", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cannot store upload"})
		return
	}

	s.logger.Info("analyzing upload", "file", filepath.Base(file.Filename), "size", file.Size, "ocr", opts.OCR)
	results := s.pipeline.AnalyzeWith(c.Request.Context(), path, opts)
	c.JSON(http.StatusOK, AnalyzeResponse{Results: results})
}

// describe handles POST /v1/describe with a VisualFeatures JSON body
func (s *Server) describe(c *gin.Context) {
	var f types.VisualFeatures
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid visual features"})
		return
	}
	text, err := s.pipeline.Describe(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusBadGateway, DescribeResponse{Description: text, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, DescribeResponse{Description: text})
}

func formBool(c *gin.Context, key string) (bool, error) {
	v := c.PostForm(key)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
