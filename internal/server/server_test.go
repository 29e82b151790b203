package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/analyzer"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/client"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/types"
)

type fakePipeline struct {
	gotPath    string
	gotOpts    analyzer.AnalyzeOptions
	fileExists bool
	results    []types.AnalysisResult
	desc       string
	descErr    error
	status     client.Status
}

func (f *fakePipeline) AnalyzeWith(_ context.Context, path string, opts analyzer.AnalyzeOptions) []types.AnalysisResult {
	f.gotPath = path
	f.gotOpts = opts
	_, err := os.Stat(path)
	f.fileExists = err == nil
	return f.results
}

func (f *fakePipeline) Describe(_ context.Context, _ types.VisualFeatures) (string, error) {
	return f.desc, f.descErr
}

func (f *fakePipeline) Status(context.Context) client.Status {
	return f.status
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(p Pipeline, secret string) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(p, Config{JWTSecret: secret, MaxUploadBytes: 1 << 20}, logger).Handler()
}

func createMultipartRequest(t *testing.T, field, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func signToken(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "cataloguer",
		"iat": time.Now().Unix(),
		"exp": exp.Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestHealth(t *testing.T) {
	h := newTestServer(&fakePipeline{}, "secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		status client.Status
		want   int
	}{
		{"running", client.Status{Running: true, ModelCount: 2, Message: "service running with 2 models"}, http.StatusOK},
		{"down", client.Status{Message: "service unavailable"}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakePipeline{status: tt.status}, "")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
			assert.Equal(t, tt.want, w.Code)

			var got client.Status
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.status.Message, got.Message)
		})
	}
}

func TestAnalyze(t *testing.T) {
	p := &fakePipeline{results: []types.AnalysisResult{
		{ItemCode: "PA-0425", VisualFeatures: types.VisualFeatures{Color: "green", Motif: "dragon"}},
		types.DegradedResult("PA-0426", "timeout"),
	}}
	h := newTestServer(p, "")

	req := createMultipartRequest(t, "image", "tray.jpg", []byte("fake jpeg"), map[string]string{
		"ocr":      "true",
		"hint":     "green jade pendants",
		"describe": "false",
	})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "PA-0425", resp.Results[0].ItemCode)
	assert.True(t, resp.Results[1].Degraded)

	assert.True(t, p.gotOpts.OCR)
	assert.False(t, p.gotOpts.Describe)
	assert.Equal(t, "green jade pendants", p.gotOpts.Hint)
	assert.True(t, p.fileExists)
	assert.True(t, strings.HasSuffix(p.gotPath, ".jpg"))

	_, err := os.Stat(p.gotPath)
	assert.True(t, os.IsNotExist(err), "upload should be removed after analysis")
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		filename string
		fields   map[string]string
		want     int
	}{
		{"no file", "", "", nil, http.StatusBadRequest},
		{"wrong field", "photo", "tray.jpg", nil, http.StatusBadRequest},
		{"not an image", "image", "notes.txt", nil, http.StatusUnsupportedMediaType},
		{"bad ocr flag", "image", "tray.png", map[string]string{"ocr": "maybe"}, http.StatusBadRequest},
		{"bad describe flag", "image", "tray.png", map[string]string{"describe": "yes please"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePipeline{}
			h := newTestServer(p, "")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, createMultipartRequest(t, tt.field, tt.filename, []byte("x"), tt.fields))
			assert.Equal(t, tt.want, w.Code)
			assert.Empty(t, p.gotPath)
		})
	}
}

func TestDescribe(t *testing.T) {
	body := `{"color":"翠綠","motif":"龍","characteristics":"圓雕"}`

	t.Run("ok", func(t *testing.T) {
		h := newTestServer(&fakePipeline{desc: "一條翠綠的龍"}, "")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/describe", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp DescribeResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "一條翠綠的龍", resp.Description)
		assert.Empty(t, resp.Error)
	})

	t.Run("backend failure returns fallback", func(t *testing.T) {
		h := newTestServer(&fakePipeline{desc: "fallback", descErr: errors.New("model offline")}, "")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/describe", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusBadGateway, w.Code)
		var resp DescribeResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "fallback", resp.Description)
		assert.Contains(t, resp.Error, "model offline")
	})

	t.Run("bad json", func(t *testing.T) {
		h := newTestServer(&fakePipeline{}, "")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/describe", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthRequired(t *testing.T) {
	const secret = "test-secret"
	p := &fakePipeline{status: client.Status{Running: true}}
	h := newTestServer(p, secret)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other", time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, secret, time.Now().Add(-time.Hour)), http.StatusUnauthorized},
		{"valid", "Bearer " + signToken(t, secret, time.Now().Add(time.Hour)), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuthRejectsOtherAlgorithms(t *testing.T) {
	const secret = "test-secret"
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Hour).Unix()})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	h := newTestServer(&fakePipeline{status: client.Status{Running: true}}, secret)
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+s)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(&fakePipeline{}, Config{Addr: "127.0.0.1:0"}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
