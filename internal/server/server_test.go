package server

import (
	"bytes"
	"context"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/KaramelBytes/scoreguard/internal/config"
	"github.com/KaramelBytes/scoreguard/internal/logging"
)

const sheet = "MaHS,Lop,Toan,Van\n" +
	"HS01,10A,7,6\n" +
	"HS02,10A,8,7\n" +
	"HS03,10A,7,6\n" +
	"HS04,10A,8,7\n" +
	"HS05,10B,7,6\n" +
	"HS06,10B,8,7\n" +
	"HS07,10B,7,6\n" +
	"HS08,10B,0,\n"

func init() { gin.SetMode(gin.TestMode) }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(config.Default(), logging.Nop())
}

type field struct{ key, value string }

func upload(t *testing.T, path, filename, content string, fields ...field) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for _, f := range fields {
		require.NoError(t, mw.WriteField(f.key, f.value))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	w := serve(newTestServer(t), httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", gjson.Get(w.Body.String(), "message").String())
}

func TestAnalyze(t *testing.T) {
	w := serve(newTestServer(t), upload(t, "/api/analyze", "scores.csv", sheet))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := w.Body.String()
	assert.NotEmpty(t, gjson.Get(body, "run_id").String())
	assert.Equal(t, 2.0, gjson.Get(body, "threshold").Float())
	assert.Equal(t, int64(1), gjson.Get(body, "anomaly_count").Int())
	assert.Equal(t, "HS08", gjson.Get(body, "anomalies.0.student_id").String())
	assert.Equal(t, `["Toan","Van"]`, gjson.Get(body, "anomalies.0.flagged_subjects").Raw)
	assert.Equal(t, `["10A","10B"]`, gjson.Get(body, "available_classes").Raw)
	assert.Equal(t, int64(8), gjson.Get(body, "filtered.records.#").Int())
	assert.Equal(t, "null", gjson.Get(body, "filtered.records.7.scores.1").Raw)
	assert.Equal(t, int64(1), gjson.Get(body, `class_summary.#(class=="10B").anomalous`).Int())
	assert.Equal(t, int64(0), gjson.Get(body, `class_summary.#(class=="10A").anomalous`).Int())
	assert.InDelta(t, 6.5, gjson.Get(body, "stats.0.mean").Float(), 1e-9)
}

func TestAnalyzeSelection(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, upload(t, "/api/analyze", "scores.csv", sheet,
		field{"classes", "10A"}, field{"subjects", "Toan"}, field{"threshold", "1.5"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Equal(t, `["10A"]`, gjson.Get(body, "classes").Raw)
	assert.Equal(t, `["Toan"]`, gjson.Get(body, "subjects").Raw)
	assert.Equal(t, `["10A","10B"]`, gjson.Get(body, "available_classes").Raw)
	assert.Equal(t, int64(4), gjson.Get(body, "filtered.records.#").Int())

	w = serve(s, upload(t, "/api/analyze", "scores.csv", sheet, field{"classes", "10A, 10B"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(8), gjson.Get(w.Body.String(), "filtered.records.#").Int())
}

func TestAnalyzeErrors(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"no file", upload(t, "/api/analyze", "", ""), http.StatusBadRequest},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("x")), http.StatusBadRequest},
		{"missing class column", upload(t, "/api/analyze", "s.csv", "MaHS,Toan\nA,1\n"), http.StatusBadRequest},
		{"threshold out of range", upload(t, "/api/analyze", "s.csv", sheet, field{"threshold", "9"}), http.StatusBadRequest},
		{"threshold not a number", upload(t, "/api/analyze", "s.csv", sheet, field{"threshold", "abc"}), http.StatusBadRequest},
		{"unknown subject", upload(t, "/api/analyze", "s.csv", sheet, field{"subjects", "Hoa"}), http.StatusBadRequest},
		{"bad delimiter", upload(t, "/api/analyze", "s.csv", sheet, field{"delimiter", "|"}), http.StatusBadRequest},
		{"empty class selection", upload(t, "/api/analyze", "s.csv", sheet, field{"classes", ""}), http.StatusUnprocessableEntity},
		{"unknown class only", upload(t, "/api/analyze", "s.csv", sheet, field{"classes", "12C"}), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, tt.req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, gjson.Get(w.Body.String(), "error").String())
		})
	}
}

func TestUploadLimit(t *testing.T) {
	cfg := config.Default()
	cfg.MaxUploadMB = 1
	s := New(cfg, logging.Nop())
	big := sheet + strings.Repeat("HS99,10A,5,5\n", 100000)
	w := serve(s, upload(t, "/api/analyze", "big.csv", big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestExport(t *testing.T) {
	w := serve(newTestServer(t), upload(t, "/api/analyze/export", "scores.csv", sheet))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Equal(t, `attachment; filename="Students_Anomalies.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "MaHS,Lop,Toan,Van\nHS08,10B,0,\n", w.Body.String())
}

func TestRunShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := config.Default()
	cfg.ServerAddr = addr
	s := New(cfg, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/ping")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
