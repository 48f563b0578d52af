package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/and161185/analysis-keeper/internal/errs"
	"github.com/and161185/analysis-keeper/internal/limiter"
	"github.com/and161185/analysis-keeper/internal/repository/memory"
	"github.com/and161185/analysis-keeper/internal/service"
	"github.com/and161185/analysis-keeper/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubEngine struct {
	mu    sync.Mutex
	body  []byte
	err   error
	calls int
}

func (e *stubEngine) Submit(_ context.Context, _ []byte, _ string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.body, e.err
}

func (e *stubEngine) Chart(_ context.Context, fileID, chartType string) ([]byte, string, error) {
	if e.err != nil {
		return nil, "", e.err
	}
	return []byte("PNG:" + fileID + ":" + chartType), "image/png", nil
}

type harness struct {
	t       *testing.T
	handler http.Handler
	engine  *stubEngine
	history *memory.HistoryRepo
	tokens  *token.Service
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	users := memory.NewUserRepo()
	hist := memory.NewHistoryRepo()
	tokens := token.NewService([]byte("test-key"), time.Hour)
	eng := &stubEngine{body: []byte(`{"file_id":"f-1","summary":"ok","charts":[{"url":"http://t/1.png"}]}`)}

	authSvc := service.NewAuthService(users, tokens, limiter.Nop{})
	anSvc := service.NewAnalysisService(eng, hist, log)
	srv := New(authSvc, anSvc, tokens, log, opts)
	return &harness{t: t, handler: srv.Handler(), engine: eng, history: hist, tokens: tokens}
}

func (h *harness) do(method, path string, body any, bearer string) *httptest.ResponseRecorder {
	h.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func (h *harness) upload(bearer, fileName string, content []byte) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(h.t, err)
	_, err = fw.Write(content)
	require.NoError(h.t, err)
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analysis/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

// signupAndLogin registers email and returns an access token.
func (h *harness) signupAndLogin(email string) string {
	h.t.Helper()
	w := h.do(http.MethodPost, "/api/auth/signup", map[string]string{"email": email, "password": "pw", "name": "N"}, "")
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": "pw"}, "")
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	var res loginResponse
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotEmpty(h.t, res.AccessToken)
	return res.AccessToken
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

var errTransport = &errs.TransportError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("upstream down")}
