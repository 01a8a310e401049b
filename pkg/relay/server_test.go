package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, srv *Server, method, path, auth string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(""))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestServer_Trigger(t *testing.T) {
	for _, path := range []string{"/", "/trigger"} {
		t.Run(path, func(t *testing.T) {
			d := &fakeDispatcher{}
			srv := NewServer(NewTrigger(d, 0, nil), "", nil, nil)

			rec, body := serve(t, srv, http.MethodPost, path, "")

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, true, body["success"])
			assert.Equal(t, "generate-video.yml", body["workflow"])
			assert.Equal(t, "Moumouls/aero-4g-cam", body["repository"])
			assert.Equal(t, "master", body["branch"])
			assert.NotEmpty(t, body["timestamp"])
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, int32(1), d.calls.Load())
		})
	}
}

func TestServer_Preflight(t *testing.T) {
	d := &fakeDispatcher{}
	srv := NewServer(NewTrigger(d, 0, nil), "secret", nil, nil)

	rec, _ := serve(t, srv, http.MethodOptions, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, int32(0), d.calls.Load())
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := NewServer(NewTrigger(&fakeDispatcher{}, 0, nil), "", nil, nil)

	rec, body := serve(t, srv, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", body["error"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Secret(t *testing.T) {
	for _, tc := range []struct {
		description string
		auth        string
		status      int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "Bearer s3cret", http.StatusOK},
		{"bare secret", "s3cret", http.StatusOK},
	} {
		t.Run(tc.description, func(t *testing.T) {
			d := &fakeDispatcher{}
			srv := NewServer(NewTrigger(d, 0, nil), "s3cret", nil, nil)

			rec, body := serve(t, srv, http.MethodPost, "/", tc.auth)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusUnauthorized {
				assert.Equal(t, "Invalid API secret", body["message"])
				assert.Equal(t, int32(0), d.calls.Load())
			}
		})
	}
}

func TestServer_UpstreamError(t *testing.T) {
	d := &fakeDispatcher{err: &UpstreamError{Status: http.StatusUnprocessableEntity, Details: "no ref"}}
	srv := NewServer(NewTrigger(d, 0, nil), "", nil, nil)

	rec, body := serve(t, srv, http.MethodPost, "/", "")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "GitHub API error", body["error"])
	assert.Equal(t, "Failed to trigger workflow", body["message"])
	assert.Equal(t, float64(http.StatusUnprocessableEntity), body["status"])
	assert.Equal(t, "no ref", body["details"])
}

func TestServer_InternalError(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("dial tcp: refused")}
	srv := NewServer(NewTrigger(d, 0, nil), "", nil, nil)

	rec, body := serve(t, srv, http.MethodPost, "/", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["error"])
	assert.Equal(t, "dial tcp: refused", body["message"])
}

func TestServer_InFlight(t *testing.T) {
	d := &fakeDispatcher{entered: make(chan struct{}), release: make(chan struct{})}
	srv := NewServer(NewTrigger(d, 0, nil), "", nil, nil)
	handler := srv.Handler()

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		done <- rec.Code
	}()
	<-d.entered

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(d.release)
	select {
	case code := <-done:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(5 * time.Second):
		t.Fatal("first request never finished")
	}
}

func TestServer_NotFound(t *testing.T) {
	srv := NewServer(NewTrigger(&fakeDispatcher{}, 0, nil), "", nil, nil)
	rec, _ := serve(t, srv, http.MethodPost, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecovery(t *testing.T) {
	engine := gin.New()
	engine.Use(recovery(zap.NewNop(), true))
	engine.GET("/panic", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
