package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/matst80/wslink/internal/manager"
	"github.com/matst80/wslink/internal/proto"
	"github.com/matst80/wslink/internal/ratelimit"
	"github.com/matst80/wslink/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommander struct {
	mu          sync.Mutex
	connectErr  error
	connected   []string
	disconnects int
	status      proto.Status
}

func (f *fakeCommander) Connect(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = append(f.connected, id)
	return f.connectErr
}

func (f *fakeCommander) Disconnect(context.Context) error {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
	return nil
}

func (f *fakeCommander) Status() proto.Status { return f.status }

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, proto.Result) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var res proto.Result
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &res)
	}
	return rec, res
}

func TestConnectAndDisconnect(t *testing.T) {
	fc := &fakeCommander{}
	h := New(fc, nil, nil).Handler()

	rec, res := do(t, h, http.MethodPost, "/api/connect/coco")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, res.OK)
	assert.Equal(t, []string{"coco"}, fc.connected)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, res = do(t, h, http.MethodPost, "/api/disconnect")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, res.OK)
	assert.Equal(t, 1, fc.disconnects)
}

func TestConnectErrorsAreStrings(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: x", manager.ErrServerNotFound), http.StatusNotFound},
		{fmt.Errorf("server x: %w", manager.ErrInvalidEndpoint), http.StatusUnprocessableEntity},
		{fmt.Errorf("build: %w", manager.ErrHandshakeEncoding), http.StatusUnprocessableEntity},
		{&manager.HandshakeError{Kind: transport.KindProtocol, Err: errors.New("bad handshake")}, http.StatusBadGateway},
		{manager.ErrSuperseded, http.StatusConflict},
		{fmt.Errorf("%w: down", manager.ErrRegistry), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		fc := &fakeCommander{connectErr: c.err}
		rec, res := do(t, New(fc, nil, nil).Handler(), http.MethodPost, "/api/connect/x")
		assert.Equal(t, c.code, rec.Code, c.err.Error())
		assert.False(t, res.OK)
		assert.Equal(t, c.err.Error(), res.Error)
	}
}

func TestConnectRateLimited(t *testing.T) {
	fc := &fakeCommander{}
	h := New(fc, ratelimit.New(0.001, 0, 1), nil).Handler()

	rec, _ := do(t, h, http.MethodPost, "/api/connect/a")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, res := do(t, h, http.MethodPost, "/api/connect/a")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, res.Error, "too many")
	assert.Equal(t, []string{"a"}, fc.connected)
}

func TestStatus(t *testing.T) {
	fc := &fakeCommander{status: proto.Status{Connected: true, ServerID: "coco", Relayed: 4}}
	rec := httptest.NewRecorder()
	New(fc, nil, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st proto.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "coco", st.ServerID)
	assert.EqualValues(t, 4, st.Relayed)
}

func TestMethodNotAllowed(t *testing.T) {
	fc := &fakeCommander{}
	h := New(fc, nil, nil).Handler()
	for _, c := range []struct{ method, path string }{
		{http.MethodGet, "/api/connect/a"},
		{http.MethodGet, "/api/disconnect"},
		{http.MethodPost, "/api/status"},
	} {
		rec, _ := do(t, h, c.method, c.path)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, c.method+" "+c.path)
	}
	assert.Empty(t, fc.connected)

	rec, _ := do(t, h, http.MethodPost, "/api/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthReadyAndDashboard(t *testing.T) {
	s := New(&fakeCommander{}, nil, func() []string { return []string{"coco"} })
	h := s.Handler()

	rec, _ := do(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	s.SetReady(true)
	rec, _ = do(t, h, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/dashboard")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<li>coco</li>")

	rec, _ = do(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wslink_active_connections")
}
