package adminhttp

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/example/redisd/internal/blocking"
	"github.com/example/redisd/internal/cluster"
	"github.com/example/redisd/internal/config"
	"github.com/example/redisd/internal/dispatch"
	"github.com/example/redisd/internal/metrics"
	"github.com/example/redisd/internal/pubsub"
	"github.com/example/redisd/internal/repl"
	"github.com/example/redisd/internal/server"
	"github.com/example/redisd/internal/store"
)

// newTestPlane boots a real RESP listener (the admin session store's
// redis backend) plus the admin Gin router in front of it, and returns an
// httptest.Server with a cookie jar already attached.
func newTestPlane(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	cfg := config.Default()
	cfg.Bind = "127.0.0.1"
	cfg.Port = 0
	cfg.AdminPassword = "hunter2"

	ks := store.NewKeyspace(cfg.Databases, store.NoopNotifier{})
	cl := cluster.NewState(cfg.Bind, cfg.Port)
	bc := blocking.NewCoordinator()
	ps := pubsub.NewRegistry()
	ov := config.NewOverlay(cfg)
	log := zap.NewNop()
	d := dispatch.New(ks, cl, bc, ps, repl.NoopSink{}, cfg, ov, log)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := server.New(cfg, ks, cl, bc, ps, d, log)
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	cfg.Port = ln.Addr().(*net.TCPAddr).Port
	m := metrics.New()

	router, err := New(cfg, d, srv, m, log)
	if err != nil {
		t.Fatalf("adminhttp.New: %v", err)
	}

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	client := &http.Client{Jar: jar}
	return ts, client
}

func postJSON(t *testing.T, client *http.Client, url string, body map[string]any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	ts, client := newTestPlane(t)
	resp, err := client.Get(ts.URL + "/admin/info")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLoginWithWrongPasswordRejected(t *testing.T) {
	ts, client := newTestPlane(t)
	resp := postJSON(t, client, ts.URL+"/admin/login", map[string]any{"password": "nope"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLoginThenInfoSucceeds(t *testing.T) {
	ts, client := newTestPlane(t)

	loginResp := postJSON(t, client, ts.URL+"/admin/login", map[string]any{"password": "hunter2"})
	defer loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", loginResp.StatusCode)
	}

	infoResp, err := client.Get(ts.URL + "/admin/info")
	if err != nil {
		t.Fatalf("get info: %v", err)
	}
	defer infoResp.Body.Close()
	if infoResp.StatusCode != http.StatusOK {
		t.Fatalf("info: expected 200, got %d", infoResp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(infoResp.Body).Decode(&body); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if _, ok := body["maxclients"]; !ok {
		t.Fatalf("info body missing maxclients: %+v", body)
	}
}

func TestLoginRejectsUnknownField(t *testing.T) {
	ts, client := newTestPlane(t)
	resp := postJSON(t, client, ts.URL+"/admin/login", map[string]any{"password": "hunter2", "extra": "nope"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown field, got %d", resp.StatusCode)
	}
}

func TestConfigPatchUpdatesOverlay(t *testing.T) {
	ts, client := newTestPlane(t)

	loginResp := postJSON(t, client, ts.URL+"/admin/login", map[string]any{"password": "hunter2"})
	loginResp.Body.Close()

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/admin/config", bytes.NewReader([]byte(`{"maxmemory":2048}`)))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("patch config: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := body["maxmemory"]; got != float64(2048) {
		t.Fatalf("maxmemory = %v, want 2048", got)
	}
}
