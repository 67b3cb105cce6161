package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"analytics-proxy/internal/config"
	"analytics-proxy/internal/metrics"
)

func testConfig(timeoutSeconds int) *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{
			TimeoutSeconds:  timeoutSeconds,
			IdleConnections: 10,
		},
	}
}

func TestUpstreamClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("x-api-key = %q, want %q", got, "secret")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewUpstreamClient(testConfig(10), logger, nil)

	header := http.Header{}
	header.Set("x-api-key", "secret")
	resp, err := c.Get(context.Background(), srv.URL+"/test", header)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != `{"status":"ok"}` {
		t.Errorf("body = %q, want %q", string(body), `{"status":"ok"}`)
	}
}

func TestUpstreamClient_Get_Error(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewUpstreamClient(testConfig(1), logger, nil)

	_, err := c.Get(context.Background(), "http://127.0.0.1:1/nonexistent", http.Header{})
	if err == nil {
		t.Fatal("Get() expected error for unreachable host, got nil")
	}
}

func TestUpstreamClient_Get_BadURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewUpstreamClient(testConfig(1), logger, nil)

	_, err := c.Get(context.Background(), "://missing-scheme", http.Header{})
	if err == nil {
		t.Fatal("Get() expected error for malformed URL, got nil")
	}
}

func TestUpstreamClient_Get_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewUpstreamClient(testConfig(0), logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := c.Get(ctx, srv.URL+"/slow", http.Header{})
	if err == nil {
		t.Fatal("Get() expected error for canceled context, got nil")
	}
}

func TestUpstreamClient_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := metrics.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewUpstreamClient(testConfig(10), logger, m)

	resp, err := c.Get(context.Background(), srv.URL, http.Header{})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	_ = resp.Body.Close()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	for _, f := range families {
		if f.GetName() != "analytics_proxy_upstream_responses_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "status_code" && lp.GetValue() == "503" {
					if v := metric.GetCounter().GetValue(); v != 1 {
						t.Errorf("counter value = %v, want 1", v)
					}
					return
				}
			}
		}
	}
	t.Error("expected analytics_proxy_upstream_responses_total with status_code=503")
}

func TestUpstreamClient_CheckRedirects_StopsBeforeNextHop(t *testing.T) {
	var targetHits atomic.Int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		targetHits.Add(1)
	}))
	defer target.Close()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/elsewhere", http.StatusFound)
	}))
	defer origin.Close()

	errBlocked := errors.New("blocked")
	var seen []string

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewUpstreamClient(testConfig(10), logger, nil)
	c.CheckRedirects(func(u *url.URL) error {
		seen = append(seen, u.String())
		return errBlocked
	})

	_, err := c.Get(context.Background(), origin.URL, http.Header{})
	if !errors.Is(err, errBlocked) {
		t.Fatalf("Get() error = %v, want %v", err, errBlocked)
	}
	if len(seen) != 1 || seen[0] != target.URL+"/elsewhere" {
		t.Errorf("checked hops = %v, want [%s/elsewhere]", seen, target.URL)
	}
	if n := targetHits.Load(); n != 0 {
		t.Errorf("redirect target hits = %d, want 0", n)
	}
}

func TestUpstreamClient_CheckRedirects_HopLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, "/again", http.StatusFound)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewUpstreamClient(testConfig(10), logger, nil)
	c.CheckRedirects(func(*url.URL) error { return nil })

	if _, err := c.Get(context.Background(), srv.URL, http.Header{}); err == nil {
		t.Fatal("Get() error = nil, want redirect limit error")
	}
	if n := hits.Load(); n != maxRedirects {
		t.Errorf("server hits = %d, want %d", n, maxRedirects)
	}
}
