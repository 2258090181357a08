package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(srv *httptest.Server, retries int) *Client {
	return New("test", zerolog.Nop(),
		WithHTTPClient(srv.Client()),
		WithRetry(retries, time.Millisecond))
}

func TestSend_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, 3)
	resp, err := c.Send(context.Background(), http.MethodGet, srv.URL+"/ows?service=WFS", nil, "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("status=%d want 2xx", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Fatalf("body=%q", resp.Body)
	}
	if resp.URL != srv.URL+"/ows?service=WFS" {
		t.Fatalf("url=%q", resp.URL)
	}
}

func TestSend_PostBodyAndContentType(t *testing.T) {
	var gotCT atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT.Store(r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv, 0)
	_, err := c.Send(context.Background(), http.MethodPost, srv.URL, []byte("<wfs:GetFeature/>"), "application/xml")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if ct, _ := gotCT.Load().(string); ct != "application/xml" {
		t.Fatalf("content-type=%q want application/xml", ct)
	}
}

func TestSend_RetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv, 3)
	resp, err := c.Send(context.Background(), http.MethodGet, srv.URL, nil, "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits=%d want 3", hits.Load())
	}
}

func TestSend_ExhaustedRetriesReturnLastResponse(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := newTestClient(srv, 2)
	resp, err := c.Send(context.Background(), http.MethodGet, srv.URL, nil, "")
	if err != nil {
		t.Fatalf("persistent 5xx must come back as a response, not an error: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d want 500", resp.StatusCode)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits=%d want 1 initial + 2 retries", hits.Load())
	}
}

func TestSend_NoRetryOnClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(srv, 3)
	resp, err := c.Send(context.Background(), http.MethodGet, srv.URL, nil, "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", resp.StatusCode)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits=%d; 4xx must not be retried", hits.Load())
	}
}

func TestSend_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(srv, 3)
	if _, err := c.Send(ctx, http.MethodGet, srv.URL, nil, ""); err == nil {
		t.Fatal("expected context error")
	}
}
