package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
)

func TestSearch_RetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"results":[{"url":"http://a"},{"url":"http://b"}]}`)
	}))
	defer srv.Close()

	c := NewClient(logger.NewNop(), srv.URL, 3, time.Millisecond)
	urls, err := c.Search(context.Background(), "apple revenue")
	if err != nil {
		t.Fatalf("a transient 503 must be retried, got: %v", err)
	}
	if len(urls) != 2 || urls[0] != "http://a" {
		t.Fatalf("got %v", urls)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 requests, got %d", calls)
	}
}

func TestSearch_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(logger.NewNop(), srv.URL, 3, time.Millisecond)
	if _, err := c.Search(context.Background(), "q"); err == nil {
		t.Fatalf("expected failure after retries are exhausted")
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestSearch_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(logger.NewNop(), srv.URL, 3, time.Millisecond)
	if _, err := c.Search(context.Background(), "q"); err == nil {
		t.Fatalf("expected error for 400")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("client errors must not be retried, got %d attempts", calls)
	}
}

func TestSearch_KeepsFirstThreeURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results":[{"url":"http://1"},{"url":""},{"url":"http://2"},{"url":"http://3"},{"url":"http://4"}]}`)
	}))
	defer srv.Close()

	c := NewClient(logger.NewNop(), srv.URL, 1, time.Millisecond)
	urls, err := c.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"http://1", "http://2", "http://3"}
	if len(urls) != len(want) {
		t.Fatalf("got %v want %v", urls, want)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("got %v want %v", urls, want)
		}
	}
}
