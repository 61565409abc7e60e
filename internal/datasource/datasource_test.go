package datasource

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDispatch(t *testing.T) {
	for _, tc := range []struct {
		location string
		wantHTTP bool
		wantErr  bool
	}{
		{"data/crashes.csv", false, false},
		{"/abs/path.csv", false, false},
		{"https://data.cityofchicago.org/x.csv", true, false},
		{"http://localhost:8080/x.csv", true, false},
		{"  ", false, true},
	} {
		s, err := New(tc.location)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%q: want error", tc.location)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.location, err)
		}
		if _, isHTTP := s.(*HTTP); isHTTP != tc.wantHTTP {
			t.Errorf("%q: http = %v, want %v", tc.location, isHTTP, tc.wantHTTP)
		}
	}
}

func TestFileOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.csv")
	if err := os.WriteFile(path, []byte("A\n1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rc, err := NewFile(path).Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil || string(b) != "A\n1\n" {
		t.Fatalf("read = %q, %v", b, err)
	}
}

func TestFileOpenMissing(t *testing.T) {
	_, err := NewFile(filepath.Join(t.TempDir(), "nope.csv")).Open(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestFileOpenCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFile("/etc/hosts").Open(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestHTTPRetriesThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "payload")
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL, HTTPConfig{MaxRetries: 3})
	h.sleep = func(time.Duration) {}
	rc, err := h.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "payload" || calls != 3 {
		t.Fatalf("body=%q calls=%d", b, calls)
	}
}

func TestHTTPNonRetryableStatusFailsFast(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL, HTTPConfig{MaxRetries: 5})
	h.sleep = func(time.Duration) {}
	if _, err := h.Open(context.Background()); err == nil {
		t.Fatal("want error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestHTTPExhaustsRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL, HTTPConfig{MaxRetries: 2})
	h.sleep = func(time.Duration) {}
	if _, err := h.Open(context.Background()); err == nil {
		t.Fatal("want error")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}
