package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClient_SetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	resp, err := NewClient().Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if !strings.HasPrefix(got, "pollmedian/") {
		t.Errorf("User-Agent = %q, want pollmedian prefix", got)
	}
}

func TestNewClient_KeepsExplicitUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("User-Agent", "custom-agent/2.0")

	resp, err := NewClient().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if got != "custom-agent/2.0" {
		t.Errorf("User-Agent = %q, want custom-agent/2.0", got)
	}
}
