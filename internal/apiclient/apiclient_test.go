package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClient_Get(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotQuery = r.URL.Query().Get("formuliernaam")
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`[{"fileName":"a.csv"}]`)); err != nil {
			t.Error(err)
		}
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "key-1")

	var out []map[string]string
	err := c.Get(context.Background(), "listformoverviews", url.Values{"formuliernaam": {"aanmelden"}}, &out)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if gotPath != "/listformoverviews" {
		t.Errorf("path = %q, want /listformoverviews", gotPath)
	}
	if gotKey != "key-1" {
		t.Errorf("x-api-key = %q, want key-1", gotKey)
	}
	if gotQuery != "aanmelden" {
		t.Errorf("formuliernaam = %q, want aanmelden", gotQuery)
	}
	if diff := cmp.Diff([]map[string]string{{"fileName": "a.csv"}}, out); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Post(t *testing.T) {
	t.Parallel()

	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "key-1")

	if err := c.Post(context.Background(), "resubmit", map[string]string{"reference": "FRM-1"}, nil); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if gotBody["reference"] != "FRM-1" {
		t.Errorf("body reference = %q, want FRM-1", gotBody["reference"])
	}
}

func TestClient_nonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "key-1")

	var out any
	if err := c.Get(context.Background(), "listformoverviews", nil, &out); err == nil {
		t.Error("Get() error = nil, want error for a 502 response")
	}
}

func TestClient_customKeyHeader(t *testing.T) {
	t.Parallel()

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{}`)); err != nil {
			t.Error(err)
		}
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "key-1", WithAPIKeyHeader("Authorization"))

	var out map[string]any
	if err := c.Get(context.Background(), "x", nil, &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "key-1" {
		t.Errorf("Authorization = %q, want key-1", got)
	}
}
