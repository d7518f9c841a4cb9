package artifactory

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(handler http.Handler) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	client := New(Config{
		Host:    ts.URL,
		User:    "alice",
		Token:   "sesame",
		Timeout: 5 * time.Second,
	})
	return client, ts
}

func TestStorage_Directory(t *testing.T) {
	var gotPath, gotUser, gotToken string
	client, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotToken, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"repo": "libs",
			"path": "/org",
			"created": "2020-01-01T10:00:00.000Z",
			"lastModified": "2020-01-02T10:00:00.000Z",
			"lastUpdated": "2020-01-03T10:00:00.000Z",
			"children": [{"uri": "/acme", "folder": true}],
			"uri": "http://example.test/api/storage/libs/org"
		}`))
	}))
	defer ts.Close()

	listing, err := client.Storage(context.Background(), "libs/org")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/api/storage/libs/org" {
		t.Errorf("expected request to /api/storage/libs/org, got %s", gotPath)
	}
	if gotUser != "alice" || gotToken != "sesame" {
		t.Errorf("expected basic auth alice/sesame, got %s/%s", gotUser, gotToken)
	}
	if listing.Dir == nil {
		t.Fatalf("expected directory listing, got %+v", listing)
	}
	if len(listing.Dir.Children) != 1 || listing.Dir.Children[0].Name() != "acme" {
		t.Errorf("unexpected children: %+v", listing.Dir.Children)
	}
}

func TestStorage_NotFound(t *testing.T) {
	client, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":[{"status":404,"message":"Unable to find item"}]}`))
	}))
	defer ts.Close()

	listing, err := client.Storage(context.Background(), "libs/nope")
	if err != nil {
		t.Fatalf("expected in-band error, got transport error: %v", err)
	}
	if listing.Err == nil {
		t.Fatalf("expected error listing, got %+v", listing)
	}
	if listing.Err.Status != 404 {
		t.Errorf("expected status 404, got %d", listing.Err.Status)
	}
}

func TestStorage_MalformedBody(t *testing.T) {
	client, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not an api</html>"))
	}))
	defer ts.Close()

	_, err := client.Storage(context.Background(), "libs/org")
	if err == nil {
		t.Fatal("expected decode error, got nil")
	}
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected decode sentinel, got %v", err)
	}
}

func TestStorage_ServerDown(t *testing.T) {
	client, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	if _, err := client.Storage(context.Background(), "libs/org"); err == nil {
		t.Fatal("expected transport error, got nil")
	}
}

func TestReadRange(t *testing.T) {
	content := []byte("0123456789abcdefghij")
	var gotRange string
	client, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(content[10:17])
	}))
	defer ts.Close()

	data, err := client.ReadRange(context.Background(), ts.URL+"/libs/file.bin", 10, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotRange != "bytes=10-16" {
		t.Errorf("expected Range bytes=10-16, got %q", gotRange)
	}
	// The inclusive range end means the server sends one extra byte, which
	// the client must trim off.
	if !bytes.Equal(data, content[10:16]) {
		t.Errorf("expected %q, got %q", content[10:16], data)
	}
}

func TestReadRange_ShortAtEOF(t *testing.T) {
	client, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("tail"))
	}))
	defer ts.Close()

	data, err := client.ReadRange(context.Background(), ts.URL+"/libs/file.bin", 96, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "tail" {
		t.Errorf("expected short read %q, got %q", "tail", data)
	}
}

func TestReadRange_PastEnd(t *testing.T) {
	client, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	}))
	defer ts.Close()

	data, err := client.ReadRange(context.Background(), ts.URL+"/libs/file.bin", 4096, 64)
	if err != nil {
		t.Fatalf("expected EOF read to succeed, got %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected no bytes, got %d", len(data))
	}
}

func TestReadRange_RemoteError(t *testing.T) {
	client, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"status":401,"message":"Bad credentials"}]}`))
	}))
	defer ts.Close()

	_, err := client.ReadRange(context.Background(), ts.URL+"/libs/file.bin", 0, 16)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected *RemoteError, got %T: %v", err, err)
	}
	if remoteErr.Status != 401 || remoteErr.Message != "Bad credentials" {
		t.Errorf("unexpected remote error: %+v", remoteErr)
	}
}

func TestPing(t *testing.T) {
	var gotPath string
	client, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("OK"))
	}))
	defer ts.Close()

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/api/system/ping" {
		t.Errorf("expected request to /api/system/ping, got %s", gotPath)
	}
}

func TestPing_Unauthorized(t *testing.T) {
	client, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	err := client.Ping(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected *RemoteError, got %T: %v", err, err)
	}
	if remoteErr.Status != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", remoteErr.Status)
	}
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	client := New(Config{Host: "https://example.test/artifactory/"})
	if client.Host() != "https://example.test/artifactory" {
		t.Errorf("expected trailing slash trimmed, got %q", client.Host())
	}
}
