package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerServesRecordedMetrics(t *testing.T) {
	RecordOperation("getattr", 0)
	RecordOperation("getattr", -2)
	HandleOpened("file")
	HandleClosed("file")
	SetLocatorCacheSize(3)
	RecordRemoteRequest("storage", "ok", 12*time.Millisecond)
	RecordContentRead(512)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`rtfs_fs_operations_total{op="getattr",result="ok"}`,
		`rtfs_fs_operations_total{op="getattr",result="error"}`,
		`rtfs_open_handles{kind="file"}`,
		"rtfs_locator_cache_entries 3",
		`rtfs_remote_requests_total{op="storage",status="ok"}`,
		"rtfs_content_bytes_read_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics output to contain %q", want)
		}
	}
}
