package fs

import (
	"testing"
	"time"

	"github.com/winfsp/cgofuse/fuse"
)

func TestRemotePath(t *testing.T) {
	f := &Filesystem{repo: "libs"}

	tests := []struct {
		path string
		want string
	}{
		{"/", "libs/"},
		{"/org", "libs/org"},
		{"/org/acme/lib.jar", "libs/org/acme/lib.jar"},
	}
	for _, tt := range tests {
		if got := f.remotePath(tt.path); got != tt.want {
			t.Errorf("remotePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	want := fuse.NewTimespec(time.Date(2020, 1, 2, 10, 30, 45, 0, time.UTC))

	got, err := parseTimestamp("2020-01-02T10:30:45")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	// Fractional seconds and zone offsets are trailing noise.
	got, err = parseTimestamp("2020-01-02T10:30:45.123+02:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("expected suffix to be ignored, got %+v", got)
	}
}

func TestParseTimestampRejectsMalformed(t *testing.T) {
	if _, err := parseTimestamp("2020-01-02"); err == nil {
		t.Error("expected error for truncated timestamp")
	}
	if _, err := parseTimestamp("not-a-timestamp-at-all"); err == nil {
		t.Error("expected error for garbage timestamp")
	}
	if _, err := parseTimestamp(""); err == nil {
		t.Error("expected error for empty timestamp")
	}
}

func TestFillTimesMapping(t *testing.T) {
	var stat fuse.Stat_t
	err := fillTimes(
		"2020-01-01T00:00:00.000Z",
		"2020-02-02T00:00:00.000Z",
		"2020-03-03T00:00:00.000Z",
		&stat,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := fuse.NewTimespec(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)); stat.Ctim != want {
		t.Errorf("expected change time from created, got %+v", stat.Ctim)
	}
	if want := fuse.NewTimespec(time.Date(2020, 2, 2, 0, 0, 0, 0, time.UTC)); stat.Mtim != want {
		t.Errorf("expected modify time from lastModified, got %+v", stat.Mtim)
	}
	if want := fuse.NewTimespec(time.Date(2020, 3, 3, 0, 0, 0, 0, time.UTC)); stat.Atim != want {
		t.Errorf("expected access time from lastUpdated, got %+v", stat.Atim)
	}
}

func TestFillTimesRejectsBadField(t *testing.T) {
	var stat fuse.Stat_t
	if err := fillTimes("bad", "2020-01-01T00:00:00", "2020-01-01T00:00:00", &stat); err == nil {
		t.Error("expected error for bad created timestamp")
	}
	if err := fillTimes("2020-01-01T00:00:00", "bad", "2020-01-01T00:00:00", &stat); err == nil {
		t.Error("expected error for bad lastModified timestamp")
	}
	if err := fillTimes("2020-01-01T00:00:00", "2020-01-01T00:00:00", "bad", &stat); err == nil {
		t.Error("expected error for bad lastUpdated timestamp")
	}
}
