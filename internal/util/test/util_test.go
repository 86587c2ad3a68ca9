package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	util "hintwheel/internal/util"
)

func TestDirExists(t *testing.T) {
	dir := t.TempDir()
	if !util.DirExists(dir) {
		t.Errorf("DirExists(%q) = false, want true", dir)
	}

	missing := filepath.Join(dir, "nope")
	if util.DirExists(missing) {
		t.Errorf("DirExists(%q) = true, want false", missing)
	}

	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	if util.DirExists(file) {
		t.Errorf("DirExists(%q) = true for a regular file, want false", file)
	}
}

func TestFormatUptime(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{45 * time.Second, "45 seconds"},
		{time.Minute + time.Second, "1 minute, 1 second"},
		{5*time.Minute + 30*time.Second, "5 minutes, 30 seconds"},
		{time.Hour + time.Minute + time.Second, "1 hour, 1 minute, 1 second"},
		{26*time.Hour + 2*time.Minute, "26 hours, 2 minutes, 0 seconds"},
	}
	for _, tc := range cases {
		if got := util.FormatUptime(tc.d); got != tc.want {
			t.Errorf("FormatUptime(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestGetEnvString(t *testing.T) {
	t.Setenv("HINTWHEEL_TEST_STR", "value")
	if got := util.GetEnvString("HINTWHEEL_TEST_STR", "fallback"); got != "value" {
		t.Errorf("GetEnvString = %q, want value", got)
	}
	if got := util.GetEnvString("HINTWHEEL_TEST_STR_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetEnvString = %q, want fallback", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("HINTWHEEL_TEST_DUR", "90m")
	if got := util.GetEnvDuration("HINTWHEEL_TEST_DUR", time.Hour); got != 90*time.Minute {
		t.Errorf("GetEnvDuration = %v, want 90m", got)
	}

	t.Setenv("HINTWHEEL_TEST_DUR", "not-a-duration")
	if got := util.GetEnvDuration("HINTWHEEL_TEST_DUR", time.Hour); got != time.Hour {
		t.Errorf("GetEnvDuration on bad value = %v, want fallback 1h", got)
	}

	if got := util.GetEnvDuration("HINTWHEEL_TEST_DUR_UNSET", 2*time.Hour); got != 2*time.Hour {
		t.Errorf("GetEnvDuration on unset = %v, want fallback 2h", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("HINTWHEEL_TEST_INT", "42")
	if got := util.GetEnvInt("HINTWHEEL_TEST_INT", 7); got != 42 {
		t.Errorf("GetEnvInt = %d, want 42", got)
	}

	t.Setenv("HINTWHEEL_TEST_INT", "forty-two")
	if got := util.GetEnvInt("HINTWHEEL_TEST_INT", 7); got != 7 {
		t.Errorf("GetEnvInt on bad value = %d, want fallback 7", got)
	}
}
