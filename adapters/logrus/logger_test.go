package exportlogrus

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_TextLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := New("", "", buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	logger := Wrap(log, "viewer")
	logger.Debugf("hidden %d", 1)
	logger.Infof("fetched %d records", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug suppressed at info level, got %q", out)
	}
	if !strings.Contains(out, "fetched 3 records") || !strings.Contains(out, "component=viewer") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestNew_JSONLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := New("debug", "JSON", buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	Wrap(log, "fetch").Errorf("fetch %s failed", "https://api.example.test")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v (%q)", err, buf.String())
	}
	if entry["level"] != "error" || entry["component"] != "fetch" || entry["msg"] != "fetch https://api.example.test failed" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNew_RejectsBadInput(t *testing.T) {
	if _, err := New("loud", "text", nil); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New("info", "xml", nil); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestLogger_ZeroValueIsSafe(t *testing.T) {
	var logger Logger
	logger.Infof("ignored")
	Wrap(nil, "").Errorf("discarded")
}
