package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"bogus"}, &out, &errOut); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(errOut.String(), "unknown command") {
		t.Fatalf("stderr = %q", errOut.String())
	}
}

func TestRunFingerprint(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(file, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var out, errOut bytes.Buffer
	if code := run([]string{"fingerprint", "-file", file}, &out, &errOut); code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, errOut.String())
	}
	// sha256("0123456789")
	if !strings.Contains(out.String(), "84d89877f0d4041efb6bf91a16f0248f2fd573e6af05c19f96bedb9f882f7882") {
		t.Fatalf("stdout = %q", out.String())
	}
}

func TestRunAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			w.Write([]byte(`{"session_token":"sess"}`))
		case "/algo/blockchain_info":
			r.ParseForm()
			if got := r.PostForm.Get("subject"); got != "asset" {
				t.Errorf("subject = %q, want asset", got)
			}
			var args map[string]any
			if err := json.Unmarshal([]byte(r.PostForm.Get("arguments")), &args); err != nil {
				t.Errorf("arguments not JSON: %v", err)
			} else if args["asset_id"] != float64(42) {
				t.Errorf("arguments = %v", args)
			}
			w.Write([]byte(`{"asset":{"index":42,"params":{"unit-name":"DOC84D8"}}}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfgPath := filepath.Join(t.TempDir(), "config.json")
	cfg := fmt.Sprintf(`{
		"data_dir": %q,
		"public_base_url": "https://sigillo.example",
		"custody": {
			"base_url": %q,
			"email": "ops@example.com",
			"password": "pw",
			"indexer_id": "indexer-1"
		}
	}`, t.TempDir(), srv.URL)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var out, errOut bytes.Buffer
	if code := run([]string{"asset", "-config", cfgPath, "-id", "42"}, &out, &errOut); code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, errOut.String())
	}
	if !strings.Contains(out.String(), "DOC84D8") {
		t.Fatalf("stdout = %q", out.String())
	}

	out.Reset()
	errOut.Reset()
	if code := run([]string{"asset", "-config", cfgPath}, &out, &errOut); code != 2 {
		t.Fatalf("missing selector exit code = %d", code)
	}
}
