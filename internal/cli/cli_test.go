package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeServer returns an httptest server that mimics the coordinator's
// {status, request_id, data, error} envelope for the routes the CLI hits.
func fakeServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func envelope(t *testing.T, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	out, err := json.Marshal(map[string]any{
		"status":     "ok",
		"request_id": "test-request",
		"data":       json.RawMessage(raw),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return out
}

func setupCLI(t *testing.T, srvURL string) {
	t.Helper()
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	client = NewClient(srvURL, logger)
}

func TestClient_GetParsesEnvelope(t *testing.T) {
	srv := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(t, map[string]string{"id": "abc"}))
	})
	setupCLI(t, srv.URL)

	resp, err := client.Get("/api/v1/work/abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if out.ID != "abc" {
		t.Fatalf("id = %q, want abc", out.ID)
	}
}

func TestClient_ErrorEnvelopeReturnsError(t *testing.T) {
	srv := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		out, _ := json.Marshal(map[string]any{
			"status":     "error",
			"request_id": "test-request",
			"error":      map[string]string{"code": "NOT_FOUND", "message": "no such work unit"},
		})
		w.Write(out)
	})
	setupCLI(t, srv.URL)

	_, err := client.Get("/api/v1/work/ghost")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Fatalf("err = %v", err)
	}
}

func TestSubmitCmd_RequiresTask(t *testing.T) {
	srv := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server should not be contacted without --task")
	})
	setupCLI(t, srv.URL)

	cmd := newSubmitCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs(nil)
	if err := cmd.RunE(cmd, nil); err == nil {
		t.Fatal("expected error for missing --task")
	}
}

func TestSubmitCmd_PrintsID(t *testing.T) {
	srv := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write(envelope(t, map[string]string{"id": "work-1"}))
	})
	setupCLI(t, srv.URL)

	cmd := newSubmitCmd()
	cmd.Flags().Set("task", "fetch")
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "work-1" {
		t.Fatalf("output = %q, want work-1", buf.String())
	}
}

func TestCancelCmd_PrintsState(t *testing.T) {
	srv := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/cancel") {
			t.Fatalf("path = %s", r.URL.Path)
		}
		w.Write(envelope(t, map[string]string{"state": "CANCELLED"}))
	})
	setupCLI(t, srv.URL)

	cmd := newCancelCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	if err := cmd.RunE(cmd, []string{"work-1"}); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "CANCELLED" {
		t.Fatalf("output = %q, want CANCELLED", buf.String())
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()
	want := []string{"submit", "status", "list", "cancel", "debug-blocked"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if strings.HasPrefix(c.Use, name) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}
