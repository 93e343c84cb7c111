package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"this is a longer string", 10, "this is..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestGetJSONSendsIdentityHeaders(t *testing.T) {
	viper.Set("user", "alice")
	viper.Set("token", "tok123")
	t.Cleanup(func() {
		viper.Set("user", "")
		viper.Set("token", "")
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User") != "alice" {
			t.Errorf("X-User = %q, want %q", r.Header.Get("X-User"), "alice")
		}
		if r.Header.Get("Authorization") != "Bearer tok123" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	client := &inauClient{baseURL: srv.URL, http: srv.Client()}
	var resp map[string]string
	if err := client.getJSON("/health", &resp); err != nil {
		t.Fatalf("getJSON failed: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
}

func TestPostJSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["host"] != "lin-cs-01" {
			t.Errorf("host = %v, want lin-cs-01", body["host"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(versionRecord{
			EntityID: "host/1:repo/2",
			BuildID:  7,
			Kind:     "production",
		})
	}))
	defer srv.Close()

	client := &inauClient{baseURL: srv.URL, http: srv.Client()}
	var rec versionRecord
	err := client.postJSON("/api/v1/installations/", map[string]any{"host": "lin-cs-01"}, &rec)
	if err != nil {
		t.Fatalf("postJSON failed: %v", err)
	}
	if rec.EntityID != "host/1:repo/2" || rec.BuildID != 7 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestClientErrorHandling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "lost the race"})
	}))
	defer srv.Close()

	client := &inauClient{baseURL: srv.URL, http: srv.Client()}
	err := client.postJSON("/api/v1/installations/", map[string]any{}, nil)
	if err == nil {
		t.Fatal("expected error for 409 response")
	}
	if !strings.Contains(err.Error(), "409") || !strings.Contains(err.Error(), "lost the race") {
		t.Errorf("error should carry status and body, got: %v", err)
	}
}

func TestVersionRowsMarksActive(t *testing.T) {
	closed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := versionRows([]versionRecord{
		{EntityID: "host/1:repo/2", BuildID: 5, Kind: "production", ValidFrom: closed.AddDate(0, -1, 0), ValidTo: &closed},
		{EntityID: "host/1:repo/2", BuildID: 6, Kind: "production", ValidFrom: closed},
	})
	if rows[0][4] != closed.Format(time.RFC3339) {
		t.Errorf("closed version valid-to = %q", rows[0][4])
	}
	if rows[1][4] != "active" {
		t.Errorf("active version valid-to = %q, want %q", rows[1][4], "active")
	}
}

func TestPrintTableOutput(t *testing.T) {
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })

	printTable([]string{"Facility", "Active"}, [][]string{{"linac", "3"}})

	out := buf.String()
	if !strings.Contains(out, "FACILITY") {
		t.Errorf("headers should be uppercased, got: %q", out)
	}
	if !strings.Contains(out, "linac") {
		t.Errorf("row missing from output: %q", out)
	}
}

func TestCommandTree(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"health", "refs", "builds", "installations", "report"} {
		if !names[want] {
			t.Errorf("missing %q subcommand", want)
		}
	}
}
