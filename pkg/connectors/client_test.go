package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_ExecSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exec" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Internal-Token"); got != "secret" {
			t.Errorf("expected internal token, got %q", got)
		}
		var req ExecRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Action != "query" {
			t.Errorf("unexpected request %+v (%v)", req, err)
		}
		resp := ExecResponse{Status: "success", OutputJSON: json.RawMessage(`{"ok":true}`)}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret")
	resp, err := c.Exec(context.Background(), ExecRequest{Tool: Tool, Action: "query"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("expected success, got %s", resp.Status)
	}
}

func TestClient_ToolErrorIsNotTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ExecResponse{Status: "error", Error: "denied", ErrorKind: "auth"})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "").Exec(context.Background(), ExecRequest{Tool: Tool, Action: "query"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.OK() || resp.ErrorKind != "auth" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestClient_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "wrong").Exec(context.Background(), ExecRequest{Tool: Tool}); err == nil {
		t.Fatal("expected error for 401 reply")
	}
}

func TestClient_ConcurrentAccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ExecResponse{Status: "success"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	c.SetTimeout(5 * time.Second)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, _ = c.Exec(context.Background(), ExecRequest{Tool: Tool, Action: "query"})
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
