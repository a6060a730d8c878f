package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func captureServer(t *testing.T, status int) (*httptest.Server, *map[string]any) {
	t.Helper()
	got := map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("body is not JSON: %s", body)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestWebhook_Formats(t *testing.T) {
	msg := Message{Subject: "Scan Report", Body: "File Name: a.txt"}
	tests := []struct {
		kind string
		key  string
	}{
		{"", "body"},
		{TypeGeneric, "body"},
		{TypeDiscord, "embeds"},
		{TypeSlack, "text"},
		{TypeGotify, "message"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			srv, got := captureServer(t, http.StatusNoContent)
			wh := NewWebhookWithHTTPClient(srv.URL, tt.kind, srv.Client(), testLogger())
			if err := wh.Notify(context.Background(), msg); err != nil {
				t.Fatalf("Notify: %v", err)
			}
			if _, ok := (*got)[tt.key]; !ok {
				t.Errorf("payload %v missing %q", *got, tt.key)
			}
		})
	}
}

func TestWebhook_ErrorStatus(t *testing.T) {
	srv, _ := captureServer(t, http.StatusBadGateway)
	wh := NewWebhookWithHTTPClient(srv.URL, TypeSlack, srv.Client(), testLogger())
	if err := wh.Notify(context.Background(), Message{Body: "x"}); err == nil {
		t.Error("expected error for 502")
	}
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Notify(context.Context, Message) error {
	s.calls++
	return s.err
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	a, b := &stubNotifier{err: boom}, &stubNotifier{}
	err := Multi{a, b}.Notify(context.Background(), Message{})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Error("every notifier should be called")
	}
	if err := (Multi{b}).Notify(context.Background(), Message{}); err != nil {
		t.Errorf("err = %v", err)
	}
}
