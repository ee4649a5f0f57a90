package email

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSenderSend(t *testing.T) {
	mock := NewMockProvider(discardLogger())
	s := New(mock, discardLogger(), "ops@example.com")

	if err := s.Send(context.Background(), Report{Subject: "Hello", Status: StatusOK}); err != nil {
		t.Fatal(err)
	}
	sent := mock.Sent()
	if len(sent) != 1 || sent[0].To != "ops@example.com" || sent[0].Subject != "Hello" {
		t.Fatalf("sent = %+v", sent)
	}
	if !strings.Contains(sent[0].HTML, "<h2>Hello</h2>") {
		t.Errorf("body = %s", sent[0].HTML)
	}

	if err := s.Send(context.Background(), Report{}); err == nil {
		t.Error("report without subject should fail")
	}
}

func TestSenderWithoutRecipient(t *testing.T) {
	mock := NewMockProvider(discardLogger())
	s := New(mock, discardLogger(), "")
	if s.Enabled() {
		t.Error("Enabled() = true without recipient")
	}
	if err := s.Send(context.Background(), Report{Subject: "x"}); err != nil {
		t.Fatal(err)
	}
	if len(mock.Sent()) != 0 {
		t.Error("nothing should be sent without a recipient")
	}
}

func TestBrevoProvider(t *testing.T) {
	var got brevoSendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "key" {
			t.Errorf("api-key = %q", r.Header.Get("api-key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"messageId":"<1@brevo>"}`)
	}))
	defer srv.Close()

	b := NewBrevoProvider("key", "bot@example.com", "MTM", discardLogger())
	b.endpoint = srv.URL
	if err := b.Send(context.Background(), "ops@example.com", "Subject", "<p>hi</p>"); err != nil {
		t.Fatal(err)
	}
	if got.Sender.Email != "bot@example.com" || got.Sender.Name != "MTM" || got.To[0].Email != "ops@example.com" || got.HTML != "<p>hi</p>" {
		t.Errorf("request = %+v", got)
	}
}

func TestBrevoProviderClientErrorIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"code":"unauthorized","message":"Key not found"}`)
	}))
	defer srv.Close()

	b := NewBrevoProvider("bad", "bot@example.com", "", discardLogger())
	b.endpoint = srv.URL
	err := b.Send(context.Background(), "ops@example.com", "Subject", "body")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !strings.Contains(err.Error(), "Key not found") {
		t.Errorf("error = %v", err)
	}
}

func TestGmailProvider(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gmail/v1/users/me/messages/send" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var msg struct {
			Raw string `json:"raw"`
		}
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Fatal(err)
		}
		raw = msg.Raw
		io.WriteString(w, `{"id":"m1"}`)
	}))
	defer srv.Close()

	svc, err := gmail.NewService(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	g := NewGmailProvider(svc, "bot@example.com", "MTM bot", discardLogger())
	if err := g.Send(context.Background(), "ops@example.com\r\nBcc: x@y.z", "Día 10", "<p>hi</p>"); err != nil {
		t.Fatal(err)
	}

	decoded, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatal(err)
	}
	msg := string(decoded)
	for _, want := range []string{
		"From: MTM bot <bot@example.com>\r\n",
		"To: ops@example.comBcc: x@y.z\r\n",
		"Subject: =?utf-8?q?D=C3=ADa_10?=\r\n",
		"\r\n\r\n<p>hi</p>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
