package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWhatsAppSenderPostsJSON(t *testing.T) {
	var got whatsAppRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender, err := NewWhatsAppSender(srv.URL, "secret", srv.Client())
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if err := sender.Send(context.Background(), Message{To: "+919800000000", Body: "hello"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected auth header: %q", auth)
	}
	if got.To != "919800000000" || got.Type != "text" || got.Text.Body != "hello" || got.MessagingProduct != "whatsapp" {
		t.Fatalf("unexpected payload: %#v", got)
	}
}

func TestWhatsAppSenderReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sender, err := NewWhatsAppSender(srv.URL, "", nil)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	err = sender.Send(context.Background(), Message{To: "919800000000", Body: "hi"})
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWhatsAppSenderValidation(t *testing.T) {
	if _, err := NewWhatsAppSender(" ", "", nil); err == nil {
		t.Fatal("expected empty url to be rejected")
	}
	sender, err := NewWhatsAppSender("http://127.0.0.1:1", "", nil)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if err := sender.Send(context.Background(), Message{Body: "x"}); err == nil {
		t.Fatal("expected empty recipient to be rejected")
	}
}
