// Copyright (c) 2023 BVK Chaitanya

package pushover

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(&Keys{ApplicationKey: "app", UserKey: "user"})
	if err != nil {
		t.Fatal(err)
	}
	c.messagesURL = server.URL
	return c
}

func TestSendMessage(t *testing.T) {
	at := time.Unix(1700000000, 0)

	var got message
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.Write([]byte(`{"status":1,"request":"abc"}`))
	})

	if err := c.SendMessage(context.Background(), at, "line 1: profit 41.2101"); err != nil {
		t.Fatal(err)
	}
	if got.Token != "app" || got.User != "user" || got.Timestamp != at.Unix() || got.Message != "line 1: profit 41.2101" {
		t.Fatalf("unexpected message %+v", got)
	}
}

func TestSendMessageError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":0,"errors":["user identifier is invalid"]}`))
	})
	if err := c.SendMessage(context.Background(), time.Now(), "hello"); err == nil {
		t.Fatalf("want error, got nil")
	}
}

func TestKeysCheck(t *testing.T) {
	if _, err := New(&Keys{ApplicationKey: "app"}); err == nil {
		t.Fatalf("want error for missing user key, got nil")
	}
}
