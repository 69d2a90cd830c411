// Copyright (c) 2025 BVK Chaitanya

package telegram

import (
	"testing"

	"github.com/go-telegram/bot/models"
)

func TestParseCommand(t *testing.T) {
	m := &models.Message{
		Text: "/status@pairbot now please",
		Entities: []models.MessageEntity{
			{Type: models.MessageEntityTypeBotCommand, Offset: 0, Length: 15},
		},
	}
	name, args, err := parseCommand(m)
	if err != nil {
		t.Fatal(err)
	}
	if name != "status" {
		t.Fatalf("want status, got %q", name)
	}
	if len(args) != 2 || args[0] != "now" || args[1] != "please" {
		t.Fatalf("want [now please], got %v", args)
	}

	plain := &models.Message{Text: "hello"}
	if _, _, err := parseCommand(plain); err == nil {
		t.Fatalf("want error for plain text, got nil")
	}
}

func TestSecretsCheck(t *testing.T) {
	s := &Secrets{BotToken: "token", OwnerID: "owner", OtherIDs: []string{"friend"}}
	if err := s.Check(); err != nil {
		t.Fatal(err)
	}
	if users := s.Users(); len(users) != 2 || users[0] != "owner" {
		t.Fatalf("want [owner friend], got %v", users)
	}

	dup := s.Clone()
	dup.OtherIDs = append(dup.OtherIDs, "owner")
	if err := dup.Check(); err == nil {
		t.Fatalf("want error for repeated owner id, got nil")
	}
	if len(s.OtherIDs) != 1 {
		t.Fatalf("clone must not share other ids")
	}

	if err := (&Secrets{OwnerID: "owner"}).Check(); err == nil {
		t.Fatalf("want error for empty token, got nil")
	}
}
