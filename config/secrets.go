// Copyright (c) 2023 BVK Chaitanya

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bvk/pairbot/pushover"
	"github.com/bvk/pairbot/telegram"
)

// Secrets holds the notification credentials. Secrets are read from a
// separate JSON file so that the run configuration can be shared.
type Secrets struct {
	Telegram *telegram.Secrets `json:"telegram"`
	Pushover *pushover.Keys    `json:"pushover"`
}

func (v *Secrets) Check() error {
	if v.Telegram != nil {
		if err := v.Telegram.Check(); err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
	}
	if v.Pushover != nil {
		if err := v.Pushover.Check(); err != nil {
			return fmt.Errorf("pushover: %w", err)
		}
	}
	return nil
}

func SecretsFromFile(fpath string) (*Secrets, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, fmt.Errorf("could not read secrets file: %w", err)
	}
	s := new(Secrets)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("could not unmarshal secrets: %w", err)
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}
