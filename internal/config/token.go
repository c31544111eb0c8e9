package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Token is the credential file issued by the portal.
type Token struct {
	AccessToken string `json:"access_token"`
}

// LoadToken parses a portal token file.
func LoadToken(path string) (*Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", path, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token file %s has no access_token", path)
	}
	return &token, nil
}
