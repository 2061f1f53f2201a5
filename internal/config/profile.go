package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonathan/easy-apply-agent/internal/schemas"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

// LoadProfile reads a candidate profile JSON file and validates it against the profile schema.
func LoadProfile(path string) (*types.CandidateProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	return ParseProfile(data)
}

// ParseProfile validates and decodes a candidate profile document.
func ParseProfile(data []byte) (*types.CandidateProfile, error) {
	if err := schemas.ValidateCandidateProfile(data); err != nil {
		return nil, err
	}
	var p types.CandidateProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile JSON: %w", err)
	}
	return &p, nil
}
