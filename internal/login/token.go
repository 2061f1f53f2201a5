package login

import (
	"encoding/json"
	"fmt"

	"github.com/jonathan/easy-apply-agent/internal/schemas"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

// EncodeToken serializes a session token for storage.
func EncodeToken(t *types.SessionToken) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot encode nil session token")
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session token: %w", err)
	}
	return data, nil
}

// DecodeToken parses a stored session token, rejecting documents that do not match the schema.
func DecodeToken(data []byte) (*types.SessionToken, error) {
	if err := schemas.ValidateSessionToken(data); err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	var t types.SessionToken
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode session token: %w", err)
	}
	return &t, nil
}
