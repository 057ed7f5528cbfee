package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNotFound is returned by Load when no credential has been persisted yet.
var ErrNotFound = errors.New("no stored credential")

// Store provides scoped read/write of the persisted Credential. The system is
// single-user, so there is at most one credential and Save always overwrites.
type Store interface {
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
}

// FileStore keeps the credential as a small JSON file, the layout the
// original command-line authorizer used (strava_tokens.json).
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (*Credential, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read tokens file: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal(b, &cred); err != nil {
		return nil, fmt.Errorf("parse tokens file: %w", err)
	}
	return &cred, nil
}

func (s *FileStore) Save(_ context.Context, cred *Credential) error {
	b, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	// tokens grant full account access, keep the file private
	if err := os.WriteFile(s.path, b, 0600); err != nil {
		return fmt.Errorf("write tokens file: %w", err)
	}
	return nil
}
