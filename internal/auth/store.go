package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoToken reports that no token has been stored yet.
var ErrNoToken = errors.New("no stored token")

// TokenStore persists the OAuth token between runs.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
}

// FileTokenStore keeps the token as JSON in a single file.
type FileTokenStore struct {
	Path string
}

// tokenFile also carries expiry_date (Unix millis), the field the Node.js
// Google client writes, so token files shared with it keep refreshing.
type tokenFile struct {
	oauth2.Token
	ExpiryDate int64 `json:"expiry_date,omitempty"`
}

// Load returns ErrNoToken when the file does not exist. A file that exists
// but cannot be parsed is an error.
func (s FileTokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrNoToken, s.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", s.Path, err)
	}
	if tf.AccessToken == "" && tf.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s holds no token", s.Path)
	}
	tok := tf.Token
	if tok.Expiry.IsZero() && tf.ExpiryDate > 0 {
		tok.Expiry = time.UnixMilli(tf.ExpiryDate)
	}
	return &tok, nil
}

// Save overwrites the token file with mode 0600.
func (s FileTokenStore) Save(tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("save token: nil token")
	}
	tf := tokenFile{Token: *tok}
	if !tok.Expiry.IsZero() {
		tf.ExpiryDate = tok.Expiry.UnixMilli()
	}
	data, err := json.Marshal(tf)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

func (s FileTokenStore) String() string { return s.Path }

var _ TokenStore = FileTokenStore{}
