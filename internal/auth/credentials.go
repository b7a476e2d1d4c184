// Package auth obtains an authorized Gmail HTTP client from installed-app
// credentials, a persisted token, and (on first run) an interactively
// supplied authorization code.
package auth

import (
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// Scopes requested by linkharvest. Changing them invalidates stored tokens.
var Scopes = []string{gmail.GmailModifyScope}

// LoadConfig reads an installed-app credentials file (the JSON downloaded
// from the Google Cloud console) into an OAuth2 config. The first redirect
// URI is used.
func LoadConfig(path string, scopes ...string) (*oauth2.Config, error) {
	if len(scopes) == 0 {
		scopes = Scopes
	}
	data, err := os.ReadFile(path) // #nosec G304 - path comes from config
	if err != nil {
		return nil, fmt.Errorf("read client secret file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secret file %s: %w", path, err)
	}
	return cfg, nil
}
