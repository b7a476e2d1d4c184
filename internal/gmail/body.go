package gmail

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrNoBody is returned when a message carries no decodable body data.
var ErrNoBody = errors.New("message has no body data")

// bodyPreference orders the part types searched when the top-level payload
// is a multipart container.
var bodyPreference = []string{"text/html", "text/plain"}

// PrimaryBody returns the decoded primary body of m. The top-level payload
// body wins; multipart messages fall back to the first html, then plain part.
func PrimaryBody(m Message) (string, error) {
	data := m.Payload.Data
	if data == "" {
		for _, mime := range bodyPreference {
			if p, ok := findPart(m.Payload, mime); ok {
				data = p.Data
				break
			}
		}
	}
	if data == "" {
		return "", fmt.Errorf("message %s: %w", m.ID, ErrNoBody)
	}
	decoded, err := DecodeData(data)
	if err != nil {
		return "", fmt.Errorf("message %s: %w", m.ID, err)
	}
	return string(decoded), nil
}

// DecodeData decodes Gmail body data. The API emits base64url, but padded
// and standard alphabets show up in stored fixtures, so all are accepted.
func DecodeData(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	encodings := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		out, err := enc.DecodeString(data)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("decode body: %w", lastErr)
}

func findPart(p Part, mime string) (Part, bool) {
	if strings.EqualFold(p.MimeType, mime) && p.Data != "" {
		return p, true
	}
	for _, child := range p.Parts {
		if found, ok := findPart(child, mime); ok {
			return found, true
		}
	}
	return Part{}, false
}
