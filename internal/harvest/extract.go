package harvest

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/joshsymonds/linkharvest/internal/gmail"
)

// DefaultPattern matches a Udemy mail click-tracking link inside an HTML
// attribute. The URL is the first capture group; the closing quote is not.
const DefaultPattern = `(?i)(https://e2\.udemymail\.com/ls/click[^"\r\n]+)"`

// ErrNoURL is returned when a message body holds no tracking URL.
var ErrNoURL = errors.New("no tracking url found")

// Extractor pulls the first tracking URL out of a message body.
type Extractor struct {
	re *regexp.Regexp
}

func NewExtractor(pattern string) (*Extractor, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile url pattern: %w", err)
	}
	return &Extractor{re: re}, nil
}

// Extract returns capture group 1 when the pattern has groups, otherwise
// the whole match. An empty selection counts as no match.
func (e *Extractor) Extract(body string) (string, error) {
	m := e.re.FindStringSubmatch(body)
	if m == nil {
		return "", ErrNoURL
	}
	url := m[0]
	if len(m) > 1 {
		url = m[1]
	}
	if url == "" {
		return "", ErrNoURL
	}
	return url, nil
}

// ExtractMessage decodes the primary body of msg and extracts its URL.
func (e *Extractor) ExtractMessage(msg gmail.Message) (string, error) {
	body, err := gmail.PrimaryBody(msg)
	if err != nil {
		return "", err
	}
	url, err := e.Extract(body)
	if err != nil {
		return "", fmt.Errorf("message %s: %w", msg.ID, err)
	}
	return url, nil
}
