package harvest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Writer persists the final URL list.
type Writer interface {
	WriteURLs(urls []string) error
}

// FileWriter writes the URLs as a compact JSON array, replacing any previous
// file only once the new content is fully on disk.
type FileWriter struct {
	Path string
}

func (w FileWriter) WriteURLs(urls []string) error {
	clean := strings.TrimSpace(w.Path)
	if clean == "" {
		return fmt.Errorf("output path must not be empty")
	}
	data, err := encodeURLs(urls)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(clean), filepath.Base(clean)+".tmp.")
	if err != nil {
		return fmt.Errorf("create temp output file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, clean); err != nil {
		return fmt.Errorf("replace %s: %w", clean, err)
	}
	committed = true
	return nil
}

func (w FileWriter) String() string { return w.Path }

// encodeURLs renders urls as a JSON array without HTML escaping, so query
// strings keep their literal '&'. A nil slice encodes as [].
func encodeURLs(urls []string) ([]byte, error) {
	if urls == nil {
		urls = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(urls); err != nil {
		return nil, fmt.Errorf("encode urls: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

var _ Writer = FileWriter{}
