// Package corpus reads the transcript records produced by the upstream
// download and transcription steps.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrSourceNotFound = errors.New("transcript source not found")
	ErrMalformed      = errors.New("malformed transcript source")
)

const UnknownTitle = "Unknown Title"

// Record is one transcribed video. Text is empty until transcription ran.
type Record struct {
	VideoID    string `json:"video_id"`
	Title      string `json:"video_title"`
	URL        string `json:"video_url"`
	SourceFile string `json:"file_name"`
	Text       string `json:"video_text"`
}

// Load reads the JSON array of records stored at path.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path is from application config
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceNotFound, path, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}

	for i := range records {
		if records[i].Title == "" {
			records[i].Title = UnknownTitle
		}
	}
	return records, nil
}

// Eligible keeps the records that have transcript text, preserving order.
func Eligible(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.Text) != "" {
			out = append(out, r)
		}
	}
	return out
}
