package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/use-agent/slotwatch/models"
)

// ArtifactName is the file name of the result snapshot for a run at t.
func ArtifactName(t time.Time) string {
	return "results_" + t.In(models.KST).Format("20060102_150405") + ".json"
}

// WriteArtifact writes r as an indented JSON document into dir and returns
// the file path. Korean text is written as-is, not \u-escaped.
func WriteArtifact(dir string, r *models.RunResult, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}

	path := filepath.Join(dir, ArtifactName(now))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	return path, nil
}
