package httpclient

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/torosent/pacefire/internal/config"
)

// maxBodyFileSize caps request bodies read from disk. The body is held in memory
// and shared by every request of the run.
const maxBodyFileSize = 64 << 20

// LoadBody resolves the request payload from an inline body or a body file.
// It returns nil when neither is configured.
func LoadBody(cfg *config.Config) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	bodyFile := strings.TrimSpace(cfg.BodyFile)
	if cfg.Body != "" && bodyFile != "" {
		return nil, errors.New("body and body file cannot both be provided")
	}

	if cfg.Body != "" {
		return []byte(cfg.Body), nil
	}

	if bodyFile == "" {
		return nil, nil
	}

	info, err := os.Stat(bodyFile)
	if err != nil {
		return nil, fmt.Errorf("body file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("body file %q is a directory", bodyFile)
	}
	if info.Size() > maxBodyFileSize {
		return nil, fmt.Errorf("body file %q exceeds %d bytes", bodyFile, maxBodyFileSize)
	}
	data, err := os.ReadFile(bodyFile)
	if err != nil {
		return nil, fmt.Errorf("body file: %w", err)
	}
	return data, nil
}
