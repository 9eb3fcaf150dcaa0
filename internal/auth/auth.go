package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".session-auditor"
	credentialFile = "credentials"
)

// GetAPIKey retrieves the Gemini API key from available sources.
// Priority order:
//  1. GEMINI_API_KEY environment variable
//  2. Plain credentials file at ~/.session-auditor/credentials (owner-only)
func GetAPIKey() (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}

	key, err := getFromFile()
	if err == nil && key != "" {
		log.Debug().Msg("Using API key from credentials file")
		return key, nil
	}

	log.Error().Err(err).Msg("Failed to retrieve API key")
	return "", fmt.Errorf("API key not found: set GEMINI_API_KEY or create ~/%s/%s", credentialDir, credentialFile)
}

// getFromFile reads the API key from the credentials file under the home
// directory. The file must not be readable by group or world.
func getFromFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	credPath := filepath.Join(home, credentialDir, credentialFile)

	fi, err := os.Stat(credPath)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("credentials file not found at %s", credPath)
	}
	if err != nil {
		return "", err
	}

	if mode := fi.Mode().Perm(); mode&0077 != 0 {
		return "", fmt.Errorf("credentials file %s has permissions %o, want owner-only (0600)", credPath, mode)
	}

	data, err := os.ReadFile(credPath)
	if err != nil {
		return "", fmt.Errorf("read credentials file: %w", err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("credentials file %s is empty", credPath)
	}
	return key, nil
}
