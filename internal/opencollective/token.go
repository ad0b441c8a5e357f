package opencollective

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// tokenFile is the on-disk credential format shared with the auth flow.
type tokenFile struct {
	AccessToken string `json:"access_token"`
}

// DefaultTokenPath is the per-user location of the saved token. Only
// the outermost entry points should rely on this default; everything
// else takes an explicit path.
func DefaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "opencollective", "token.json")
	}
	return filepath.Join(home, ".config", "opencollective", "token.json")
}

// LoadToken reads the access token from a token file. An empty path
// means DefaultTokenPath.
func LoadToken(path string) (string, error) {
	if path == "" {
		path = DefaultTokenPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return "", fmt.Errorf("parsing token file %s: %w", path, err)
	}
	if tf.AccessToken == "" {
		return "", fmt.Errorf("token file %s has no access_token", path)
	}
	return tf.AccessToken, nil
}

// SaveToken writes the access token to a token file, creating parent
// directories as needed. The file is user-readable only.
func SaveToken(path, accessToken string) error {
	if path == "" {
		path = DefaultTokenPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	data, err := json.MarshalIndent(tokenFile{AccessToken: accessToken}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}
