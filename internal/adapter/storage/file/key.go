package file

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"healthpay-wallet/internal/service"
)

// LoadOrCreateKey returns the hex AES-256 installation key stored at path,
// generating and persisting a new one (mode 0600) on first use.
func LoadOrCreateKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key := strings.TrimSpace(string(data))
		raw, err := hex.DecodeString(key)
		if err != nil || len(raw) != service.AESKeySize {
			return "", fmt.Errorf("installation key at %s is not a %d-byte hex key", path, service.AESKeySize)
		}
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("reading installation key: %w", err)
	}

	key, err := service.GenerateAESKey()
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(path, []byte(key+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persisting installation key: %w", err)
	}
	return key, nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
