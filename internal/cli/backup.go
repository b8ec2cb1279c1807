package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backup is the last save code exported by `tyc export`, kept so `tyc
// import` can restore it without the player pasting it back.
type Backup struct {
	Code       string    `json:"code"`
	ExportedAt time.Time `json:"exported_at"`
}

func SaveBackup(dir string, b Backup) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	body, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "backup.json"), body, 0o600)
}

func LoadBackup(dir string) (Backup, error) {
	body, err := os.ReadFile(filepath.Join(dir, "backup.json"))
	if err != nil {
		return Backup{}, err
	}
	var b Backup
	if err := json.Unmarshal(body, &b); err != nil {
		return Backup{}, err
	}
	if strings.TrimSpace(b.Code) == "" {
		return Backup{}, errors.New("backup holds no save code")
	}
	return b, nil
}
