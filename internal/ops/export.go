package ops

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/hpungsan/revise/internal/config"
	"github.com/hpungsan/revise/internal/db"
	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/prompt"
)

// ExportData returns the whole store wrapped in an export envelope.
func ExportData(ctx context.Context, store db.Backend) (*prompt.Export, error) {
	d, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return prompt.NewExport(d, timeNow()), nil
}

// ExportSession returns an envelope holding one session and its versions.
func ExportSession(ctx context.Context, store db.Backend, sessionID string) (*prompt.Export, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.NewInvalidRequest("sessionId is required")
	}
	d, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	s, ok := d.Sessions[sessionID]
	if !ok {
		return nil, errors.NewNotFound("session", sessionID)
	}

	sub := prompt.NewData(d.Settings)
	sub.Sessions[s.ID] = s
	for _, v := range d.SessionVersions(s) {
		sub.Versions[v.ID] = v
	}
	return prompt.NewExport(sub, timeNow()), nil
}

// Digest returns the sha256 hex digest of the RFC 8785 canonical form of d.
// Stores with equal content have equal digests regardless of map order.
func Digest(d *prompt.Data) (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path      string // optional, default: <baseDir>/exports/<name>-<timestamp>.json
	SessionID string // optional, restricts the export to one session
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Sessions   int    `json:"sessions"`
	Versions   int    `json:"versions"`
	ExportDate string `json:"exportDate"`
	Digest     string `json:"digest"`
}

// Export writes an export envelope to a JSON file.
func Export(ctx context.Context, store db.Backend, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	var (
		env *prompt.Export
		err error
	)
	if strings.TrimSpace(input.SessionID) != "" {
		env, err = ExportSession(ctx, store, input.SessionID)
	} else {
		env, err = ExportData(ctx, store)
	}
	if err != nil {
		return nil, err
	}

	// Determine export path
	exportPath := input.Path
	if exportPath == "" {
		exportPath, err = defaultExportPath(input.SessionID, timeNow())
		if err != nil {
			return nil, err
		}
	}

	// Default paths are checked too; they embed the session id.
	if err := checkFilePath(exportPath, forExport, cfg); err != nil {
		return nil, err
	}

	digest, err := Digest(env.Data)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	payload, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	payload = append(payload, '\n')

	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("export")
	}
	if err := writeFileAtomic(exportPath, payload); err != nil {
		return nil, err
	}

	return &ExportOutput{
		Path:       exportPath,
		Sessions:   len(env.Data.Sessions),
		Versions:   len(env.Data.Versions),
		ExportDate: env.ExportDate,
		Digest:     digest,
	}, nil
}

// writeFileAtomic writes payload to a temp file beside path and renames it
// into place, so an existing file survives a failed write.
func writeFileAtomic(path string, payload []byte) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	// Clean up temp file on failure (original file is preserved)
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(payload); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}

	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// Check if destination is a symlink (os.Rename would follow it)
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export path is a symlink")
	}

	// On Windows, os.Rename fails if the destination exists. Fail and keep
	// the existing file rather than delete then rename.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows yet (choose a new path or delete the existing file)")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}

// defaultExportPath generates the default export path.
// Format: <exportsDir>/revise-<timestamp>.json or session-<id>-<timestamp>.json
func defaultExportPath(sessionID string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}

	timestamp := now.Format("2006-01-02T150405")
	name := "revise"
	if sessionID = strings.TrimSpace(sessionID); sessionID != "" {
		name = "session-" + FileStem(sessionID)
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.json", name, timestamp)), nil
}
