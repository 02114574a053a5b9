package cli

// This file contains artifact management functionality for archiving
// test binaries in the history directory.

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/perfgo/testgate/model"
)

// binaryArtifactName names an archived binary after its content hash so
// identical binaries of different sessions are recognizable.
func binaryArtifactName(data []byte, path string) string {
	hashBytes := sha256.Sum256(data)
	hash := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(hashBytes[:]))
	return hash + "." + filepath.Base(path) + ".binary"
}

func (a *App) saveArtifacts(runDir string, history *model.History, testBinaryPath string) error {
	if testBinaryPath == "" {
		return nil
	}

	data, err := os.ReadFile(testBinaryPath)
	if err != nil {
		return fmt.Errorf("failed to read test binary: %w", err)
	}

	binaryFilename := binaryArtifactName(data, testBinaryPath)
	if err := os.WriteFile(filepath.Join(runDir, binaryFilename), data, 0o755); err != nil {
		return fmt.Errorf("failed to write test binary: %w", err)
	}
	history.Artifacts = append(history.Artifacts, model.Artifact{
		Type: model.ArtifactTypeTestBinary,
		Size: uint64(len(data)),
		File: binaryFilename,
	})
	a.logger.Debug().Str("dest", binaryFilename).Msg("Saved test binary")
	return nil
}
