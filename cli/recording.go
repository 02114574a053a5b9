package cli

// This file contains session recording functionality for saving
// session results and artifacts to the history directory.

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/perfgo/testgate/history"
	"github.com/perfgo/testgate/model"
)

func (a *App) recordHistory(h *model.History, runDir, testBinaryPath, stdout, stderr string) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	outputs := []struct {
		typ     model.ArtifactType
		file    string
		content string
	}{
		{model.ArtifactTypeStdout, "stdout.txt", stdout},
		{model.ArtifactTypeStderr, "stderr.txt", stderr},
	}
	for _, o := range outputs {
		if o.content == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(runDir, o.file), []byte(o.content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", o.file, err)
		}
		h.Artifacts = append(h.Artifacts, model.Artifact{
			Type: o.typ,
			Size: uint64(len(o.content)),
			File: o.file,
		})
	}

	// Archive artifacts if they exist
	if err := a.saveArtifacts(runDir, h, testBinaryPath); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to save some artifacts")
		// Don't fail the session on artifact errors
	}

	if err := history.Write(runDir, h); err != nil {
		return err
	}

	a.logger.Debug().Str("dir", runDir).Str("id", h.ID).Msg("Recorded test session")
	return nil
}
