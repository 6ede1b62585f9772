package downloads

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DownloadProgress tracks the progress of a download operation
type DownloadProgress struct {
	Downloaded int    `json:"downloaded"`
	Total      int    `json:"total"`
	Percent    int    `json:"percent"`
	Status     string `json:"status"`
	Phase      Phase  `json:"phase"`
}

// Phase names a pipeline step for progress reporting
type Phase string

const (
	PhaseResolve   Phase = "resolve"
	PhaseFetch     Phase = "fetch"
	PhaseCompose   Phase = "compose"
	PhasePersist   Phase = "persist"
	PhaseWallpaper Phase = "wallpaper"
	PhaseDone      Phase = "done"
)

// NewProgress builds a progress update for the fetch phase
func NewProgress(downloaded, total int) DownloadProgress {
	percent := 0
	if total > 0 {
		percent = downloaded * 100 / total
	}
	return DownloadProgress{
		Downloaded: downloaded,
		Total:      total,
		Percent:    percent,
		Status:     fmt.Sprintf("Downloading %d/%d tiles", downloaded, total),
		Phase:      PhaseFetch,
	}
}

// ValidateOutputPath validates that a file path is within the output directory
func ValidateOutputPath(outputDir, filePath string) error {
	if outputDir == "" || filePath == "" {
		return fmt.Errorf("output directory or file path is empty")
	}

	absDir, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for output directory: %w", err)
	}

	absFilePath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for file: %w", err)
	}

	relPath, err := filepath.Rel(absDir, absFilePath)
	if err != nil {
		return fmt.Errorf("failed to get relative path: %w", err)
	}

	if relPath == "." || strings.HasPrefix(relPath, "..") {
		return fmt.Errorf("%s is outside output directory %s", filePath, outputDir)
	}

	return nil
}
