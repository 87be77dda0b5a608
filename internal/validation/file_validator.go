package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileValidator provides the input and output checks shared by all commands
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateInputDirectory checks that dir exists and holds at least one file matching pattern.
// Both conditions are fatal for a batch run.
func (v *FileValidator) ValidateInputDirectory(dir string, pattern string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("input_directory_missing",
			slog.String("directory", dir))
		return fmt.Errorf("input directory %s does not exist", dir)
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		v.logger.Error("input_path_not_directory",
			slog.String("path", dir))
		return fmt.Errorf("%s is not a directory", dir)
	}

	if pattern == "" {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return fmt.Errorf("failed to check for files: %w", err)
	}
	if len(matches) == 0 {
		v.logger.Error("no_input_files",
			slog.String("directory", dir),
			slog.String("pattern", pattern))
		return fmt.Errorf("no files matching %s found in %s", pattern, dir)
	}

	v.logger.Debug("input_directory_validated",
		slog.String("directory", dir),
		slog.Int("files_found", len(matches)),
		slog.String("pattern", pattern))

	return nil
}

// ValidateOutputDirectory ensures output directory exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("output_directory_create_failed",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	check, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	check.Close()
	os.Remove(check.Name())

	return nil
}

// ValidateFile checks that path is a non-empty regular file, optionally with one of the given extensions
func (v *FileValidator) ValidateFile(path string, extensions ...string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file %s is empty", path)
	}

	if len(extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(path))
		for _, allowed := range extensions {
			if ext == strings.ToLower(allowed) {
				return nil
			}
		}
		return fmt.Errorf("file %s has unsupported extension %q", path, ext)
	}

	return nil
}
