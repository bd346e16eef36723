// =============================================================================
// Voucher XML Converter - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the converter:
//   - Output file naming with placeholders
//   - Directory management
//   - Atomic output files (written aside, renamed into place)
//   - Cleanup of stale temporary downloads
//
// =============================================================================

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName expands the placeholders of an output file name.
//
// PARAMETERS:
//   - format: The file name, optionally with placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYY-MM-DD)
//   - ext: The extension appended when the name has none, e.g. ".xlsx".
//
// RETURNS:
//   - The expanded file name.
//
// EXAMPLE:
//   format: "daybook_{date}"
//   ext:    ".xlsx"
//   output: "daybook_2023-04-30.xlsx"
func GenerateOutputFileName(format, ext string) string {
	now := time.Now()

	replacer := strings.NewReplacer(
		"{uuid}", uuid.New().String(),
		"{timestamp}", now.Format("20060102_150405"),
		"{date}", now.Format("2006-01-02"),
	)
	result := replacer.Replace(format)

	if filepath.Ext(result) == "" {
		result += ext
	}

	return result
}

// ReplaceExtension swaps the extension of name for ext.
func ReplaceExtension(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureParentDir creates the directory that will hold path.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// =============================================================================
// ATOMIC OUTPUT
// =============================================================================

// WriteFileAtomic creates path through a temporary sibling file. write
// receives the open temporary file; the file is renamed onto path only when
// write succeeds, and removed otherwise, so a failed run never leaves a
// partial output behind.
//
// PARAMETERS:
//   - path: The final output path. Its directory is created if needed.
//   - write: Fills the file.
//
// RETURNS:
//   - The error from write, or a wrapped filesystem error.
func WriteFileAtomic(path string, write func(f *os.File) error) error {
	if err := EnsureParentDir(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set output file mode: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output file into place: %w", err)
	}

	committed = true
	return nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetFileSize returns the size of a file in bytes.
func GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// CleanStaleFiles removes files in dir whose name starts with prefix and
// that were last modified more than maxAge ago. Subdirectories are not
// visited. Leftovers of a crashed process are the usual target.
//
// PARAMETERS:
//   - dir: The directory to clean.
//   - prefix: Only names with this prefix are considered.
//   - maxAge: The maximum age of files to keep.
//
// RETURNS:
//   - The number of files removed.
//   - An error if the directory cannot be read or a file cannot be removed.
func CleanStaleFiles(dir, prefix string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Removed concurrently.
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("failed to remove stale file: %w", err)
			}
			removed++
		}
	}

	return removed, nil
}
