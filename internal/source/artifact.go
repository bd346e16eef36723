package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ArtifactPrefix starts the name of every temporary artifact file.
const ArtifactPrefix = "vchconv-"

// Artifact is a downloaded document held in a temporary file. The caller
// owns it and must call Release once done, usually with defer right after a
// successful fetch.
type Artifact struct {
	// Path is the temporary file location.
	Path string

	// Size is the number of bytes downloaded.
	Size int64

	releaseOnce sync.Once
	releaseErr  error
}

// createArtifact creates a fresh, uniquely named temporary file in dir (the
// system temp directory when dir is empty).
func createArtifact(dir string) (*Artifact, *os.File, error) {
	if dir == "" {
		dir = os.TempDir()
	}

	path := filepath.Join(dir, ArtifactPrefix+uuid.NewString()+".xml")

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temporary file: %w", withoutPath(err))
	}

	return &Artifact{Path: path}, file, nil
}

// Open opens the artifact for reading.
func (a *Artifact) Open() (io.ReadCloser, error) {
	file, err := os.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", withoutPath(err))
	}
	return file, nil
}

// Release deletes the temporary file. It is safe to call more than once.
func (a *Artifact) Release() error {
	if a == nil {
		return nil
	}

	a.releaseOnce.Do(func() {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.releaseErr = fmt.Errorf("failed to remove artifact: %w", err)
		}
	})

	return a.releaseErr
}

// withoutPath drops the file name from filesystem errors so temporary
// locations never reach callers' messages.
func withoutPath(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}

// discard closes and removes a partially written artifact.
func discard(a *Artifact, file *os.File) {
	_ = file.Close()
	_ = a.Release()
}
