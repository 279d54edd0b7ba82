package data

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/converti/converti-api/internal/core"
)

const (
	inputDirName    = "input"
	outputDirName   = "output"
	archiveFileName = "converted.zip"
)

// JobStorage lays out job files as <root>/<id>/{input,output,converted.zip}.
// Each job owns its directory exclusively.
type JobStorage struct {
	root string
}

// NewJobStorage resolves root to an absolute path and creates it.
func NewJobStorage(root string) (*JobStorage, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &JobStorage{root: abs}, nil
}

// Root returns the absolute storage root.
func (s *JobStorage) Root() string { return s.root }

// JobDir returns the directory owned by the job.
func (s *JobStorage) JobDir(id string) string { return filepath.Join(s.root, id) }

// InputDir returns the directory holding the uploads.
func (s *JobStorage) InputDir(id string) string { return filepath.Join(s.JobDir(id), inputDirName) }

// OutputDir returns the directory holding converted files.
func (s *JobStorage) OutputDir(id string) string { return filepath.Join(s.JobDir(id), outputDirName) }

// ArchivePath returns the location of the cached download bundle.
func (s *JobStorage) ArchivePath(id string) string {
	return filepath.Join(s.JobDir(id), archiveFileName)
}

func validJobID(id string) error {
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." {
		return ErrJobIDRequired
	}
	return nil
}

// Prepare creates the input and output directories.
func (s *JobStorage) Prepare(id string) error {
	if err := validJobID(id); err != nil {
		return err
	}
	for _, dir := range []string{s.InputDir(id), s.OutputDir(id)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// SaveUpload streams r to <input>/<name>. name must be a bare file name.
func (s *JobStorage) SaveUpload(id, name string, r io.Reader) (string, error) {
	if err := validJobID(id); err != nil {
		return "", err
	}
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}

	dst := filepath.Join(s.InputDir(id), name)
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	return dst, nil
}

// RemoveJob deletes the whole job tree. A missing tree is not an error.
func (s *JobStorage) RemoveJob(id string) error {
	if err := validJobID(id); err != nil {
		return err
	}
	if err := os.RemoveAll(s.JobDir(id)); err != nil {
		return fmt.Errorf("remove job dir: %w", err)
	}
	return nil
}

// RemoveOutputs deletes the converted files and any cached archive.
func (s *JobStorage) RemoveOutputs(id string) error {
	if err := validJobID(id); err != nil {
		return err
	}
	if err := os.RemoveAll(s.OutputDir(id)); err != nil {
		return fmt.Errorf("remove outputs: %w", err)
	}
	if err := os.Remove(s.ArchivePath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove archive: %w", err)
	}
	return nil
}

// ListJobDirs returns every directory directly under the root.
func (s *JobStorage) ListJobDirs() ([]core.JobDir, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read storage root: %w", err)
	}

	dirs := make([]core.JobDir, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		dirs = append(dirs, core.JobDir{ID: e.Name(), ModTime: info.ModTime()})
	}
	return dirs, nil
}

// BuildArchive writes the named output files into converted.zip.
// The archive is assembled in a temp file and renamed into place so readers
// never observe a partial bundle. A missing output directory yields fs.ErrNotExist.
func (s *JobStorage) BuildArchive(id string, names []string) (string, error) {
	if err := validJobID(id); err != nil {
		return "", err
	}
	outDir := s.OutputDir(id)
	if _, err := os.Stat(outDir); err != nil {
		return "", fmt.Errorf("output dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.JobDir(id), archiveFileName+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create archive temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	zw := zip.NewWriter(tmp)
	for _, name := range names {
		if err := addZipEntry(zw, outDir, name); err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("finalize archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}

	dst := s.ArchivePath(id)
	if err := os.Rename(tmpName, dst); err != nil {
		return "", fmt.Errorf("publish archive: %w", err)
	}
	return dst, nil
}

func addZipEntry(zw *zip.Writer, dir, name string) error {
	if name != filepath.Base(name) {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}

	src, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header %s: %w", name, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("zip copy %s: %w", name, err)
	}
	return nil
}

var _ core.JobStorage = (*JobStorage)(nil)
