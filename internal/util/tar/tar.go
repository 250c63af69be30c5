// Package tar writes the uncompressed tar archives a patch is made of.
package tar

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Archive is an uncompressed tar file being written.
type Archive struct {
	path string
	file *os.File
	tw   *tar.Writer
}

// Create creates the archive at path, making parent directories as needed.
func Create(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	return &Archive{path: path, file: f, tw: tar.NewWriter(f)}, nil
}

// Path returns the archive file path.
func (a *Archive) Path() string { return a.path }

// AddFile appends the file at src under name, using forward slashes. The
// content is also written to every writer in also (e.g. a hash). It returns
// the number of content bytes written.
func (a *Archive) AddFile(name, src string, also ...io.Writer) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("not a regular file: %s", src)
	}

	header := &tar.Header{
		Name:    filepath.ToSlash(name),
		Mode:    int64(info.Mode().Perm()),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Format:  tar.FormatGNU,
	}
	if err := a.tw.WriteHeader(header); err != nil {
		return 0, fmt.Errorf("failed to write header for %s: %w", name, err)
	}

	dst := io.Writer(a.tw)
	if len(also) > 0 {
		dst = io.MultiWriter(append([]io.Writer{a.tw}, also...)...)
	}
	n, err := io.Copy(dst, f)
	if err != nil {
		return n, fmt.Errorf("failed to write %s: %w", name, err)
	}
	return n, nil
}

// Close finishes the archive and returns its size on disk.
func (a *Archive) Close() (int64, error) {
	if err := a.tw.Close(); err != nil {
		a.file.Close()
		return 0, fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := a.file.Close(); err != nil {
		return 0, err
	}
	info, err := os.Stat(a.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ListFiles returns the regular files below dir as slash-separated paths
// relative to dir, in lexical order.
func ListFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("source directory does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path is not a directory: %s", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
