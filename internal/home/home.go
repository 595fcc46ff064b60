package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the folio home directory.
	DefaultDirName = ".folio"

	// LibraryDirName is the subdirectory holding imported documents.
	LibraryDirName = "library"

	// PositionsFileName is the reading-position database file.
	PositionsFileName = "positions.db"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the folio home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.folio).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// LibraryPath returns the path to the library directory.
func (d *Dir) LibraryPath() string {
	return filepath.Join(d.path, LibraryDirName)
}

// PositionsPath returns the path to the reading-position database.
func (d *Dir) PositionsPath() string {
	return filepath.Join(d.path, PositionsFileName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// DocumentPath returns the library path for an imported document.
func (d *Dir) DocumentPath(documentID, ext string) string {
	return filepath.Join(d.LibraryPath(), documentID+ext)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.LibraryPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create library directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
