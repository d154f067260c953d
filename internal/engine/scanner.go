package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Scanner lists a directory, splitting entries into regular files and
// subdirectories. Names beginning with a dot are skipped, which excludes
// the sidecar and other hidden files from synchronization.
type Scanner struct {
	sort   bool
	logger *slog.Logger
}

// NewScanner creates a Scanner. When sortListings is set, returned names
// are sorted for reproducible iteration; otherwise the filesystem order is
// kept.
func NewScanner(sortListings bool, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = discardLogger()
	}

	return &Scanner{sort: sortListings, logger: logger}
}

// Listing is the classified contents of one directory.
type Listing struct {
	Files []string
	Dirs  []string

	fileSet map[string]bool
	dirSet  map[string]bool
}

// HasFile reports whether name was listed as a regular file.
func (l *Listing) HasFile(name string) bool {
	return l.fileSet[name]
}

// HasDir reports whether name was listed as a subdirectory.
func (l *Listing) HasDir(name string) bool {
	return l.dirSet[name]
}

// List reads dir and classifies its visible entries. Symlinks are resolved:
// a link to a regular file lists as a file, a link to a directory as a
// directory, and anything else (broken links, sockets, devices) is ignored.
func (s *Scanner) List(dir string) (*Listing, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("listing directory %s: %w", dir, err)
	}
	defer f.Close()

	// File.ReadDir keeps the filesystem's order; os.ReadDir would sort.
	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("listing directory %s: %w", dir, err)
	}

	listing := &Listing{
		fileSet: make(map[string]bool),
		dirSet:  make(map[string]bool),
	}

	for _, entry := range entries {
		name := entry.Name()
		if name == "" || name[0] == '.' {
			continue
		}

		if !norm.NFC.IsNormalString(name) {
			// Names are matched byte-for-byte across replicas. A non-NFC name
			// synced against an NFC spelling of the same text will be treated
			// as a distinct file, so flag it.
			s.logger.Warn("scanner: filename is not NFC-normalized",
				"dir", dir, "name", name)
		}

		info, err := s.resolve(dir, entry)
		if err != nil || info == nil {
			continue
		}

		switch {
		case info.IsDir():
			listing.Dirs = append(listing.Dirs, name)
			listing.dirSet[name] = true
		case info.Mode().IsRegular():
			listing.Files = append(listing.Files, name)
			listing.fileSet[name] = true
		default:
			s.logger.Debug("scanner: ignoring special file", "dir", dir, "name", name)
		}
	}

	if s.sort {
		sort.Strings(listing.Files)
		sort.Strings(listing.Dirs)
	}

	return listing, nil
}

// resolve returns the entry's FileInfo, following symlinks. A nil info with
// nil error means the entry should be skipped.
func (s *Scanner) resolve(dir string, entry os.DirEntry) (os.FileInfo, error) {
	if entry.Type()&os.ModeSymlink == 0 {
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("scanner: cannot stat entry, skipping",
				"dir", dir, "name", entry.Name(), "error", err)
			return nil, err
		}

		return info, nil
	}

	info, err := os.Stat(filepath.Join(dir, entry.Name())) // follows the link
	if err != nil {
		s.logger.Warn("scanner: broken symlink, skipping",
			"dir", dir, "name", entry.Name(), "error", err)
		return nil, nil
	}

	return info, nil
}
