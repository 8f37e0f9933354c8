package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"redumparchive/internal/components/assert"
	"redumparchive/internal/scrapers/redump"

	"github.com/google/uuid"
)

// TombstoneSuffix marks a content directory whose upstream entry no longer exists.
const TombstoneSuffix = "-deleted"

var (
	ErrTombstoneExists = errors.New("tombstone already exists")
	ErrNoFilename      = errors.New("download has no suggested filename")
	ErrPackExists      = errors.New("pack already downloaded")
)

// Layout maps content ids and packs to paths under an output root.
type Layout struct {
	root string
}

func NewLayout(root string) (Layout, error) {
	if root == "" {
		return Layout{}, fmt.Errorf("output root must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, err
	}
	err = os.MkdirAll(abs, 0o755)
	if err != nil {
		return Layout{}, fmt.Errorf("create output root: %w", err)
	}
	return Layout{root: abs}, nil
}

func (l Layout) Root() string {
	return l.root
}

// Sub returns a layout rooted at a named child of this one.
func (l Layout) Sub(name string) (Layout, error) {
	assert.NotEmptyStr(name)
	return NewLayout(filepath.Join(l.root, name))
}

func (l Layout) Dir(id redump.ContentID) string {
	return filepath.Join(l.root, id.String())
}

func (l Layout) PrimaryPath(id redump.ContentID) string {
	return filepath.Join(l.Dir(id), redump.PrimaryFilename)
}

func (l Layout) TombstoneDir(id redump.ContentID) string {
	return l.Dir(id) + TombstoneSuffix
}

// ReadPrimary returns the previously persisted primary page, ok is false
// when there is none.
func (l Layout) ReadPrimary(id redump.ContentID) (page string, ok bool, err error) {
	buf, err := os.ReadFile(l.PrimaryPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(buf), true, nil
}

func (l Layout) EnsureDir(id redump.ContentID) error {
	return os.MkdirAll(l.Dir(id), 0o755)
}

func (l Layout) WriteArtifact(id redump.ContentID, name string, data []byte) error {
	if name == redump.PrimaryFilename {
		return fmt.Errorf("artifact may not be named %s", redump.PrimaryFilename)
	}
	return writeAtomic(l.Dir(id), name, data)
}

// WritePrimary must be the last write for id, its presence means the
// artifact set for id was fully attempted.
func (l Layout) WritePrimary(id redump.ContentID, page string) error {
	return writeAtomic(l.Dir(id), redump.PrimaryFilename, []byte(page))
}

// Tombstone moves the content directory of id aside. When there is no live
// directory an empty tombstone is created instead. An existing tombstone is
// never replaced.
func (l Layout) Tombstone(id redump.ContentID) (string, error) {
	live := l.Dir(id)
	tombstone := l.TombstoneDir(id)

	liveExists, err := dirExists(live)
	if err != nil {
		return "", err
	}
	tombstoneExists, err := dirExists(tombstone)
	if err != nil {
		return "", err
	}

	switch {
	case liveExists && tombstoneExists:
		return "", fmt.Errorf("%w: %s", ErrTombstoneExists, tombstone)
	case liveExists:
		err = os.Rename(live, tombstone)
	default:
		err = os.MkdirAll(tombstone, 0o755)
	}
	if err != nil {
		return "", err
	}
	return tombstone, nil
}

// CreateTemp opens a uniquely named temporary file in the output root, it
// lives on the same filesystem as every final path so placing it is a rename.
func (l Layout) CreateTemp() (*os.File, error) {
	return os.OpenFile(
		filepath.Join(l.root, "."+uuid.NewString()+".part"),
		os.O_RDWR|os.O_CREATE|os.O_EXCL,
		0o644,
	)
}

// PlacePack moves a finished download to its final name, optionally inside
// subfolder. The temp file is always consumed: either renamed or removed.
func (l Layout) PlacePack(tempPath, suggestedName, subfolder string) (string, error) {
	name := sanitizeFilename(suggestedName)
	if name == "" {
		os.Remove(tempPath)
		return "", ErrNoFilename
	}

	dir := l.root
	if subfolder != "" {
		dir = filepath.Join(l.root, sanitizeFilename(subfolder))
		err := os.MkdirAll(dir, 0o755)
		if err != nil {
			os.Remove(tempPath)
			return "", err
		}
	}

	final := filepath.Join(dir, name)
	_, err := os.Stat(final)
	if err == nil {
		os.Remove(tempPath)
		return final, fmt.Errorf("%w: %s", ErrPackExists, final)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		os.Remove(tempPath)
		return "", err
	}

	err = os.Rename(tempPath, final)
	if err != nil {
		os.Remove(tempPath)
		return "", err
	}
	return final, nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(filepath.Clean("/" + filepath.ToSlash(name)))
	switch name {
	case "", ".", "..", "/":
		return ""
	}
	return name
}

func dirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s exists and is not a directory", path)
	}
	return true, nil
}

func writeAtomic(dir, name string, data []byte) error {
	temp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	err := os.WriteFile(temp, data, 0o644)
	if err != nil {
		os.Remove(temp)
		return err
	}
	err = os.Rename(temp, filepath.Join(dir, name))
	if err != nil {
		os.Remove(temp)
		return err
	}
	return nil
}
