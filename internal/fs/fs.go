package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/s0up4200/go-rrip/internal/fs/iso9660"
	"github.com/s0up4200/go-rrip/internal/rrip"
	"github.com/s0up4200/go-rrip/internal/settings"
	"github.com/s0up4200/go-rrip/internal/util"
)

var (
	ErrNotFound     = iso9660.ErrNotFound
	ErrNotDirectory = iso9660.ErrNotDirectory
	ErrNotISO9660   = iso9660.ErrNotISO9660
	ErrNotSymlink   = errors.New("not a symbolic link")
)

// FileSystem reads an ISO 9660 image, presenting Rock Ridge names and
// attributes when the image carries them.
type FileSystem struct {
	imagePath string
	reader    *iso9660.Reader
}

// Open mounts the image at imagePath.
func Open(imagePath string, s settings.Settings, log logrus.FieldLogger) (*FileSystem, error) {
	reader, err := iso9660.NewReader(imagePath, s, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open ISO 9660 volume: %w", err)
	}
	return &FileSystem{imagePath: imagePath, reader: reader}, nil
}

// New mounts an image held by ra.
func New(ra io.ReaderAt, size int64, s settings.Settings, log logrus.FieldLogger) (*FileSystem, error) {
	reader, err := iso9660.NewReaderAt(ra, size, s, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open ISO 9660 volume: %w", err)
	}
	return &FileSystem{reader: reader}, nil
}

func (fs *FileSystem) Close() error {
	return fs.reader.Close()
}

func (fs *FileSystem) ImagePath() string {
	return fs.imagePath
}

func (fs *FileSystem) VolumeLabel() string {
	return fs.reader.VolumeLabel()
}

// RockRidge reports whether names and attributes come from Rock Ridge entries.
func (fs *FileSystem) RockRidge() bool {
	return fs.reader.RockRidge()
}

// Stat returns the attributes of the file at p without following symbolic links.
func (fs *FileSystem) Stat(p string) (*FileInfo, error) {
	e, err := fs.reader.Lookup(normalizePath(p))
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	return newFileInfo(e), nil
}

// ReadDir lists a directory sorted by name.
func (fs *FileSystem) ReadDir(p string) ([]*FileInfo, error) {
	e, err := fs.reader.Lookup(normalizePath(p))
	if err != nil {
		return nil, fmt.Errorf("readdir %s: %w", p, err)
	}
	infos, err := readDir(e)
	if err != nil {
		return nil, fmt.Errorf("readdir %s: %w", p, err)
	}
	return infos, nil
}

func readDir(e *iso9660.Entry) ([]*FileInfo, error) {
	children, err := e.Children()
	if err != nil {
		return nil, err
	}
	infos := make([]*FileInfo, 0, len(children))
	for _, c := range children {
		infos = append(infos, newFileInfo(c))
	}
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	return infos, nil
}

// Readlink returns the target of the symbolic link at p.
func (fs *FileSystem) Readlink(p string) (string, error) {
	e, err := fs.reader.Lookup(normalizePath(p))
	if err != nil {
		return "", fmt.Errorf("readlink %s: %w", p, err)
	}
	if !e.Record.IsSymlink() {
		return "", fmt.Errorf("readlink %s: %w", p, ErrNotSymlink)
	}
	return e.Record.Target.String(), nil
}

// Open returns the contents of the regular file at p.
func (fs *FileSystem) Open(p string) (io.ReadCloser, error) {
	e, err := fs.reader.Lookup(normalizePath(p))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	rc, err := e.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return rc, nil
}

// SystemUseEntries returns the raw SUSP entries recorded for p.
func (fs *FileSystem) SystemUseEntries(p string) ([]iso9660.RawEntry, *rrip.Record, error) {
	return fs.reader.SystemUseEntries(normalizePath(p))
}

// WalkFunc is called for every entry below the walk root. Returning
// iofs.SkipDir from a directory skips its contents.
type WalkFunc func(p string, fi *FileInfo) error

// Walk visits the tree below root depth first in name order. Directories are
// entered through their own entries, never by looking their path up again,
// and a directory whose extent was already visited is not entered again.
func (fs *FileSystem) Walk(ctx context.Context, root string, fn WalkFunc) error {
	start, err := fs.Stat(root)
	if err != nil {
		return err
	}
	visited := map[int64]bool{start.entry.Location(): true}
	return fs.walk(ctx, start, visited, fn)
}

func (fs *FileSystem) walk(ctx context.Context, dir *FileInfo, visited map[int64]bool, fn WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	children, err := readDir(dir.entry)
	if err != nil {
		return fmt.Errorf("walk %s: %w", dir.Path(), err)
	}
	for _, c := range children {
		err := fn(c.Path(), c)
		if errors.Is(err, iofs.SkipDir) {
			continue
		}
		if err != nil {
			return err
		}
		if !c.IsDir() || visited[c.entry.Location()] {
			continue
		}
		visited[c.entry.Location()] = true
		if err := fs.walk(ctx, c, visited, fn); err != nil {
			return err
		}
	}
	return nil
}

// normalizePath turns p into an absolute slash separated image path.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	return path.Clean("/" + p)
}

// FileInfo describes one file of the image. It implements io/fs.FileInfo;
// Sys returns the underlying *rrip.Record.
type FileInfo struct {
	entry *iso9660.Entry
}

func newFileInfo(e *iso9660.Entry) *FileInfo {
	return &FileInfo{entry: e}
}

func (f *FileInfo) Name() string {
	if f.entry.Path == "/" {
		return "/"
	}
	return f.entry.Name()
}

func (f *FileInfo) Path() string {
	return f.entry.Path
}

// ISOName is the ISO 9660 identifier without version suffix.
func (f *FileInfo) ISOName() string {
	return f.entry.ISOName
}

func (f *FileInfo) Size() int64 {
	if f.entry.Record.IsSymlink() {
		return int64(f.entry.Record.Target.Len())
	}
	return f.entry.Size()
}

func (f *FileInfo) Mode() iofs.FileMode {
	return fileMode(f.entry.Record.Mode)
}

// PosixMode returns the raw mode bits, type included.
func (f *FileInfo) PosixMode() uint32 {
	return f.entry.Record.Mode
}

func (f *FileInfo) ModTime() time.Time {
	return util.DecodeDate7(f.entry.Record.Mtime)
}

func (f *FileInfo) AccessTime() time.Time {
	return util.DecodeDate7(f.entry.Record.Atime)
}

func (f *FileInfo) ChangeTime() time.Time {
	return util.DecodeDate7(f.entry.Record.Ctime)
}

func (f *FileInfo) BirthTime() time.Time {
	return util.DecodeDate7(f.entry.Record.Birthtime)
}

func (f *FileInfo) IsDir() bool {
	return f.entry.IsDir()
}

func (f *FileInfo) Sys() any {
	return f.entry.Record
}

func (f *FileInfo) UID() uint32 { return f.entry.Record.UID }

func (f *FileInfo) GID() uint32 { return f.entry.Record.GID }

func (f *FileInfo) Rdev() uint64 { return f.entry.Record.Rdev }

// Target returns the symbolic link target, empty for other files.
func (f *FileInfo) Target() string {
	return f.entry.Record.Target.String()
}

func fileMode(m uint32) iofs.FileMode {
	mode := iofs.FileMode(m & 0o777)
	switch m & rrip.ModeType {
	case rrip.ModeDir:
		mode |= iofs.ModeDir
	case rrip.ModeSymlink:
		mode |= iofs.ModeSymlink
	case rrip.ModeCharDev:
		mode |= iofs.ModeDevice | iofs.ModeCharDevice
	case rrip.ModeBlockDev:
		mode |= iofs.ModeDevice
	case rrip.ModeFIFO:
		mode |= iofs.ModeNamedPipe
	case rrip.ModeSocket:
		mode |= iofs.ModeSocket
	}
	if m&rrip.ModeSetuid != 0 {
		mode |= iofs.ModeSetuid
	}
	if m&rrip.ModeSetgid != 0 {
		mode |= iofs.ModeSetgid
	}
	if m&rrip.ModeSaveText != 0 {
		mode |= iofs.ModeSticky
	}
	return mode
}
