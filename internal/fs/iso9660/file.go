package iso9660

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/s0up4200/go-rrip/internal/rrip"
)

// Entry is one file or directory of the image. Record holds the attributes
// after Rock Ridge entries were applied to the ISO 9660 defaults.
type Entry struct {
	reader  *Reader
	Path    string
	ISOName string
	Record  *rrip.Record

	// rockRidgeName is Record.Name when it is usable as a path component.
	rockRidgeName string
	record        *directoryRecord
	extents       []extent

	childrenOnce sync.Once
	children     []*Entry
	childrenErr  error
}

// Name returns the Rock Ridge name when one was recorded and is a valid
// path component, else the ISO 9660 name.
func (e *Entry) Name() string {
	if e.rockRidgeName != "" {
		return e.rockRidgeName
	}
	return e.ISOName
}

// validName reports whether name can stand as a single path component.
func validName(name string) bool {
	switch name {
	case "", ".", "..":
		return false
	}
	return !strings.ContainsAny(name, "/\x00")
}

// IsDir reports the ISO 9660 directory flag, which drives traversal
// regardless of the mode a PX entry recorded.
func (e *Entry) IsDir() bool {
	return e.record.isDir()
}

// Size returns the data length summed over all extents.
func (e *Entry) Size() int64 {
	var size int64
	for _, ex := range e.extents {
		size += ex.fileEnd - ex.fileStart
	}
	return size
}

// Children returns the entries of a directory, "." and ".." excluded.
// They are read once and cached.
func (e *Entry) Children() ([]*Entry, error) {
	if !e.IsDir() {
		return nil, fmt.Errorf("%s: %w", e.Path, ErrNotDirectory)
	}
	e.childrenOnce.Do(func() {
		e.children, e.childrenErr = e.reader.readDirectory(e)
	})
	return e.children, e.childrenErr
}

// Child finds a direct child by name. Rock Ridge names match exactly,
// ISO 9660 names without case.
func (e *Entry) Child(name string) (*Entry, error) {
	children, err := e.Children()
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if c.rockRidgeName != "" {
			if c.rockRidgeName == name {
				return c, nil
			}
			continue
		}
		if strings.EqualFold(c.ISOName, name) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", path.Join(e.Path, name), ErrNotFound)
}

// Lookup resolves a slash separated path from the root. Symbolic links are
// not followed.
func (r *Reader) Lookup(p string) (*Entry, error) {
	current := r.root
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			return nil, fmt.Errorf("%s: parent references are not supported", p)
		}
		next, err := current.Child(part)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// readDirectory decodes every record of the directory extent. A zero length
// byte pads to the next logical block.
func (r *Reader) readDirectory(dir *Entry) ([]*Entry, error) {
	data, err := r.readExtent(dir)
	if err != nil {
		return nil, err
	}

	var entries []*Entry
	var pending *Entry
	block := int(r.blockSize)
	for pos := 0; pos < len(data); {
		if data[pos] == 0 {
			pos = (pos/block + 1) * block
			continue
		}
		rec, err := parseDirectoryRecord(data[pos:])
		if err != nil {
			return entries, fmt.Errorf("directory %s at offset %d: %w", dir.Path, pos, err)
		}
		pos += rec.length
		if rec.isSelf() || rec.isParent() {
			continue
		}

		ex := extent{physOff: r.blockOffset(rec.extent) + int64(rec.extAttrLen)*int64(r.blockSize)}
		if pending != nil && bytes.Equal(pending.record.ident, rec.ident) {
			last := pending.extents[len(pending.extents)-1]
			ex.fileStart = last.fileEnd
			ex.fileEnd = last.fileEnd + int64(rec.size)
			pending.extents = append(pending.extents, ex)
			pending.record.flags = rec.flags
		} else {
			ex.fileEnd = int64(rec.size)
			entries = append(entries, r.newEntry(dir, rec, ex))
			pending = entries[len(entries)-1]
		}
		if rec.flags&FlagMultiExtent == 0 {
			pending = nil
		}
	}
	return entries, nil
}

func (r *Reader) newEntry(parent *Entry, rec *directoryRecord, ex extent) *Entry {
	// keep the record alive independently of the directory buffer
	owned := *rec
	owned.ident = append([]byte(nil), rec.ident...)
	owned.systemUse = append([]byte(nil), rec.systemUse...)

	e := &Entry{
		reader:  r,
		ISOName: isoName(owned.ident),
		Record:  rrip.NewRecord(r.settings.MaxFileIDLen),
		record:  &owned,
		extents: []extent{ex},
	}
	e.Record.SetDefaults(owned.isDir(), owned.recorded)
	isoPath := path.Join(parent.Path, e.ISOName)
	r.applySystemUse(&owned, e.Record, isoPath)
	if e.Record.Name.Len() > 0 {
		if name := e.Record.Name.String(); validName(name) {
			e.rockRidgeName = name
		} else {
			r.log.WithFields(logrus.Fields{"path": isoPath, "name": name}).Debug("iso9660: unusable Rock Ridge name, keeping ISO 9660 name")
		}
	}
	e.Path = path.Join(parent.Path, e.Name())
	return e
}

// Open returns a reader over the file data.
func (e *Entry) Open() (io.ReadCloser, error) {
	if e.IsDir() {
		return nil, fmt.Errorf("%s: is a directory", e.Path)
	}
	size := e.Size()
	if len(e.extents) == 1 {
		return io.NopCloser(io.NewSectionReader(e.reader.file, e.extents[0].physOff, size)), nil
	}
	return &extentReader{
		reader:  e.reader,
		extents: e.extents,
		size:    size,
	}, nil
}

type extent struct {
	fileStart int64
	fileEnd   int64
	physOff   int64
}

// extentReader reads a file recorded as several extents (multi-extent flag).
type extentReader struct {
	reader  *Reader
	extents []extent
	size    int64

	pos int64
	idx int
}

func (er *extentReader) Read(p []byte) (n int, err error) {
	if er.pos >= er.size {
		return 0, io.EOF
	}

	toRead := len(p)
	if remaining := er.size - er.pos; int64(toRead) > remaining {
		toRead = int(remaining)
	}

	for n < toRead {
		if er.idx >= len(er.extents) {
			return n, io.EOF
		}
		ex := er.extents[er.idx]
		if er.pos >= ex.fileEnd {
			er.idx++
			continue
		}

		want := toRead - n
		if inExtent := ex.fileEnd - er.pos; int64(want) > inExtent {
			want = int(inExtent)
		}

		off := ex.physOff + (er.pos - ex.fileStart)
		nn, rerr := er.reader.file.ReadAt(p[n:n+want], off)
		n += nn
		er.pos += int64(nn)
		if rerr != nil && rerr != io.EOF {
			return n, rerr
		}
		if nn < want {
			return n, io.ErrUnexpectedEOF
		}
	}

	if er.pos >= er.size {
		return n, io.EOF
	}
	return n, nil
}

func (er *extentReader) Close() error { return nil }

// Location returns the byte offset of the entry's first extent.
func (e *Entry) Location() int64 {
	if len(e.extents) == 0 {
		return 0
	}
	return e.extents[0].physOff
}
