package iso9660

import (
	"fmt"
	"strings"

	"github.com/s0up4200/go-rrip/internal/buffer"
	"github.com/s0up4200/go-rrip/internal/rrip"
)

// directoryRecord is one decoded ISO 9660 directory record.
type directoryRecord struct {
	length     int
	extAttrLen int
	extent     uint32
	size       uint32
	recorded   rrip.Date7
	flags      byte
	ident      []byte
	systemUse  []byte
}

func (d *directoryRecord) isDir() bool { return d.flags&FlagDirectory != 0 }

func (d *directoryRecord) isSelf() bool { return len(d.ident) == 1 && d.ident[0] == 0 }

func (d *directoryRecord) isParent() bool { return len(d.ident) == 1 && d.ident[0] == 1 }

// parseDirectoryRecord decodes the record at the start of b. The returned
// identifier and system-use slices alias b.
func parseDirectoryRecord(b []byte) (*directoryRecord, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("directory record: empty")
	}
	length := int(b[0])
	if length < minRecordLength || length > len(b) {
		return nil, fmt.Errorf("directory record: bad length %d (%d bytes available)", length, len(b))
	}

	r := buffer.NewReader(b[:length])
	r.Skip(1)
	extAttr, _ := r.ReadByteValue()
	extent, ok := r.ReadBothUInt32()
	if !ok {
		return nil, fmt.Errorf("directory record: short extent field")
	}
	size, ok := r.ReadBothUInt32()
	if !ok {
		return nil, fmt.Errorf("directory record: short size field")
	}
	date, ok := r.ReadBytes(rrip.DateSize)
	if !ok {
		return nil, fmt.Errorf("directory record: short date field")
	}
	flags, _ := r.ReadByteValue()
	// file unit size, interleave gap, volume sequence number
	if !r.Skip(6) {
		return nil, fmt.Errorf("directory record: truncated")
	}
	idLen, ok := r.ReadByteValue()
	if !ok {
		return nil, fmt.Errorf("directory record: missing identifier length")
	}
	ident, ok := r.ReadBytes(int(idLen))
	if !ok || idLen == 0 {
		return nil, fmt.Errorf("directory record: identifier length %d exceeds record length %d", idLen, length)
	}
	if idLen%2 == 0 {
		r.Skip(1)
	}

	rec := &directoryRecord{
		length:     length,
		extAttrLen: int(extAttr),
		extent:     extent,
		size:       size,
		flags:      flags,
		ident:      ident,
	}
	copy(rec.recorded[:], date)
	if pos := r.Position(); pos < length {
		rec.systemUse = b[pos:length]
	}
	return rec, nil
}

// isoName converts a file identifier to its display form: the version
// suffix and a trailing dot are dropped.
func isoName(ident []byte) string {
	switch {
	case len(ident) == 1 && ident[0] == 0:
		return "."
	case len(ident) == 1 && ident[0] == 1:
		return ".."
	}
	name := string(ident)
	if i := strings.LastIndexByte(name, ';'); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSuffix(name, ".")
	return name
}
