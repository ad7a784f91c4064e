package rrip

const (
	// MaxFileIDLen is the default capacity of the Rock Ridge name and symlink buffers.
	MaxFileIDLen = 256

	// DateSize is the size of an ISO 9660 7-byte recording date.
	DateSize = 7
)

// POSIX file type and permission bits as recorded in a PX entry.
const (
	ModeType = 0o170000
	ModePerm = 0o7777

	ModeFIFO     = 0o010000
	ModeCharDev  = 0o020000
	ModeDir      = 0o040000
	ModeBlockDev = 0o060000
	ModeRegular  = 0o100000
	ModeSymlink  = 0o120000
	ModeSocket   = 0o140000
	ModeSetuid   = 0o4000
	ModeSetgid   = 0o2000
	ModeSaveText = 0o1000
	ModeReadOnly = 0o444
	ModeReadExec = 0o555
)

// Date7 is an undecoded ISO 9660 recording date:
// years since 1900, month, day, hour, minute, second, GMT offset in 15 minute steps.
type Date7 [DateSize]byte

// Field is a byte buffer with a fixed capacity. The length always stays strictly
// below the capacity, leaving room for the terminator an on-disk driver would write.
type Field struct {
	buf      []byte
	capacity int
}

// NewField returns an empty field holding fewer than capacity bytes.
func NewField(capacity int) Field {
	if capacity < 1 {
		capacity = 1
	}
	return Field{capacity: capacity}
}

func (f *Field) Len() int { return len(f.buf) }

func (f *Field) Cap() int { return f.capacity }

func (f *Field) String() string { return string(f.buf) }

// Bytes returns a copy of the contents.
func (f *Field) Bytes() []byte {
	return append([]byte(nil), f.buf...)
}

// Fits reports whether n more bytes can be appended.
func (f *Field) Fits(n int) bool {
	return n >= 0 && len(f.buf)+n < f.capacity
}

// Append adds all parts or none of them.
func (f *Field) Append(parts ...[]byte) bool {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	if !f.Fits(n) {
		return false
	}
	if f.buf == nil {
		f.buf = make([]byte, 0, f.capacity-1)
	}
	for _, p := range parts {
		f.buf = append(f.buf, p...)
	}
	return true
}

func (f *Field) Reset() {
	f.buf = f.buf[:0]
}

// Record is the in-memory view of one directory record, enriched by Rock Ridge entries.
// A Record must not be shared between goroutines while it is being populated.
type Record struct {
	Mode uint32
	UID  uint32
	GID  uint32
	Rdev uint64

	Birthtime Date7
	Mtime     Date7
	Atime     Date7
	Ctime     Date7

	// Name is the POSIX name accumulated from NM entries.
	Name Field
	// Target is the symbolic link target accumulated from SL entries.
	Target Field
}

// NewRecord returns a zero record whose name and target hold fewer than capacity bytes.
func NewRecord(capacity int) *Record {
	return &Record{
		Name:   NewField(capacity),
		Target: NewField(capacity),
	}
}

// SetDefaults resets the record to the attributes plain ISO 9660 provides.
func (r *Record) SetDefaults(dir bool, recorded Date7) {
	if dir {
		r.Mode = ModeDir | ModeReadExec
	} else {
		r.Mode = ModeRegular | ModeReadOnly
	}
	r.UID, r.GID, r.Rdev = 0, 0, 0
	r.Birthtime, r.Mtime, r.Atime, r.Ctime = recorded, recorded, recorded, recorded
	r.Name.Reset()
	r.Target.Reset()
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.Name.buf = r.Name.Bytes()
	c.Target.buf = r.Target.Bytes()
	return &c
}

func (r *Record) IsDir() bool { return r.Mode&ModeType == ModeDir }

func (r *Record) IsSymlink() bool { return r.Mode&ModeType == ModeSymlink }

func (r *Record) IsRegular() bool { return r.Mode&ModeType == ModeRegular }
