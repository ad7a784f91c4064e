package rrip

import "encoding/binary"

// Status is the outcome of dispatching one SUSP entry.
type Status int

const (
	// Handled means the entry was recognised; the record may or may not have changed.
	Handled Status = iota
	// Invalid means the signature is unknown or the entry failed its length/version gate.
	Invalid
)

func (s Status) String() string {
	if s == Handled {
		return "handled"
	}
	return "invalid"
}

// Result describes what Apply did with one entry.
type Result struct {
	Tag    Tag
	Status Status
	// Truncated is set when part of the entry was dropped to keep a field within capacity.
	Truncated bool
}

// TF flag bits.
const (
	tfCreation  = 1 << 0
	tfModify    = 1 << 1
	tfAccess    = 1 << 2
	tfAttribute = 1 << 3
	tfLongForm  = 1 << 7
)

// Dispatch applies one SUSP entry to rec.
func Dispatch(entry []byte, rec *Record) Status {
	return Apply(entry, rec).Status
}

// Apply decodes one Rock Ridge entry and projects it onto rec.
//
// The entry must start at the signature and hold at least the bytes its length
// field declares; the caller advances past it by that length whatever the result.
// An Invalid entry leaves rec untouched.
func Apply(entry []byte, rec *Record) Result {
	e := Entry(entry)
	if !e.Complete() {
		return Result{Status: Invalid}
	}
	length, version := e.Length(), e.Version()
	tag := ParseTag(e.Signature())
	if !tag.Accepts(length, version) {
		return Result{Tag: tag, Status: Invalid}
	}
	e = e[:length]

	res := Result{Tag: tag, Status: Handled}
	switch tag {
	case TagPX:
		applyPosixAttributes(e, rec)
	case TagPN:
		major := binary.LittleEndian.Uint32(e[4:8])
		minor := binary.LittleEndian.Uint32(e[12:16])
		rec.Rdev = mkdev(major, minor)
	case TagSL:
		res.Truncated = appendSymlink(e[5:], rec)
	case TagNM:
		// Every NM entry is appended; the continuation flag at offset 4 is not consulted.
		res.Truncated = !rec.Name.Append(e[5:])
	case TagTF:
		res.Truncated = applyTimestamps(e, rec)
	case TagCL, TagPL, TagRE, TagSF:
		// relocation and sparse files are not supported
	}
	return res
}

func applyPosixAttributes(e Entry, rec *Record) {
	mode := binary.LittleEndian.Uint32(e[4:8])
	switch mode & ModeType {
	case ModeCharDev, ModeBlockDev, ModeRegular, ModeDir, ModeSymlink:
		rec.Mode = mode & ModeType
	default:
		// keep the type ISO 9660 gave us
		rec.Mode &= ModeType
	}
	rec.Mode |= mode & ModePerm
	rec.UID = binary.LittleEndian.Uint32(e[20:24])
	rec.GID = binary.LittleEndian.Uint32(e[28:32])
}

// applyTimestamps copies the short form stamps flagged in a TF entry.
// The flags byte is read at offset 5 and stamps are taken from offset 5 on.
func applyTimestamps(e Entry, rec *Record) (truncated bool) {
	if len(e) <= 5 {
		return false
	}
	flags := e[5]
	if flags&tfLongForm != 0 {
		return false
	}

	stamps := [...]struct {
		bit byte
		dst *Date7
	}{
		{tfCreation, &rec.Birthtime},
		{tfModify, &rec.Mtime},
		{tfAccess, &rec.Atime},
		{tfAttribute, &rec.Ctime},
	}
	offset := 5
	for _, s := range stamps {
		if flags&s.bit == 0 {
			continue
		}
		if offset+DateSize > len(e) {
			truncated = true
			continue
		}
		copy(s.dst[:], e[offset:offset+DateSize])
		offset += DateSize
	}
	return truncated
}
