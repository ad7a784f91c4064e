package rrip

// HeaderSize is the size of the signature, length and version fields shared by all SUSP entries.
const HeaderSize = 4

// Entry is a read-only view of one SUSP entry:
// signature (2 bytes), length (1 byte, header included), version (1 byte), payload.
type Entry []byte

// Signature returns the two signature bytes as a string.
func (e Entry) Signature() string {
	if len(e) < 2 {
		return ""
	}
	return string(e[:2])
}

// Length returns the declared entry length, or 0 when the header is incomplete.
func (e Entry) Length() int {
	if len(e) < HeaderSize {
		return 0
	}
	return int(e[2])
}

func (e Entry) Version() uint8 {
	if len(e) < HeaderSize {
		return 0
	}
	return e[3]
}

// Complete reports whether the view holds a full header and every byte the header declares.
func (e Entry) Complete() bool {
	return len(e) >= HeaderSize && e.Length() <= len(e)
}

// Tag identifies the Rock Ridge entries this package knows about.
type Tag uint8

const (
	TagUnknown Tag = iota
	TagPX
	TagPN
	TagSL
	TagNM
	TagCL
	TagPL
	TagRE
	TagTF
	TagSF
)

// ParseTag maps a signature to its tag.
func ParseTag(signature string) Tag {
	switch signature {
	case "PX":
		return TagPX
	case "PN":
		return TagPN
	case "SL":
		return TagSL
	case "NM":
		return TagNM
	case "CL":
		return TagCL
	case "PL":
		return TagPL
	case "RE":
		return TagRE
	case "TF":
		return TagTF
	case "SF":
		return TagSF
	default:
		return TagUnknown
	}
}

func (t Tag) String() string {
	switch t {
	case TagPX:
		return "PX"
	case TagPN:
		return "PN"
	case TagSL:
		return "SL"
	case TagNM:
		return "NM"
	case TagCL:
		return "CL"
	case TagPL:
		return "PL"
	case TagRE:
		return "RE"
	case TagTF:
		return "TF"
	case TagSF:
		return "SF"
	default:
		return "unknown"
	}
}

// gate returns the minimum entry length and version a tag requires.
// CL, PL, RE and SF are accepted in any form because they are never decoded.
func (t Tag) gate() (minLength int, minVersion uint8) {
	switch t {
	case TagPX:
		return 36, 1
	case TagPN:
		return 20, 1
	case TagSL, TagNM:
		return 6, 1
	case TagTF:
		return 5, 1
	default:
		return 0, 0
	}
}

// Accepts reports whether an entry with the given length and version passes the tag's gate.
func (t Tag) Accepts(length int, version uint8) bool {
	if t == TagUnknown {
		return false
	}
	minLength, minVersion := t.gate()
	return length >= minLength && version >= minVersion
}
