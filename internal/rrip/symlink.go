package rrip

// SL component flags, low nibble.
const (
	slContinue = 0x1
	slCurrent  = 0x2
	slParent   = 0x4
	slRoot     = 0x8
)

const (
	dot    = "."
	dotDot = ".."
	slash  = "/"
)

// appendSymlink decodes the component records of one SL entry onto rec.Target.
// Components that would overflow the target, run past the payload or carry
// unknown flags stop the entry; what was appended before stays.
func appendSymlink(payload []byte, rec *Record) (truncated bool) {
	offset := 0
	for offset+2 <= len(payload) {
		kind := payload[offset] & 0xF
		size := int(payload[offset+1])

		var text []byte
		switch kind {
		case 0, slContinue:
			if size > len(payload)-offset-2 {
				return true
			}
			text = payload[offset+2 : offset+2+size]
		case slCurrent:
			text = []byte(dot)
		case slParent:
			text = []byte(dotDot)
		case slRoot:
			text = []byte(slash)
		default:
			return true
		}

		separate := needsSeparator(&rec.Target)
		if kind == slRoot {
			// the root component is its own separator
			if rec.Target.Len() > 0 && !separate {
				text = nil
			}
			separate = false
		}

		if separate {
			if !rec.Target.Append([]byte(slash), text) {
				return true
			}
		} else if !rec.Target.Append(text) {
			return true
		}

		offset += size + 2
	}
	return false
}

// needsSeparator reports whether the next component must be preceded by a slash.
// Text that already ends in a slash, from a root component or from component
// bytes, takes no second one.
func needsSeparator(f *Field) bool {
	n := f.Len()
	return n > 0 && f.buf[n-1] != '/'
}
