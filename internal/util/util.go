package util

import (
	"fmt"
	"math"
	"strings"
	"time"
)

func FormatFileSize(size float64, human bool) string {
	if size <= 0 {
		return "0"
	}
	units := []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}
	group := 0
	if human {
		group = int(math.Log10(size) / math.Log10(1024))
		if group < 0 {
			group = 0
		}
		if group >= len(units) {
			group = len(units) - 1
		}
	}
	if group == 0 {
		return fmt.Sprintf("%d", int64(size))
	}
	return fmt.Sprintf("%.2f %s", size/math.Pow(1024, float64(group)), units[group])
}

// DecodeDate7 converts an ISO 9660 7-byte recording date to time.
// The last byte is the offset from GMT in 15 minute intervals.
// An all-zero date means "not specified" and yields the zero time.
func DecodeDate7(b [7]byte) time.Time {
	if b == [7]byte{} {
		return time.Time{}
	}
	offset := int(int8(b[6])) * 15 * 60
	loc := time.UTC
	if offset != 0 {
		loc = time.FixedZone("", offset)
	}
	return time.Date(1900+int(b[0]), time.Month(b[1]), int(b[2]), int(b[3]), int(b[4]), int(b[5]), 0, loc)
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

// FormatMode renders POSIX mode bits the way ls -l does.
func FormatMode(mode uint32) string {
	var sb strings.Builder
	switch mode & 0o170000 {
	case 0o040000:
		sb.WriteByte('d')
	case 0o120000:
		sb.WriteByte('l')
	case 0o020000:
		sb.WriteByte('c')
	case 0o060000:
		sb.WriteByte('b')
	case 0o010000:
		sb.WriteByte('p')
	case 0o140000:
		sb.WriteByte('s')
	default:
		sb.WriteByte('-')
	}

	const rwx = "rwxrwxrwx"
	for i := 0; i < 9; i++ {
		if mode&(1<<(8-i)) != 0 {
			sb.WriteByte(rwx[i])
		} else {
			sb.WriteByte('-')
		}
	}

	out := []byte(sb.String())
	special := []struct {
		bit   uint32
		pos   int
		set   byte
		unset byte
	}{
		{0o4000, 3, 's', 'S'},
		{0o2000, 6, 's', 'S'},
		{0o1000, 9, 't', 'T'},
	}
	for _, s := range special {
		if mode&s.bit == 0 {
			continue
		}
		if out[s.pos] == '-' {
			out[s.pos] = s.unset
		} else {
			out[s.pos] = s.set
		}
	}
	return string(out)
}
