package iso9660

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/s0up4200/go-rrip/internal/rrip"
	"github.com/s0up4200/go-rrip/internal/settings"
)

var errMalformedEntry = errors.New("malformed system use entry")

// detectSharing reports whether area starts with an SP entry and returns its LEN_SKP.
func detectSharing(area []byte) (skip int, ok bool) {
	if len(area) < 7 {
		return 0, false
	}
	e := rrip.Entry(area)
	if e.Signature() != sigSharing || e.Length() < 7 || area[4] != 0xBE || area[5] != 0xEF {
		return 0, false
	}
	return int(area[6]), true
}

// walkSystemUse calls fn for every entry in area, stopping after ST, at the
// first entry whose declared length is shorter than a header or runs past the
// area, or when fn returns false. Entries handed to fn are cut to their
// declared length.
func walkSystemUse(area []byte, fn func(offset int, e rrip.Entry) bool) error {
	offset := 0
	for len(area)-offset >= rrip.HeaderSize {
		e := rrip.Entry(area[offset:])
		length := e.Length()
		if length < rrip.HeaderSize || offset+length > len(area) {
			return errMalformedEntry
		}
		e = e[:length]
		if !fn(offset, e) {
			return nil
		}
		if e.Signature() == sigTerminator {
			return nil
		}
		offset += length
	}
	return nil
}

func isFraming(signature string) bool {
	switch signature {
	case sigSharing, sigContinuation, sigPadding, sigTerminator, sigExtReference, sigExtSelector:
		return true
	}
	return false
}

// applySystemUse projects the Rock Ridge entries of d onto rec.
func (r *Reader) applySystemUse(d *directoryRecord, rec *rrip.Record, path string) {
	area := r.suspArea(d)
	if area == nil {
		return
	}
	log := r.log.WithField("path", path)

	err := walkSystemUse(area, func(offset int, e rrip.Entry) bool {
		sig := e.Signature()
		if isFraming(sig) {
			if sig == sigContinuation {
				log.WithField("offset", offset).Debug("susp: continuation area not followed")
			}
			return true
		}

		res := rrip.Apply(e, rec)
		fields := logrus.Fields{"tag": sig, "offset": offset}
		if res.Status == rrip.Invalid {
			log.WithFields(fields).Debug("susp: invalid entry")
			if r.settings.InvalidPolicy == settings.PolicyFallback {
				rec.SetDefaults(d.isDir(), d.recorded)
				return false
			}
			return true
		}
		if res.Truncated {
			log.WithFields(fields).Debug("susp: entry truncated")
		}
		return true
	})
	if err != nil {
		log.WithError(err).Debug("susp: stopped early")
	}
}

// suspArea returns the part of the system use field the SUSP entries live in,
// or nil when Rock Ridge is disabled or not present. The root's own "."
// record carries the SP entry and is never skipped into.
func (r *Reader) suspArea(d *directoryRecord) []byte {
	if !r.rockRidge {
		return nil
	}
	skip := r.suspSkip
	if d == r.rootSelf {
		skip = 0
	}
	if skip >= len(d.systemUse) {
		return nil
	}
	return d.systemUse[skip:]
}

// RawEntry is one SUSP entry as recorded on disk, with the dispatch result
// when it was handed to the Rock Ridge dispatcher.
type RawEntry struct {
	Offset    int
	Signature string
	Length    int
	Version   uint8
	Data      []byte
	Framing   bool
	Result    rrip.Result
}

// SystemUseEntries lists the SUSP entries of the record at path and replays
// them against a fresh record so the dispatch result of each can be shown.
func (r *Reader) SystemUseEntries(path string) ([]RawEntry, *rrip.Record, error) {
	e, err := r.Lookup(path)
	if err != nil {
		return nil, nil, err
	}
	d := e.record
	rec := rrip.NewRecord(r.settings.MaxFileIDLen)
	rec.SetDefaults(d.isDir(), d.recorded)

	var out []RawEntry
	area := r.suspArea(d)
	if area == nil {
		return out, rec, nil
	}
	err = walkSystemUse(area, func(offset int, entry rrip.Entry) bool {
		raw := RawEntry{
			Offset:    offset,
			Signature: entry.Signature(),
			Length:    entry.Length(),
			Version:   entry.Version(),
			Data:      append([]byte(nil), entry...),
			Framing:   isFraming(entry.Signature()),
		}
		if !raw.Framing {
			raw.Result = rrip.Apply(entry, rec)
		}
		out = append(out, raw)
		return true
	})
	if err != nil {
		r.log.WithField("path", path).WithError(err).Debug("susp: stopped early")
	}
	return out, rec, nil
}
