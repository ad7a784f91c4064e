package report

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/s0up4200/go-rrip/internal/fs"
	"github.com/s0up4200/go-rrip/internal/fs/iso9660"
	"github.com/s0up4200/go-rrip/internal/rrip"
	"github.com/s0up4200/go-rrip/internal/util"
)

// ListOptions control WriteListing.
type ListOptions struct {
	Long  bool
	Human bool
	// FullPath prints each entry's image path instead of its base name.
	FullPath bool
}

// WriteListing prints entries one per line, or in ls -l columns when Long is set.
func WriteListing(w io.Writer, entries []*fs.FileInfo, opts ListOptions) error {
	if !opts.Long {
		for _, e := range entries {
			if _, err := fmt.Fprintln(w, displayName(e, opts)); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, e := range entries {
		name := displayName(e, opts)
		if isSymlink(e) {
			name += " -> " + e.Target()
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n",
			util.FormatMode(e.PosixMode()),
			e.UID(),
			e.GID(),
			sizeColumn(e, opts.Human),
			util.FormatTime(e.ModTime()),
			name,
		)
	}
	return tw.Flush()
}

// WriteStat prints every attribute the image records for one file.
func WriteStat(w io.Writer, fi *fs.FileInfo) error {
	var b strings.Builder
	fmt.Fprintf(&b, "  File: %s\n", fi.Path())
	if isSymlink(fi) {
		fmt.Fprintf(&b, "  Link: %s\n", fi.Target())
	}
	fmt.Fprintf(&b, "   ISO: %s\n", fi.ISOName())
	fmt.Fprintf(&b, "  Size: %d\n", fi.Size())
	fmt.Fprintf(&b, "  Mode: %04o/%s\n", fi.PosixMode()&rrip.ModePerm, util.FormatMode(fi.PosixMode()))
	fmt.Fprintf(&b, "   Uid: %d\n", fi.UID())
	fmt.Fprintf(&b, "   Gid: %d\n", fi.GID())
	if isDevice(fi) {
		major, minor := rrip.SplitDev(fi.Rdev())
		fmt.Fprintf(&b, "Device: %d,%d\n", major, minor)
	}
	fmt.Fprintf(&b, "Access: %s\n", util.FormatTime(fi.AccessTime()))
	fmt.Fprintf(&b, "Modify: %s\n", util.FormatTime(fi.ModTime()))
	fmt.Fprintf(&b, "Change: %s\n", util.FormatTime(fi.ChangeTime()))
	fmt.Fprintf(&b, " Birth: %s\n", util.FormatTime(fi.BirthTime()))
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteSUSPDump prints the raw SUSP entries of a record with the result of
// dispatching each, followed by the record they produce.
func WriteSUSPDump(w io.Writer, p string, entries []iso9660.RawEntry, rec *rrip.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d entries\n", p, len(entries))
	for _, e := range entries {
		status := "framing"
		if !e.Framing {
			status = e.Result.Status.String()
			if e.Result.Truncated {
				status += " (truncated)"
			}
		}
		fmt.Fprintf(&b, "  @%-4d %s len=%-3d ver=%d %-21s %s\n",
			e.Offset, e.Signature, e.Length, e.Version, status, hex.EncodeToString(payload(e.Data)))
	}
	fmt.Fprintf(&b, "mode=%s uid=%d gid=%d", util.FormatMode(rec.Mode), rec.UID, rec.GID)
	if rec.Name.Len() > 0 {
		fmt.Fprintf(&b, " name=%q", rec.Name.String())
	}
	if rec.Target.Len() > 0 {
		fmt.Fprintf(&b, " target=%q", rec.Target.String())
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

func payload(data []byte) []byte {
	if len(data) <= rrip.HeaderSize {
		return nil
	}
	return data[rrip.HeaderSize:]
}

func displayName(e *fs.FileInfo, opts ListOptions) string {
	if opts.FullPath {
		return e.Path()
	}
	return e.Name()
}

func sizeColumn(e *fs.FileInfo, human bool) string {
	if isDevice(e) {
		major, minor := rrip.SplitDev(e.Rdev())
		return fmt.Sprintf("%d, %d", major, minor)
	}
	return util.FormatFileSize(float64(e.Size()), human)
}

func isSymlink(e *fs.FileInfo) bool {
	return e.PosixMode()&rrip.ModeType == rrip.ModeSymlink
}

func isDevice(e *fs.FileInfo) bool {
	switch e.PosixMode() & rrip.ModeType {
	case rrip.ModeCharDev, rrip.ModeBlockDev:
		return true
	}
	return false
}
