package iso9660

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/s0up4200/go-rrip/internal/rrip"
	"github.com/s0up4200/go-rrip/internal/settings"
)

var testDate = [7]byte{124, 10, 17, 12, 0, 0, 0}

func both16(v uint16) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint16(b, v)
	binary.BigEndian.PutUint16(b[2:], v)
	return b
}

func both32(v uint32) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b, v)
	binary.BigEndian.PutUint32(b[4:], v)
	return b
}

func susp(sig string, version byte, payload ...[]byte) []byte {
	body := bytes.Join(payload, nil)
	return append([]byte{sig[0], sig[1], byte(4 + len(body)), version}, body...)
}

func spEntry(skip byte) []byte { return susp("SP", 1, []byte{0xBE, 0xEF, skip}) }

func pxEntry(mode, uid, gid uint32) []byte {
	return susp("PX", 1, both32(mode), both32(1), both32(uid), both32(gid))
}

func nmEntry(name string) []byte { return susp("NM", 1, []byte{0}, []byte(name)) }

func slEntry(components ...[]byte) []byte { return susp("SL", 1, []byte{0}, bytes.Join(components, nil)) }

func slText(s string) []byte { return append([]byte{0, byte(len(s))}, s...) }

func pnEntry(major, minor uint32) []byte { return susp("PN", 1, both32(major), both32(minor)) }

func dirRecord(ident string, extent, size uint32, flags byte, su ...[]byte) []byte {
	area := bytes.Join(su, nil)
	n := 33 + len(ident)
	if len(ident)%2 == 0 {
		n++
	}
	n += len(area)
	b := make([]byte, n)
	b[0] = byte(n)
	copy(b[2:], both32(extent))
	copy(b[10:], both32(size))
	copy(b[18:], testDate[:])
	b[25] = flags
	copy(b[28:], both16(1))
	b[32] = byte(len(ident))
	copy(b[33:], ident)
	copy(b[n-len(area):], area)
	return b
}

type testImage struct {
	data []byte
}

func newTestImage(sectors int) *testImage {
	return &testImage{data: make([]byte, sectors*SectorSize)}
}

func (ti *testImage) put(sector int, parts ...[]byte) {
	off := sector * SectorSize
	for _, p := range parts {
		copy(ti.data[off:], p)
		off += len(p)
	}
}

func (ti *testImage) volumeDescriptors() {
	pvd := make([]byte, SectorSize)
	pvd[0] = DescriptorPrimary
	copy(pvd[1:], StandardID)
	pvd[6] = 1
	copy(pvd[pvdVolumeIDOffset:], "TESTVOL                         ")
	copy(pvd[pvdVolumeSizeOffset:], both32(uint32(len(ti.data)/SectorSize)))
	copy(pvd[pvdBlockSizeOffset:], both16(SectorSize))
	copy(pvd[pvdRootRecordOffset:], dirRecord("\x00", 18, SectorSize, FlagDirectory))
	ti.put(16, pvd)

	term := make([]byte, 7)
	term[0] = DescriptorTerminator
	copy(term[1:], StandardID)
	ti.put(17, term)
}

// buildRockRidgeImage lays out:
//
//	sector 18  root directory
//	sector 19  /subdir
//	sector 20  "hello world" (also first part of BIG)
//	sector 21  "-tail" (second part of BIG)
func buildRockRidgeImage() []byte {
	ti := newTestImage(22)
	ti.volumeDescriptors()

	ti.put(18,
		dirRecord("\x00", 18, SectorSize, FlagDirectory, spEntry(0), pxEntry(0o040755, 0, 0)),
		dirRecord("\x01", 18, SectorSize, FlagDirectory),
		dirRecord("README.TXT;1", 20, 11, 0,
			susp("CE", 1, make([]byte, 24)),
			nmEntry("readme.txt"),
			pxEntry(0o100644, 1000, 100)),
		dirRecord("LINK.;1", 0, 0, 0,
			pxEntry(0o120777, 0, 0),
			nmEntry("link"),
			slEntry([]byte{8, 0}, slText("usr"), slText("bin"))),
		dirRecord("SUBDIR", 19, SectorSize, FlagDirectory,
			nmEntry("subdir"),
			pxEntry(0o040750, 0, 0)),
		dirRecord("PLAIN.TXT;1", 20, 5, 0),
		dirRecord("BAD.;1", 20, 11, 0,
			susp("PX", 1, make([]byte, 31)),
			nmEntry("bad-name")),
		dirRecord("DEV.;1", 0, 0, 0,
			pxEntry(0o020600, 0, 6),
			pnEntry(8, 1),
			nmEntry("sda1")),
		dirRecord("STOP.;1", 0, 0, 0,
			nmEntry("stop-name"),
			susp("ST", 1),
			nmEntry("-ignored")),
		dirRecord("BIG.;1", 20, 5, FlagMultiExtent),
		dirRecord("BIG.;1", 21, 5, 0),
	)
	ti.put(19,
		dirRecord("\x00", 19, SectorSize, FlagDirectory),
		dirRecord("\x01", 18, SectorSize, FlagDirectory),
		dirRecord("NESTED.TXT;1", 20, 11, 0, nmEntry("nested.txt")),
	)
	ti.put(20, []byte("hello world"))
	ti.put(21, []byte("-tail"))
	return ti.data
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func openImage(t *testing.T, data []byte, s settings.Settings) *Reader {
	t.Helper()
	r, err := NewReaderAt(bytes.NewReader(data), int64(len(data)), s, quietLogger())
	if err != nil {
		t.Fatalf("NewReaderAt err: %v", err)
	}
	return r
}

func childNames(t *testing.T, e *Entry) []string {
	t.Helper()
	children, err := e.Children()
	if err != nil {
		t.Fatalf("Children(%s) err: %v", e.Path, err)
	}
	var names []string
	for _, c := range children {
		names = append(names, c.Name())
	}
	return names
}

func TestReader_RockRidgeNames(t *testing.T) {
	r := openImage(t, buildRockRidgeImage(), settings.Default())
	if !r.RockRidge() {
		t.Fatal("RockRidge()=false want true")
	}
	if got, want := r.VolumeLabel(), "TESTVOL"; got != want {
		t.Fatalf("VolumeLabel=%q want %q", got, want)
	}
	if got, want := r.Root().Record.Mode, uint32(0o040755); got != want {
		t.Fatalf("root mode=%o want %o", got, want)
	}

	got := childNames(t, r.Root())
	want := []string{"readme.txt", "link", "subdir", "PLAIN.TXT", "bad-name", "sda1", "stop-name", "BIG"}
	if len(got) != len(want) {
		t.Fatalf("children=%q want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("children[%d]=%q want %q", i, got[i], want[i])
		}
	}
}

func TestReader_Attributes(t *testing.T) {
	r := openImage(t, buildRockRidgeImage(), settings.Default())

	readme, err := r.Lookup("/readme.txt")
	if err != nil {
		t.Fatalf("Lookup err: %v", err)
	}
	if readme.Record.Mode != 0o100644 || readme.Record.UID != 1000 || readme.Record.GID != 100 {
		t.Fatalf("readme mode=%o uid=%d gid=%d", readme.Record.Mode, readme.Record.UID, readme.Record.GID)
	}
	if readme.Record.Mtime != rrip.Date7(testDate) {
		t.Fatalf("readme mtime=%v want recording date", readme.Record.Mtime)
	}

	link, err := r.Lookup("link")
	if err != nil {
		t.Fatalf("Lookup(link) err: %v", err)
	}
	if !link.Record.IsSymlink() {
		t.Fatalf("link mode=%o want symlink", link.Record.Mode)
	}
	if got, want := link.Record.Target.String(), "/usr/bin"; got != want {
		t.Fatalf("link target=%q want %q", got, want)
	}

	dev, err := r.Lookup("sda1")
	if err != nil {
		t.Fatalf("Lookup(sda1) err: %v", err)
	}
	if dev.Record.Mode&rrip.ModeType != rrip.ModeCharDev || dev.Record.Rdev == 0 {
		t.Fatalf("sda1 mode=%o rdev=%d", dev.Record.Mode, dev.Record.Rdev)
	}

	plain, err := r.Lookup("plain.txt")
	if err != nil {
		t.Fatalf("Lookup(plain.txt) err: %v", err)
	}
	if plain.Record.Mode != rrip.ModeRegular|rrip.ModeReadOnly {
		t.Fatalf("plain mode=%o want default", plain.Record.Mode)
	}
}

func TestReader_LookupNested(t *testing.T) {
	r := openImage(t, buildRockRidgeImage(), settings.Default())
	nested, err := r.Lookup("/subdir/nested.txt")
	if err != nil {
		t.Fatalf("Lookup err: %v", err)
	}
	if nested.Path != "/subdir/nested.txt" {
		t.Fatalf("Path=%q", nested.Path)
	}

	if _, err := r.Lookup("/subdir/missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lookup(missing) err=%v want ErrNotFound", err)
	}
	if _, err := r.Lookup("/readme.txt/x"); !errors.Is(err, ErrNotDirectory) {
		t.Fatalf("Lookup(file/x) err=%v want ErrNotDirectory", err)
	}
	// Rock Ridge names are case sensitive
	if _, err := r.Lookup("/README.TXT"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lookup(README.TXT) err=%v want ErrNotFound", err)
	}
}

func TestReader_InvalidPolicy(t *testing.T) {
	s := settings.Default()
	r := openImage(t, buildRockRidgeImage(), s)
	if _, err := r.Lookup("bad-name"); err != nil {
		t.Fatalf("skip policy: Lookup(bad-name) err: %v", err)
	}

	s.InvalidPolicy = settings.PolicyFallback
	r = openImage(t, buildRockRidgeImage(), s)
	bad, err := r.Lookup("bad")
	if err != nil {
		t.Fatalf("fallback policy: Lookup(bad) err: %v", err)
	}
	if bad.Name() != "BAD" || bad.Record.Mode != rrip.ModeRegular|rrip.ModeReadOnly {
		t.Fatalf("fallback record name=%q mode=%o", bad.Name(), bad.Record.Mode)
	}
}

func TestReader_RockRidgeDisabled(t *testing.T) {
	s := settings.Default()
	s.RockRidge = false
	r := openImage(t, buildRockRidgeImage(), s)
	if r.RockRidge() {
		t.Fatal("RockRidge()=true want false")
	}
	readme, err := r.Lookup("readme.txt")
	if err != nil {
		t.Fatalf("Lookup err: %v", err)
	}
	if readme.Name() != "README.TXT" {
		t.Fatalf("Name=%q want ISO name", readme.Name())
	}
}

func TestEntry_Open(t *testing.T) {
	r := openImage(t, buildRockRidgeImage(), settings.Default())
	tests := map[string]string{
		"readme.txt":        "hello world",
		"PLAIN.TXT":         "hello",
		"BIG":               "hello-tail",
		"subdir/nested.txt": "hello world",
	}
	for p, want := range tests {
		e, err := r.Lookup(p)
		if err != nil {
			t.Fatalf("Lookup(%s) err: %v", p, err)
		}
		rc, err := e.Open()
		if err != nil {
			t.Fatalf("Open(%s) err: %v", p, err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("ReadAll(%s) err: %v", p, err)
		}
		if string(got) != want {
			t.Fatalf("%s content=%q want %q", p, got, want)
		}
	}
}

func TestSystemUseEntries(t *testing.T) {
	r := openImage(t, buildRockRidgeImage(), settings.Default())
	entries, rec, err := r.SystemUseEntries("stop-name")
	if err != nil {
		t.Fatalf("SystemUseEntries err: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries=%d want 2 (NM, ST)", len(entries))
	}
	if entries[0].Signature != "NM" || entries[0].Result.Status != rrip.Handled {
		t.Fatalf("entries[0]=%+v", entries[0])
	}
	if entries[1].Signature != "ST" || !entries[1].Framing {
		t.Fatalf("entries[1]=%+v", entries[1])
	}
	if rec.Name.String() != "stop-name" {
		t.Fatalf("replayed name=%q", rec.Name.String())
	}

	entries, _, err = r.SystemUseEntries("bad-name")
	if err != nil {
		t.Fatalf("SystemUseEntries(bad-name) err: %v", err)
	}
	if entries[0].Result.Status != rrip.Invalid || entries[0].Result.Tag != rrip.TagPX {
		t.Fatalf("bad PX result=%+v", entries[0].Result)
	}
}

func TestNewReader_NotISO(t *testing.T) {
	data := make([]byte, 20*SectorSize)
	_, err := NewReaderAt(bytes.NewReader(data), int64(len(data)), settings.Default(), quietLogger())
	if !errors.Is(err, ErrNotISO9660) {
		t.Fatalf("err=%v want ErrNotISO9660", err)
	}
}

func TestWalkSystemUse_StopsOnMalformed(t *testing.T) {
	area := append(nmEntry("a"), 'N', 'M', 40, 1, 0)
	var seen []string
	err := walkSystemUse(area, func(offset int, e rrip.Entry) bool {
		seen = append(seen, e.Signature())
		return true
	})
	if !errors.Is(err, errMalformedEntry) {
		t.Fatalf("err=%v want errMalformedEntry", err)
	}
	if len(seen) != 1 {
		t.Fatalf("seen=%q want one entry", seen)
	}
}

func TestDetectSharing(t *testing.T) {
	if skip, ok := detectSharing(spEntry(9)); !ok || skip != 9 {
		t.Fatalf("detectSharing=%d,%v want 9,true", skip, ok)
	}
	bad := spEntry(0)
	bad[5] = 0xEE
	if _, ok := detectSharing(bad); ok {
		t.Fatal("detectSharing accepted bad check bytes")
	}
}

func TestIsoName(t *testing.T) {
	tests := map[string]string{
		"README.TXT;1": "README.TXT",
		"LINK.;1":      "LINK",
		"DIR":          "DIR",
		"\x00":         ".",
		"\x01":         "..",
	}
	for in, want := range tests {
		if got := isoName([]byte(in)); got != want {
			t.Errorf("isoName(%q)=%q want %q", in, got, want)
		}
	}
}

func TestReader_UnusableRockRidgeNames(t *testing.T) {
	ti := newTestImage(21)
	ti.volumeDescriptors()
	ti.put(18,
		dirRecord("\x00", 18, SectorSize, FlagDirectory, spEntry(0)),
		dirRecord("\x01", 18, SectorSize, FlagDirectory),
		dirRecord("EVIL", 19, SectorSize, FlagDirectory, nmEntry("..")),
		dirRecord("SLASH.;1", 20, 5, 0, nmEntry("a/b")),
		dirRecord("NUL.;1", 20, 5, 0, nmEntry("x\x00y")),
		dirRecord("DOT.;1", 20, 5, 0, nmEntry(".")),
	)
	ti.put(19,
		dirRecord("\x00", 19, SectorSize, FlagDirectory),
		dirRecord("\x01", 18, SectorSize, FlagDirectory),
		dirRecord("SECRET.TXT;1", 20, 5, 0, nmEntry("secret.txt")),
	)
	ti.put(20, []byte("hello"))
	r := openImage(t, ti.data, settings.Default())

	got := childNames(t, r.Root())
	want := []string{"EVIL", "SLASH", "NUL", "DOT"}
	if len(got) != len(want) {
		t.Fatalf("children=%q want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("children[%d]=%q want %q", i, got[i], want[i])
		}
	}

	dir, err := r.Lookup("/EVIL")
	if err != nil {
		t.Fatalf("Lookup(/EVIL) err: %v", err)
	}
	if dir == r.Root() || dir.Path != "/EVIL" {
		t.Fatalf("Lookup(/EVIL) path=%q aliases root=%v", dir.Path, dir == r.Root())
	}
	if dir.Record.Name.String() != ".." {
		t.Fatalf("recorded name=%q want ..", dir.Record.Name.String())
	}
	secret, err := r.Lookup("/evil/secret.txt")
	if err != nil {
		t.Fatalf("Lookup(/evil/secret.txt) err: %v", err)
	}
	if secret.Path != "/EVIL/secret.txt" {
		t.Fatalf("secret Path=%q", secret.Path)
	}

	slash, err := r.Lookup("/SLASH")
	if err != nil {
		t.Fatalf("Lookup(/SLASH) err: %v", err)
	}
	if slash.Path != "/SLASH" {
		t.Fatalf("slash Path=%q", slash.Path)
	}
	if _, err := r.Lookup("/a/b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lookup(/a/b) err=%v want ErrNotFound", err)
	}
}

func TestValidName(t *testing.T) {
	tests := map[string]bool{
		"":       false,
		".":      false,
		"..":     false,
		"a/b":    false,
		"/":      false,
		"x\x00y": false,
		"...":    true,
		"a b":    true,
		"file.c": true,
	}
	for name, want := range tests {
		if got := validName(name); got != want {
			t.Errorf("validName(%q)=%v want %v", name, got, want)
		}
	}
}
