package machdump

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/appsworld/machdump/types"
)

var le = binary.LittleEndian

func objHeader() types.FileHeader {
	return types.FileHeader{
		Magic:  types.Magic64,
		CPU:    types.CPUAmd64,
		SubCPU: types.CPUSubtypeX8664All,
		Type:   types.MH_OBJECT,
	}
}

// buildImage serializes a header plus load commands into an in-memory
// object image. NCommands and SizeCommands are derived from the loads.
func buildImage(t *testing.T, hdr types.FileHeader, loads ...Load) []byte {
	t.Helper()
	var cmds []byte
	for _, l := range loads {
		b := make([]byte, l.LoadSize())
		if n := l.Put(b, le); n != len(b) {
			t.Fatalf("serialized %d bytes for %s, declared %d", n, l.Command(), len(b))
		}
		cmds = append(cmds, b...)
	}
	hdr.NCommands = uint32(len(loads))
	hdr.SizeCommands = uint32(len(cmds))
	img := make([]byte, types.FileHeaderSize)
	hdr.Put(img, le)
	return append(img, cmds...)
}

func parseImage(t *testing.T, img []byte, config ...FileConfig) *File {
	t.Helper()
	f, err := NewFile(bytes.NewReader(img), config...)
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	return f
}

func textSegment(nsect uint32) *Segment {
	s := &Segment{
		SegmentHeader: SegmentHeader{
			LoadCmd: types.LC_SEGMENT_64,
			Len:     72 + 80*nsect,
			Name:    "__TEXT",
			Addr:    0x0,
			Memsz:   0x100,
			Offset:  0x0,
			Filesz:  0x100,
			Maxprot: 7,
			Prot:    5,
			Nsect:   nsect,
		},
	}
	names := []string{"__text", "__cstring", "__const", "__info_plist"}
	for i := uint32(0); i < nsect; i++ {
		s.Sections = append(s.Sections, &Section{
			SectionHeader: SectionHeader{
				Name:   names[int(i)%len(names)],
				Seg:    "__TEXT",
				Addr:   uint64(0x40 * i),
				Size:   0x40,
				Offset: uint32(0x200 + 0x40*i),
				Align:  4,
			},
		})
	}
	return s
}

func buildVersionCmd() *BuildVersion {
	return &BuildVersion{
		BuildVersionCmd: types.BuildVersionCmd{
			LoadCmd:  types.LC_BUILD_VERSION,
			Len:      24,
			Platform: types.PlatformMacOS,
			Minos:    0x000a0000,
			Sdk:      0x000e0000,
			NumTools: 0,
		},
	}
}

func TestEmptyCommandList(t *testing.T) {
	f := parseImage(t, buildImage(t, objHeader()))
	if len(f.Loads) != 0 {
		t.Errorf("Loads = %d commands, want 0", len(f.Loads))
	}
	if f.Magic != types.Magic64 {
		t.Errorf("Magic = %v, want %v", f.Magic, types.Magic64)
	}
	if f.Type != types.MH_OBJECT {
		t.Errorf("Type = %v, want %v", f.Type, types.MH_OBJECT)
	}
	if f.Symtab != nil {
		t.Errorf("Symtab = %v, want nil", f.Symtab)
	}
}

func TestLoadOrderPreserved(t *testing.T) {
	f := parseImage(t, buildImage(t, objHeader(),
		buildVersionCmd(),
		&Dysymtab{DysymtabCmd: types.DysymtabCmd{LoadCmd: types.LC_DYSYMTAB, Len: 80}},
		textSegment(0),
	))
	want := []types.LoadCmd{types.LC_BUILD_VERSION, types.LC_DYSYMTAB, types.LC_SEGMENT_64}
	var got []types.LoadCmd
	for _, l := range f.Loads {
		got = append(got, l.Command())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("load command order mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildVersionDecode(t *testing.T) {
	f := parseImage(t, buildImage(t, objHeader(), buildVersionCmd()))
	bv := f.BuildVersion()
	if bv == nil {
		t.Fatal("BuildVersion() = nil")
	}
	if bv.Platform != types.PlatformMacOS {
		t.Errorf("Platform = %d, want %d", bv.Platform, types.PlatformMacOS)
	}
	if got, want := bv.Minos.String(), "10.0.0"; got != want {
		t.Errorf("Minos = %q, want %q", got, want)
	}
	if got, want := bv.Sdk.String(), "14.0.0"; got != want {
		t.Errorf("Sdk = %q, want %q", got, want)
	}
	if bv.NumTools != 0 {
		t.Errorf("NumTools = %d, want 0", bv.NumTools)
	}
	if s := bv.String(); !strings.Contains(s, "macOS") || !strings.Contains(s, "0x000a0000") {
		t.Errorf("String() = %q, want decoded and raw forms", s)
	}
}

// A build version command whose cmdsize covers trailing tool entries must
// not throw off the position of the next command.
func TestBuildVersionToolEntriesSkipped(t *testing.T) {
	bv := make([]byte, 32)
	le.PutUint32(bv[0:], uint32(types.LC_BUILD_VERSION))
	le.PutUint32(bv[4:], 32) // 24 fixed + one 8-byte tool entry
	le.PutUint32(bv[8:], uint32(types.PlatformMacOS))
	le.PutUint32(bv[12:], 0x000a0000)
	le.PutUint32(bv[16:], 0x000e0000)
	le.PutUint32(bv[20:], 1)          // ntools
	le.PutUint32(bv[24:], 3)          // TOOL_LD
	le.PutUint32(bv[28:], 0x03cb0000) // tool version

	f := parseImage(t, buildImage(t, objHeader(),
		RawCommand{types.LC_BUILD_VERSION, LoadBytes(bv)},
		&Dysymtab{DysymtabCmd: types.DysymtabCmd{LoadCmd: types.LC_DYSYMTAB, Len: 80, Nlocalsym: 7}},
	))
	if len(f.Loads) != 2 {
		t.Fatalf("Loads = %d commands, want 2", len(f.Loads))
	}
	bvc, ok := f.Loads[0].(*BuildVersion)
	if !ok {
		t.Fatalf("Loads[0] = %T, want *BuildVersion", f.Loads[0])
	}
	if bvc.NumTools != 1 {
		t.Errorf("NumTools = %d, want 1", bvc.NumTools)
	}
	dt, ok := f.Loads[1].(*Dysymtab)
	if !ok {
		t.Fatalf("Loads[1] = %T, want *Dysymtab", f.Loads[1])
	}
	if dt.Nlocalsym != 7 {
		t.Errorf("Nlocalsym = %d, want 7", dt.Nlocalsym)
	}
}

func TestSegmentSections(t *testing.T) {
	f := parseImage(t, buildImage(t, objHeader(), textSegment(2)))
	seg := f.Segment("__TEXT")
	if seg == nil {
		t.Fatal(`Segment("__TEXT") = nil`)
	}
	if len(seg.Sections) != 2 {
		t.Fatalf("segment owns %d sections, want 2", len(seg.Sections))
	}
	sec := f.Section("__TEXT", "__cstring")
	if sec == nil {
		t.Fatal(`Section("__TEXT", "__cstring") = nil`)
	}
	if sec.Align != 4 {
		t.Errorf("Align = %d, want 4", sec.Align)
	}
	if got := f.Sections(); len(got) != 2 {
		t.Errorf("Sections() = %d entries, want 2", len(got))
	}
}

func TestSegmentTruncatedSectionHeaders(t *testing.T) {
	// nsects says two sections but cmdsize only covers the fixed header.
	seg := make([]byte, 72)
	le.PutUint32(seg[0:], uint32(types.LC_SEGMENT_64))
	le.PutUint32(seg[4:], 72)
	copy(seg[8:], "__TEXT")
	le.PutUint32(seg[64:], 2) // nsects

	_, err := NewFile(bytes.NewReader(buildImage(t, objHeader(),
		RawCommand{types.LC_SEGMENT_64, LoadBytes(seg)})))
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("NewFile() error = %v, want FormatError", err)
	}
}

// symtabImage lays out header, LC_SYMTAB, the nlist array and the string
// blob, returning the image. Three symbols: "foo", "bar" and one unnamed.
func symtabImage(t *testing.T) []byte {
	t.Helper()
	const nsyms = 3
	symoff := uint32(types.FileHeaderSize + 24)
	stroff := symoff + nsyms*types.Nlist64Size
	strtab := []byte("\x00foo\x00bar\x00")

	st := &Symtab{SymtabCmd: types.SymtabCmd{
		LoadCmd: types.LC_SYMTAB,
		Len:     24,
		Symoff:  symoff,
		Nsyms:   nsyms,
		Stroff:  stroff,
		Strsize: uint32(len(strtab)),
	}}
	img := buildImage(t, objHeader(), st)

	nlist := func(strx uint32, typ uint8, sect uint8, desc uint16, value uint64) []byte {
		b := make([]byte, types.Nlist64Size)
		le.PutUint32(b[0:], strx)
		b[4] = typ
		b[5] = sect
		le.PutUint16(b[6:], desc)
		le.PutUint64(b[8:], value)
		return b
	}
	img = append(img, nlist(1, 0x0f, 1, 0, 0x100)...) // N_SECT|N_EXT -> "foo"
	img = append(img, nlist(5, 0x01, 0, 0, 0)...)     // undefined external -> "bar"
	img = append(img, nlist(0, 0x0e, 1, 0, 0x140)...) // unnamed
	return append(img, strtab...)
}

func TestSymtabResolution(t *testing.T) {
	f := parseImage(t, symtabImage(t))
	if f.Symtab == nil {
		t.Fatal("Symtab = nil")
	}
	want := []Symbol{
		{Name: "foo", Type: 0x0f, Sect: 1, Value: 0x100},
		{Name: "bar", Type: 0x01},
		{Name: "", Type: 0x0e, Sect: 1, Value: 0x140},
	}
	if diff := cmp.Diff(want, f.Symtab.Syms); diff != "" {
		t.Errorf("symbol table mismatch (-want +got):\n%s", diff)
	}
	if got := f.Symtab.StringTable(); !bytes.Equal(got, []byte("\x00foo\x00bar\x00")) {
		t.Errorf("StringTable() = %q", got)
	}
}

func TestSymtabInvalidNameOffset(t *testing.T) {
	img := symtabImage(t)
	// Point the first record's n_strx past the string blob.
	symoff := types.FileHeaderSize + 24
	le.PutUint32(img[symoff:], 0x4000)

	_, err := NewFile(bytes.NewReader(img))
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("NewFile() error = %v, want FormatError", err)
	}
}

func TestSymtabSeekPastEnd(t *testing.T) {
	st := &Symtab{SymtabCmd: types.SymtabCmd{
		LoadCmd: types.LC_SYMTAB,
		Len:     24,
		Symoff:  0x10000,
		Nsyms:   1,
		Stroff:  0x10000,
		Strsize: 8,
	}}
	_, err := NewFile(bytes.NewReader(buildImage(t, objHeader(), st)))
	var serr *SeekError
	if !errors.As(err, &serr) {
		t.Fatalf("NewFile() error = %v, want SeekError", err)
	}
}

func TestOnlyFirstSymtabResolved(t *testing.T) {
	// Two symtab commands; both name empty tables that point at the end of
	// the command region so resolution succeeds with zero symbols.
	end := uint32(types.FileHeaderSize + 48)
	first := &Symtab{SymtabCmd: types.SymtabCmd{
		LoadCmd: types.LC_SYMTAB, Len: 24, Symoff: end, Stroff: end,
	}}
	second := &Symtab{SymtabCmd: types.SymtabCmd{
		LoadCmd: types.LC_SYMTAB, Len: 24, Symoff: end, Stroff: end,
	}}
	f := parseImage(t, buildImage(t, objHeader(), first, second))

	if f.Symtab != f.Loads[0].(*Symtab) {
		t.Error("Symtab does not point at the first LC_SYMTAB")
	}
	if f.Loads[0].(*Symtab).Syms == nil {
		t.Error("first symtab was not resolved")
	}
	if syms := f.Loads[1].(*Symtab).Syms; syms != nil {
		t.Errorf("second symtab resolved to %d symbols, want none", len(syms))
	}
}

func TestUnknownCommandFatal(t *testing.T) {
	raw := make([]byte, 16)
	le.PutUint32(raw[0:], 0x99)
	le.PutUint32(raw[4:], 16)

	f, err := NewFile(bytes.NewReader(buildImage(t, objHeader(),
		RawCommand{types.LoadCmd(0x99), LoadBytes(raw)})))
	if f != nil {
		t.Error("NewFile() returned a partial result")
	}
	var uerr *UnknownCommandError
	if !errors.As(err, &uerr) {
		t.Fatalf("NewFile() error = %v, want UnknownCommandError", err)
	}
	if uerr.Cmd != 0x99 {
		t.Errorf("Cmd = %#x, want 0x99", uint32(uerr.Cmd))
	}
	if !strings.Contains(err.Error(), "0x00000099") {
		t.Errorf("Error() = %q, want zero-padded tag value", err)
	}
}

func TestPermissiveKeepsUnknown(t *testing.T) {
	raw := make([]byte, 16)
	le.PutUint32(raw[0:], 0x99)
	le.PutUint32(raw[4:], 16)

	f := parseImage(t, buildImage(t, objHeader(),
		buildVersionCmd(),
		RawCommand{types.LoadCmd(0x99), LoadBytes(raw)},
		textSegment(0),
	), FileConfig{Permissive: true})

	if len(f.Loads) != 3 {
		t.Fatalf("Loads = %d commands, want 3", len(f.Loads))
	}
	rc, ok := f.Loads[1].(RawCommand)
	if !ok {
		t.Fatalf("Loads[1] = %T, want RawCommand", f.Loads[1])
	}
	if rc.LoadCmd != 0x99 {
		t.Errorf("LoadCmd = %#x, want 0x99", uint32(rc.LoadCmd))
	}
	if diff := cmp.Diff([]byte(raw), rc.Raw()); diff != "" {
		t.Errorf("raw bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestTruncatedHeader(t *testing.T) {
	_, err := NewFile(bytes.NewReader(make([]byte, 10)))
	var terr *TruncatedError
	if !errors.As(err, &terr) {
		t.Fatalf("NewFile() error = %v, want TruncatedError", err)
	}
	if terr.Off != 0 || terr.Want != types.FileHeaderSize {
		t.Errorf("TruncatedError = %+v, want Off=0 Want=%d", terr, types.FileHeaderSize)
	}
}

func TestTruncatedCommandStream(t *testing.T) {
	img := buildImage(t, objHeader(), buildVersionCmd())
	_, err := NewFile(bytes.NewReader(img[:len(img)-8]))
	var terr *TruncatedError
	if !errors.As(err, &terr) {
		t.Fatalf("NewFile() error = %v, want TruncatedError", err)
	}
}

func TestCommandSizeTooSmall(t *testing.T) {
	img := buildImage(t, objHeader(), buildVersionCmd())
	le.PutUint32(img[types.FileHeaderSize+4:], 4) // cmdsize < 8

	_, err := NewFile(bytes.NewReader(img))
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("NewFile() error = %v, want FormatError", err)
	}
}

func TestParseIsIdempotent(t *testing.T) {
	img := symtabImage(t)
	f1 := parseImage(t, img)
	f2 := parseImage(t, img)

	if diff := cmp.Diff(f1.FileHeader, f2.FileHeader); diff != "" {
		t.Errorf("header mismatch (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(f1.Symtab.Syms, f2.Symtab.Syms); diff != "" {
		t.Errorf("symbols mismatch (-first +second):\n%s", diff)
	}
	if f1.String() != f2.String() {
		t.Error("String() output differs between parses of the same image")
	}
}

func TestPutParseRoundTrip(t *testing.T) {
	loads := []Load{textSegment(1), buildVersionCmd(),
		&Dysymtab{DysymtabCmd: types.DysymtabCmd{LoadCmd: types.LC_DYSYMTAB, Len: 80, Nundefsym: 2, Iundefsym: 1}}}
	f := parseImage(t, buildImage(t, objHeader(), loads...))

	seg := f.Segment("__TEXT")
	if seg == nil || seg.Sections[0].Name != "__text" {
		t.Fatal("segment did not survive the round trip")
	}
	dt := f.Dysymtab
	if dt == nil || dt.Nundefsym != 2 || dt.Iundefsym != 1 {
		t.Fatalf("Dysymtab = %+v, want Nundefsym=2 Iundefsym=1", dt)
	}

	// Serializing the decoded commands again must reproduce the originals.
	for i, l := range f.Loads {
		got := make([]byte, l.LoadSize())
		l.Put(got, le)
		want := make([]byte, loads[i].LoadSize())
		loads[i].Put(want, le)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("command %d reserialization mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestLoadsStringListing(t *testing.T) {
	f := parseImage(t, buildImage(t, objHeader(), textSegment(1), buildVersionCmd()))
	out := f.String()
	for _, want := range []string{"LC_SEGMENT_64", "__TEXT", "__text", "LC_BUILD_VERSION", "macOS"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() output missing %q:\n%s", want, out)
		}
	}
}
