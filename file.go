package machdump

// High level access to low level data structures.

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blacktop/go-dwarf"

	"github.com/appsworld/machdump/types"
)

// A File represents an open Mach-O 64-bit object file.
type File struct {
	types.FileHeader
	ByteOrder binary.ByteOrder
	Loads     []Load

	Symtab   *Symtab
	Dysymtab *Dysymtab

	sr     *io.SectionReader
	closer io.Closer
}

// FileConfig is a File parser config object
type FileConfig struct {
	// Permissive retains load commands the decoder does not understand as
	// opaque RawCommand entries instead of failing the whole parse.
	Permissive bool
}

// Open opens the named file using os.Open and prepares it for use as a Mach-O object.
func Open(name string, config ...FileConfig) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	ff, err := NewFile(f, config...)
	if err != nil {
		f.Close()
		return nil, err
	}
	ff.closer = f
	return ff, nil
}

// Close closes the File.
// If the File was created using NewFile directly instead of Open,
// Close has no effect.
func (f *File) Close() error {
	var err error
	if f.closer != nil {
		err = f.closer.Close()
		f.closer = nil
	}
	return err
}

// NewFile creates a new File for accessing a Mach-O object in an underlying
// reader. The object is expected to start at position 0 in the ReaderAt.
//
// The header magic is recorded but not validated, and all multi-byte fields
// are read in the file's native little-endian order.
func NewFile(r io.ReaderAt, config ...FileConfig) (*File, error) {
	var cfg FileConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	f := new(File)
	f.ByteOrder = binary.LittleEndian
	f.sr = io.NewSectionReader(r, 0, readerSize(r))

	cur, err := newCursor(f.sr, f.ByteOrder)
	if err != nil {
		return nil, err
	}

	// Read entire file header.
	hdat, err := cur.Bytes(types.FileHeaderSize)
	if err != nil {
		return nil, err
	}
	if err := binary.Read(bytes.NewReader(hdat), f.ByteOrder, &f.FileHeader); err != nil {
		return nil, fmt.Errorf("failed to read header: %v", err)
	}

	// Then load commands, each sized by its own cmdsize field.
	f.Loads = make([]Load, 0, f.NCommands)
	for i := uint32(0); i < f.NCommands; i++ {
		offset := cur.Tell()
		prefix, err := cur.Bytes(8)
		if err != nil {
			return nil, err
		}
		cmd, siz := types.LoadCmd(f.ByteOrder.Uint32(prefix[0:4])), f.ByteOrder.Uint32(prefix[4:8])
		if siz < 8 {
			return nil, &FormatError{offset, "invalid command block size", siz}
		}
		body, err := cur.Bytes(int(siz - 8))
		if err != nil {
			return nil, err
		}
		cmddat := append(prefix, body...)
		bo := f.ByteOrder
		b := bytes.NewReader(cmddat)

		switch cmd {
		default:
			if !cfg.Permissive {
				return nil, &UnknownCommandError{offset, cmd}
			}
			f.Loads = append(f.Loads, RawCommand{cmd, LoadBytes(cmddat)})

		case types.LC_SEGMENT_64:
			var seg64 types.Segment64
			if err := binary.Read(b, bo, &seg64); err != nil {
				return nil, &FormatError{offset, "command block too small for LC_SEGMENT_64", nil}
			}
			s := new(Segment)
			s.LoadBytes = cmddat
			s.LoadCmd = cmd
			s.Len = siz
			s.Name = cstring(seg64.Name[0:])
			s.Addr = seg64.Addr
			s.Memsz = seg64.Memsz
			s.Offset = seg64.Offset
			s.Filesz = seg64.Filesz
			s.Maxprot = seg64.Maxprot
			s.Prot = seg64.Prot
			s.Nsect = seg64.Nsect
			s.Flag = seg64.Flag
			s.Sections = make([]*Section, 0, s.Nsect)
			for j := uint32(0); j < s.Nsect; j++ {
				var sh64 types.Section64
				if err := binary.Read(b, bo, &sh64); err != nil {
					return nil, &FormatError{offset, "command block too small for section headers", nil}
				}
				sh := new(Section)
				sh.Name = cstring(sh64.Name[0:])
				sh.Seg = cstring(sh64.Seg[0:])
				sh.Addr = sh64.Addr
				sh.Size = sh64.Size
				sh.Offset = sh64.Offset
				sh.Align = sh64.Align
				sh.Reloff = sh64.Reloff
				sh.Nreloc = sh64.Nreloc
				sh.Flags = sh64.Flags
				sh.Reserved1 = sh64.Reserve1
				sh.Reserved2 = sh64.Reserve2
				sh.Reserved3 = sh64.Reserve3
				sh.ReaderAt = f.sr
				sh.sr = io.NewSectionReader(f.sr, int64(sh.Offset), int64(sh.Size))
				s.Sections = append(s.Sections, sh)
			}
			f.Loads = append(f.Loads, s)

		case types.LC_SYMTAB:
			var hdr types.SymtabCmd
			if err := binary.Read(b, bo, &hdr); err != nil {
				return nil, &FormatError{offset, "command block too small for LC_SYMTAB", nil}
			}
			st := new(Symtab)
			st.LoadBytes = cmddat
			st.SymtabCmd = hdr
			f.Loads = append(f.Loads, st)
			if f.Symtab == nil {
				f.Symtab = st
			}

		case types.LC_DYSYMTAB:
			var hdr types.DysymtabCmd
			if err := binary.Read(b, bo, &hdr); err != nil {
				return nil, &FormatError{offset, "command block too small for LC_DYSYMTAB", nil}
			}
			dt := new(Dysymtab)
			dt.LoadBytes = cmddat
			dt.DysymtabCmd = hdr
			f.Loads = append(f.Loads, dt)
			if f.Dysymtab == nil {
				f.Dysymtab = dt
			}

		case types.LC_BUILD_VERSION:
			var hdr types.BuildVersionCmd
			if err := binary.Read(b, bo, &hdr); err != nil {
				return nil, &FormatError{offset, "command block too small for LC_BUILD_VERSION", nil}
			}
			// Tool entries trailing the fixed fields are covered by
			// cmdsize and deliberately left undecoded.
			bv := new(BuildVersion)
			bv.LoadBytes = cmddat
			bv.BuildVersionCmd = hdr
			f.Loads = append(f.Loads, bv)
		}
	}

	// Second pass: resolve the first symbol table now that the whole
	// command stream has been walked.
	if f.Symtab != nil {
		if err := f.resolveSymtab(cur, f.Symtab); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// readerSize reports the byte size of the underlying stream when it can be
// determined, so absolute seeks can be bounds checked.
func readerSize(r io.ReaderAt) int64 {
	switch v := r.(type) {
	case interface{ Size() int64 }:
		return v.Size()
	case io.Seeker:
		if end, err := v.Seek(0, io.SeekEnd); err == nil {
			return end
		}
	}
	return 1<<63 - 1
}

// resolveSymtab reads the string blob and the nlist_64 array named by the
// symtab command and materializes st.Syms.
func (f *File) resolveSymtab(cur *cursor, st *Symtab) error {
	if err := cur.SeekTo(int64(st.Stroff)); err != nil {
		return err
	}
	strtab, err := cur.Bytes(int(st.Strsize))
	if err != nil {
		return err
	}
	if err := cur.SeekTo(int64(st.Symoff)); err != nil {
		return err
	}
	symoff := cur.Tell()
	symdat, err := cur.Bytes(int(st.Nsyms) * types.Nlist64Size)
	if err != nil {
		return err
	}

	bo := f.ByteOrder
	symtab := make([]Symbol, st.Nsyms)
	b := bytes.NewReader(symdat)
	for i := range symtab {
		var n types.Nlist64
		if err := binary.Read(b, bo, &n); err != nil {
			return fmt.Errorf("failed to read nlist64 record: %v", err)
		}
		sym := &symtab[i]
		if n.Name > 0 {
			if n.Name >= uint32(len(strtab)) {
				return &FormatError{symoff, "invalid name in symbol table", n.Name}
			}
			sym.Name = cstring(strtab[n.Name:])
		}
		sym.Type = n.Type
		sym.Sect = n.Sect
		sym.Desc = n.Desc
		sym.Value = n.Value
	}
	st.Syms = symtab
	st.strtab = strtab
	return nil
}

func cstring(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i == -1 {
		i = len(b)
	}
	return string(b[0:i])
}

func pad(length int) string {
	if length > 0 {
		return strings.Repeat(" ", length)
	}
	return " "
}

func (f *File) String() string {
	return f.FileHeader.String() + f.LoadsString()
}

// LoadsString returns a string representation of all the file's load
// commands, in stream order.
func (f *File) LoadsString() string {
	var loadsStr string
	for i, l := range f.Loads {
		if s, ok := l.(*Segment); ok {
			loadsStr += fmt.Sprintf("%03d: %s %s\n", i, s.Command(), s)
			for _, c := range s.Sections {
				secFlags := ""
				if !c.Flags.IsRegular() {
					secFlags = fmt.Sprintf("(%s)", c.Flags)
				}
				loadsStr += fmt.Sprintf("\tsz=0x%08x off=0x%08x-0x%08x addr=0x%09x-0x%09x\t\t%s.%s%s%s %s\n",
					c.Size, c.Offset, uint64(c.Offset)+c.Size, c.Addr, c.Addr+c.Size, s.Name, c.Name, pad(32-(len(s.Name)+len(c.Name)+1)), c.Flags.AttributesString(), secFlags)
			}
		} else if l != nil {
			loadsStr += fmt.Sprintf("%03d: %s%s%v\n", i, l.Command(), pad(28-len(l.Command().String())), l)
		}
	}
	return loadsStr
}

// Segment returns the first Segment with the given name, or nil if no such segment exists.
func (f *File) Segment(name string) *Segment {
	for _, l := range f.Loads {
		if s, ok := l.(*Segment); ok && s.Name == name {
			return s
		}
	}
	return nil
}

// Segments returns all Segments.
func (f *File) Segments() []*Segment {
	var segs []*Segment
	for _, l := range f.Loads {
		if s, ok := l.(*Segment); ok {
			segs = append(segs, s)
		}
	}
	return segs
}

// Sections returns every section of every segment, in stream order.
func (f *File) Sections() []*Section {
	var secs []*Section
	for _, s := range f.Segments() {
		secs = append(secs, s.Sections...)
	}
	return secs
}

// Section returns the section with the given name in the given segment,
// or nil if no such section exists.
func (f *File) Section(segment, section string) *Section {
	for _, sec := range f.Sections() {
		if sec.Seg == segment && sec.Name == section {
			return sec
		}
	}
	return nil
}

// sectionByIndex resolves the 1-based section ordinal used by nlist n_sect.
func (f *File) sectionByIndex(n uint32) *Section {
	secs := f.Sections()
	if n == 0 || int(n) > len(secs) {
		return nil
	}
	return secs[n-1]
}

// BuildVersion returns the build version load command, or nil if no build version exists.
func (f *File) BuildVersion() *BuildVersion {
	for _, l := range f.Loads {
		if b, ok := l.(*BuildVersion); ok {
			return b
		}
	}
	return nil
}

// DWARF returns the DWARF debug information for the object file.
func (f *File) DWARF() (*dwarf.Data, error) {
	dwarfSuffix := func(s *Section) string {
		switch {
		case strings.HasPrefix(s.Name, "__debug_"):
			return s.Name[8:]
		case strings.HasPrefix(s.Name, "__zdebug_"):
			return s.Name[9:]
		default:
			return ""
		}
	}
	sectionData := func(s *Section) ([]byte, error) {
		b, err := s.Data()
		if err != nil && uint64(len(b)) < s.Size {
			return nil, err
		}

		if len(b) >= 12 && string(b[:4]) == "ZLIB" {
			dlen := binary.BigEndian.Uint64(b[4:12])
			dbuf := make([]byte, dlen)
			r, err := zlib.NewReader(bytes.NewBuffer(b[12:]))
			if err != nil {
				return nil, err
			}
			if _, err := io.ReadFull(r, dbuf); err != nil {
				return nil, err
			}
			if err := r.Close(); err != nil {
				return nil, err
			}
			b = dbuf
		}
		return b, nil
	}

	// There are many other DWARF sections, but these
	// are the ones the dwarf package uses.
	// Don't bother loading others.
	var dat = map[string][]byte{"abbrev": nil, "info": nil, "str": nil, "line": nil, "ranges": nil}
	secs := f.Sections()
	for _, s := range secs {
		suffix := dwarfSuffix(s)
		if suffix == "" {
			continue
		}
		if _, ok := dat[suffix]; !ok {
			continue
		}
		b, err := sectionData(s)
		if err != nil {
			return nil, err
		}
		dat[suffix] = b
	}

	d, err := dwarf.New(dat["abbrev"], nil, nil, dat["info"], dat["line"], nil, dat["ranges"], dat["str"])
	if err != nil {
		return nil, err
	}

	// Look for DWARF4 .debug_types sections.
	for i, s := range secs {
		suffix := dwarfSuffix(s)
		if suffix != "types" {
			continue
		}

		b, err := sectionData(s)
		if err != nil {
			return nil, err
		}

		err = d.AddTypes(fmt.Sprintf("types-%d", i), b)
		if err != nil {
			return nil, err
		}
	}

	return d, nil
}
