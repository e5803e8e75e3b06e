package machdump

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/appsworld/machdump/types"
)

// A Load represents any Mach-O load command.
type Load interface {
	Raw() []byte
	String() string
	Command() types.LoadCmd
	LoadSize() uint32
	Put([]byte, binary.ByteOrder) int
}

// A LoadBytes is the uninterpreted bytes of a Mach-O load command.
type LoadBytes []byte

func (b LoadBytes) String() string {
	s := "["
	for i, a := range b {
		if i > 0 {
			s += " "
			if len(b) > 48 && i >= 16 {
				s += fmt.Sprintf("... (%d bytes)", len(b))
				break
			}
		}
		s += fmt.Sprintf("%x", a)
	}
	s += "]"
	return s
}
func (b LoadBytes) Raw() []byte      { return b }
func (b LoadBytes) LoadSize() uint32 { return uint32(len(b)) }
func (b LoadBytes) Put(p []byte, o binary.ByteOrder) int {
	return copy(p, b)
}

// RawCommand is a command-tagged sequence of bytes. It is what a load
// command the decoder does not understand becomes when the file was
// opened permissive.
type RawCommand struct {
	types.LoadCmd
	LoadBytes
}

func (c RawCommand) String() string {
	return c.LoadCmd.String() + ": " + c.LoadBytes.String()
}

/*******************************************************************************
 * LC_SEGMENT_64
 *******************************************************************************/

// A SegmentHeader is the decoded fixed part of a 64-bit segment command.
type SegmentHeader struct {
	types.LoadCmd
	Len     uint32
	Name    string
	Addr    uint64
	Memsz   uint64
	Offset  uint64
	Filesz  uint64
	Maxprot types.VmProtection
	Prot    types.VmProtection
	Nsect   uint32
	Flag    types.SegFlag
}

func (s *SegmentHeader) String() string {
	return fmt.Sprintf(
		"Seg %s, len=%#x, addr=%#x, memsz=%#x, offset=%#x, filesz=%#x, maxprot=%#x, prot=%#x, nsect=%d, flag=%#x",
		s.Name, s.Len, s.Addr, s.Memsz, s.Offset, s.Filesz, s.Maxprot, s.Prot, s.Nsect, s.Flag)
}

// A Segment represents a Mach-O 64-bit load segment command.
// It owns the section headers declared in its nsects field.
type Segment struct {
	SegmentHeader
	LoadBytes
	Sections []*Section
}

func (s *Segment) String() string {
	return fmt.Sprintf("sz=0x%08x off=0x%08x-0x%08x addr=0x%09x-0x%09x %s/%s   %s%s%s",
		s.Filesz, s.Offset, s.Offset+s.Filesz, s.Addr, s.Addr+s.Memsz, s.Prot, s.Maxprot, s.Name, pad(20-len(s.Name)), s.Flag)
}

func (s *Segment) Command() types.LoadCmd { return s.LoadCmd }
func (s *Segment) LoadSize() uint32       { return s.Len }

// Put serializes the segment header followed by its section records,
// exactly cmdsize bytes.
func (s *Segment) Put(b []byte, o binary.ByteOrder) int {
	n := s.Put64(b, o)
	for _, sec := range s.Sections {
		n += sec.Put64(b[n:], o)
	}
	return n
}

func (s *Segment) Put64(b []byte, o binary.ByteOrder) int {
	o.PutUint32(b[0*4:], uint32(s.LoadCmd))
	o.PutUint32(b[1*4:], s.Len)
	types.PutAtMost16Bytes(b[2*4:], s.Name)
	o.PutUint64(b[6*4+0*8:], s.Addr)
	o.PutUint64(b[6*4+1*8:], s.Memsz)
	o.PutUint64(b[6*4+2*8:], s.Offset)
	o.PutUint64(b[6*4+3*8:], s.Filesz)
	o.PutUint32(b[6*4+4*8:], uint32(s.Maxprot))
	o.PutUint32(b[7*4+4*8:], uint32(s.Prot))
	o.PutUint32(b[8*4+4*8:], s.Nsect)
	o.PutUint32(b[9*4+4*8:], uint32(s.Flag))
	return 10*4 + 4*8
}

type SectionHeader struct {
	Name      string
	Seg       string
	Addr      uint64
	Size      uint64
	Offset    uint32
	Align     uint32
	Reloff    uint32
	Nreloc    uint32
	Flags     types.SectionFlag
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32
}

type Section struct {
	SectionHeader

	// Embed ReaderAt for ReadAt method.
	// Do not embed SectionReader directly
	// to avoid having Read and Seek.
	// If a client wants Read and Seek it must use
	// Open() to avoid fighting over the seek offset
	// with other clients.
	io.ReaderAt
	sr *io.SectionReader
}

func (s *Section) String() string {
	return fmt.Sprintf("sz=0x%08x off=0x%08x-0x%08x addr=0x%09x-0x%09x %s.%s",
		s.Size, s.Offset, uint64(s.Offset)+s.Size, s.Addr, s.Addr+s.Size, s.Seg, s.Name)
}

// Data reads and returns the contents of the section.
func (s *Section) Data() ([]byte, error) {
	dat := make([]byte, s.Size)
	n, err := s.ReadAt(dat, int64(s.Offset))
	if n == len(dat) {
		err = nil
	}
	return dat[0:n], err
}

func (s *Section) Put64(b []byte, o binary.ByteOrder) int {
	types.PutAtMost16Bytes(b[0:], s.Name)
	types.PutAtMost16Bytes(b[16:], s.Seg)
	o.PutUint64(b[8*4+0*8:], s.Addr)
	o.PutUint64(b[8*4+1*8:], s.Size)
	o.PutUint32(b[8*4+2*8:], s.Offset)
	o.PutUint32(b[9*4+2*8:], s.Align)
	o.PutUint32(b[10*4+2*8:], s.Reloff)
	o.PutUint32(b[11*4+2*8:], s.Nreloc)
	o.PutUint32(b[12*4+2*8:], uint32(s.Flags))
	o.PutUint32(b[13*4+2*8:], s.Reserved1)
	o.PutUint32(b[14*4+2*8:], s.Reserved2)
	o.PutUint32(b[15*4+2*8:], s.Reserved3)
	return 16*4 + 2*8
}

// Open returns a new ReadSeeker reading the section payload.
func (s *Section) Open() io.ReadSeeker { return io.NewSectionReader(s.sr, 0, 1<<63-1) }

/*******************************************************************************
 * LC_SYMTAB
 *******************************************************************************/

// A Symtab represents a Mach-O LC_SYMTAB command.
// Syms and the string blob are filled in by the resolution pass that runs
// after all load commands have been decoded.
type Symtab struct {
	LoadBytes
	types.SymtabCmd
	Syms   []Symbol
	strtab []byte
}

func (s *Symtab) String() string {
	if s.Nsyms == 0 && s.Strsize == 0 {
		return "Symbols stripped"
	}
	return fmt.Sprintf("Symbol offset=0x%08X, Num Syms: %d, String offset=0x%08X-0x%08X", s.Symoff, s.Nsyms, s.Stroff, s.Stroff+s.Strsize)
}

func (s *Symtab) Command() types.LoadCmd { return s.LoadCmd }
func (s *Symtab) LoadSize() uint32       { return s.Len }

// StringTable returns the raw string blob read during resolution.
func (s *Symtab) StringTable() []byte { return s.strtab }

func (s *Symtab) Put(b []byte, o binary.ByteOrder) int {
	o.PutUint32(b[0*4:], uint32(s.LoadCmd))
	o.PutUint32(b[1*4:], s.Len)
	o.PutUint32(b[2*4:], s.Symoff)
	o.PutUint32(b[3*4:], s.Nsyms)
	o.PutUint32(b[4*4:], s.Stroff)
	o.PutUint32(b[5*4:], s.Strsize)
	return 6 * 4
}

// A Symbol is a Mach-O 64-bit symbol table entry.
type Symbol struct {
	Name  string
	Type  types.NType
	Sect  uint8
	Desc  types.NDescType
	Value uint64
}

func (s Symbol) String(f *File) string {
	var sec string
	if s.Sect > 0 {
		if c := f.sectionByIndex(uint32(s.Sect)); c != nil {
			sec = fmt.Sprintf("%s.%s", c.Seg, c.Name)
		}
	}
	return fmt.Sprintf("0x%016X \t <type:%s,desc:%s> \t %s", s.Value, s.Type.String(sec), s.Desc, s.Name)
}

/*******************************************************************************
 * LC_DYSYMTAB
 *******************************************************************************/

// A Dysymtab represents a Mach-O LC_DYSYMTAB command.
type Dysymtab struct {
	LoadBytes
	types.DysymtabCmd
}

func (d *Dysymtab) Command() types.LoadCmd { return d.LoadCmd }
func (d *Dysymtab) LoadSize() uint32       { return d.Len }

func (d *Dysymtab) Put(b []byte, o binary.ByteOrder) int {
	o.PutUint32(b[0*4:], uint32(d.LoadCmd))
	o.PutUint32(b[1*4:], d.Len)
	o.PutUint32(b[2*4:], d.Ilocalsym)
	o.PutUint32(b[3*4:], d.Nlocalsym)
	o.PutUint32(b[4*4:], d.Iextdefsym)
	o.PutUint32(b[5*4:], d.Nextdefsym)
	o.PutUint32(b[6*4:], d.Iundefsym)
	o.PutUint32(b[7*4:], d.Nundefsym)
	o.PutUint32(b[8*4:], d.Tocoffset)
	o.PutUint32(b[9*4:], d.Ntoc)
	o.PutUint32(b[10*4:], d.Modtaboff)
	o.PutUint32(b[11*4:], d.Nmodtab)
	o.PutUint32(b[12*4:], d.Extrefsymoff)
	o.PutUint32(b[13*4:], d.Nextrefsyms)
	o.PutUint32(b[14*4:], d.Indirectsymoff)
	o.PutUint32(b[15*4:], d.Nindirectsyms)
	o.PutUint32(b[16*4:], d.Extreloff)
	o.PutUint32(b[17*4:], d.Nextrel)
	o.PutUint32(b[18*4:], d.Locreloff)
	o.PutUint32(b[19*4:], d.Nlocrel)
	return 20 * 4
}

func (d *Dysymtab) String() string {
	var tocStr, modStr, extSymStr, indirSymStr, extRelStr, locRelStr string
	if d.Ntoc == 0 {
		tocStr = "No"
	} else {
		tocStr = fmt.Sprintf("%d at 0x%08x", d.Ntoc, d.Tocoffset)
	}
	if d.Nmodtab == 0 {
		modStr = "No"
	} else {
		modStr = fmt.Sprintf("%d at 0x%08x", d.Nmodtab, d.Modtaboff)
	}
	if d.Nextrefsyms == 0 {
		extSymStr = "None"
	} else {
		extSymStr = fmt.Sprintf("%d at 0x%08x", d.Nextrefsyms, d.Extrefsymoff)
	}
	if d.Nindirectsyms == 0 {
		indirSymStr = "None"
	} else {
		indirSymStr = fmt.Sprintf("%d at 0x%08x", d.Nindirectsyms, d.Indirectsymoff)
	}
	if d.Nextrel == 0 {
		extRelStr = "None"
	} else {
		extRelStr = fmt.Sprintf("%d at 0x%08x", d.Nextrel, d.Extreloff)
	}
	if d.Nlocrel == 0 {
		locRelStr = "None"
	} else {
		locRelStr = fmt.Sprintf("%d at 0x%08x", d.Nlocrel, d.Locreloff)
	}
	return fmt.Sprintf(
		"\n"+
			"\t             Local Syms: %d at %d\n"+
			"\t          External Syms: %d at %d\n"+
			"\t         Undefined Syms: %d at %d\n"+
			"\t                    TOC: %s\n"+
			"\t                 Modtab: %s\n"+
			"\tExternal symtab Entries: %s\n"+
			"\tIndirect symtab Entries: %s\n"+
			"\t External Reloc Entries: %s\n"+
			"\t    Local Reloc Entries: %s",
		d.Nlocalsym, d.Ilocalsym,
		d.Nextdefsym, d.Iextdefsym,
		d.Nundefsym, d.Iundefsym,
		tocStr,
		modStr,
		extSymStr,
		indirSymStr,
		extRelStr,
		locRelStr)
}

/*******************************************************************************
 * LC_BUILD_VERSION
 *******************************************************************************/

// A BuildVersion represents a Mach-O build for platform min OS version
// command. Trailing tool entries are skipped via the declared command size
// and are not decoded.
type BuildVersion struct {
	LoadBytes
	types.BuildVersionCmd
}

func (b *BuildVersion) Command() types.LoadCmd { return b.LoadCmd }
func (b *BuildVersion) LoadSize() uint32       { return b.Len }

func (b *BuildVersion) String() string {
	return fmt.Sprintf("Platform: %s (%d), MinOS: %s (0x%08x), SDK: %s (0x%08x), Tools: %d",
		b.Platform, uint32(b.Platform),
		b.Minos, uint32(b.Minos),
		b.Sdk, uint32(b.Sdk),
		b.NumTools)
}

func (b *BuildVersion) Put(p []byte, o binary.ByteOrder) int {
	o.PutUint32(p[0*4:], uint32(b.LoadCmd))
	o.PutUint32(p[1*4:], b.Len)
	o.PutUint32(p[2*4:], uint32(b.Platform))
	o.PutUint32(p[3*4:], uint32(b.Minos))
	o.PutUint32(p[4*4:], uint32(b.Sdk))
	o.PutUint32(p[5*4:], b.NumTools)
	return 6 * 4
}
