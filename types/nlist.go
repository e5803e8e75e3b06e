package types

import (
	"fmt"
	"strings"
)

// An Nlist64 is a Mach-O 64-bit symbol table entry.
type Nlist64 struct {
	Name  uint32 // index into the string table
	Type  NType
	Sect  uint8
	Desc  NDescType
	Value uint64
}

// Nlist64Size is the on-disk size of an nlist_64 record.
const Nlist64Size = 16

type NType uint8

const (
	N_STAB NType = 0xe0 /* if any of these bits set, a symbolic debugging entry */
	N_PEXT NType = 0x10 /* private external symbol bit */
	N_TYPE NType = 0x0e /* mask for the type bits */
	N_EXT  NType = 0x01 /* external symbol bit, set for external symbols */
)

const (
	N_UNDF NType = 0x0 /* undefined, n_sect == NO_SECT */
	N_ABS  NType = 0x2 /* absolute, n_sect == NO_SECT */
	N_SECT NType = 0xe /* defined in section number n_sect */
	N_PBUD NType = 0xc /* prebound undefined (defined in a dylib) */
	N_INDR NType = 0xa /* indirect */
)

func (t NType) IsDebugSym() bool {
	return (t & N_STAB) != 0
}

func (t NType) IsPrivateExternalSym() bool {
	return (t & N_PEXT) != 0
}

func (t NType) IsExternalSym() bool {
	return (t & N_EXT) != 0
}

func (t NType) IsUndefinedSym() bool {
	return (t & N_TYPE) == N_UNDF
}
func (t NType) IsAbsoluteSym() bool {
	return (t & N_TYPE) == N_ABS
}
func (t NType) IsDefinedInSection() bool {
	return (t & N_TYPE) == N_SECT
}
func (t NType) IsPreboundUndefinedSym() bool {
	return (t & N_TYPE) == N_PBUD
}
func (t NType) IsIndirectSym() bool {
	return (t & N_TYPE) == N_INDR
}

func (t NType) String(sec string) string {
	var out []string
	if t.IsDebugSym() {
		out = append(out, "debug")
	}
	if t.IsPrivateExternalSym() {
		out = append(out, "private external")
	}
	if t.IsExternalSym() {
		out = append(out, "external")
	}
	switch t & N_TYPE {
	case N_UNDF:
		out = append(out, "undefined")
	case N_ABS:
		out = append(out, "absolute")
	case N_SECT:
		if len(sec) > 0 {
			out = append(out, fmt.Sprintf("(%s)", sec))
		}
	case N_PBUD:
		out = append(out, "prebound undefined")
	case N_INDR:
		out = append(out, "indirect")
	}
	return strings.Join(out, "|")
}

type NDescType uint16

const (
	REFERENCE_TYPE                            NDescType = 0x7
	REFERENCE_FLAG_UNDEFINED_NON_LAZY         NDescType = 0x0
	REFERENCE_FLAG_UNDEFINED_LAZY             NDescType = 0x1
	REFERENCE_FLAG_DEFINED                    NDescType = 0x2
	REFERENCE_FLAG_PRIVATE_DEFINED            NDescType = 0x3
	REFERENCE_FLAG_PRIVATE_UNDEFINED_NON_LAZY NDescType = 0x4
	REFERENCE_FLAG_PRIVATE_UNDEFINED_LAZY     NDescType = 0x5

	REFERENCED_DYNAMICALLY NDescType = 0x0010

	N_NO_DEAD_STRIP   NDescType = 0x0020 /* symbol is not to be dead stripped */
	N_DESC_DISCARDED  NDescType = 0x0020 /* symbol is discarded */
	N_WEAK_REF        NDescType = 0x0040 /* symbol is weak referenced */
	N_WEAK_DEF        NDescType = 0x0080 /* coalesced symbol is a weak definition */
	N_REF_TO_WEAK     NDescType = 0x0080 /* reference to a weak symbol */
	N_ARM_THUMB_DEF   NDescType = 0x0008 /* symbol is a Thumb function (ARM) */
	N_SYMBOL_RESOLVER NDescType = 0x0100
	N_ALT_ENTRY       NDescType = 0x0200
	N_COLD_FUNC       NDescType = 0x0400
)

func (d NDescType) IsReferencedDynamically() bool {
	return (d & REFERENCED_DYNAMICALLY) != 0
}
func (d NDescType) IsNoDeadStrip() bool {
	return (d & N_NO_DEAD_STRIP) != 0
}
func (d NDescType) IsWeakReferenced() bool {
	return (d & N_WEAK_REF) != 0
}
func (d NDescType) IsWeakDefintion() bool {
	return (d & N_WEAK_DEF) != 0
}
func (d NDescType) IsArmThumbDefintion() bool {
	return (d & N_ARM_THUMB_DEF) != 0
}
func (d NDescType) IsSymbolResolver() bool {
	return (d & N_SYMBOL_RESOLVER) != 0
}
func (d NDescType) IsAltEntry() bool {
	return (d & N_ALT_ENTRY) != 0
}

func (d NDescType) String() string {
	var out []string
	if d.IsReferencedDynamically() {
		out = append(out, "referenced dynamically")
	}
	if d.IsNoDeadStrip() {
		out = append(out, "no dead strip")
	}
	if d.IsWeakReferenced() {
		out = append(out, "weak ref")
	}
	if d.IsWeakDefintion() {
		out = append(out, "weak def")
	}
	if d.IsArmThumbDefintion() {
		out = append(out, "thumb")
	}
	if d.IsSymbolResolver() {
		out = append(out, "resolver")
	}
	if d.IsAltEntry() {
		out = append(out, "alt entry")
	}
	return strings.Join(out, "|")
}
