package types

import "strings"

type SectionFlag uint32

const (
	SectionType       SectionFlag = 0x000000ff /* 256 section types */
	SectionAttributes SectionFlag = 0xffffff00 /*  24 section attributes */
)

const (
	Regular                         SectionFlag = 0x0 /* regular section */
	Zerofill                        SectionFlag = 0x1 /* zero fill on demand section */
	CstringLiterals                 SectionFlag = 0x2 /* section with only literal C strings*/
	FourByteLiterals                SectionFlag = 0x3 /* section with only 4 byte literals */
	EightByteLiterals               SectionFlag = 0x4 /* section with only 8 byte literals */
	LiteralPointers                 SectionFlag = 0x5 /* section with only pointers to literals */
	NonLazySymbolPointers           SectionFlag = 0x6 /* section with only non-lazy symbol pointers */
	LazySymbolPointers              SectionFlag = 0x7 /* section with only lazy symbol pointers */
	SymbolStubs                     SectionFlag = 0x8 /* section with only symbol stubs, byte size of stub in the reserved2 field */
	ModInitFuncPointers             SectionFlag = 0x9 /* section with only function pointers for initialization*/
	ModTermFuncPointers             SectionFlag = 0xa /* section with only function pointers for termination */
	Coalesced                       SectionFlag = 0xb /* section contains symbols that are to be coalesced */
	GbZerofill                      SectionFlag = 0xc /* zero fill on demand section that can be larger than 4 gigabytes) */
	Interposing                     SectionFlag = 0xd /* section with only pairs of function pointers for interposing */
	SixteenByteLiterals             SectionFlag = 0xe /* section with only 16 byte literals */
	DtraceDof                       SectionFlag = 0xf /* section contains DTrace Object Format */
	LazyDylibSymbolPointers         SectionFlag = 0x10
	ThreadLocalRegular              SectionFlag = 0x11 /* template of initial values for TLVs */
	ThreadLocalZerofill             SectionFlag = 0x12 /* template of initial values for TLVs */
	ThreadLocalVariables            SectionFlag = 0x13 /* TLV descriptors */
	ThreadLocalVariablePointers     SectionFlag = 0x14 /* pointers to TLV descriptors */
	ThreadLocalInitFunctionPointers SectionFlag = 0x15 /* functions to call to initialize TLV values */
	InitFuncOffsets                 SectionFlag = 0x16 /* 32-bit offsets to initializers */
)

const (
	AttrPureInstructions  SectionFlag = 0x80000000 /* section contains only true machine instructions */
	AttrNoToc             SectionFlag = 0x40000000 /* section contains coalesced symbols that are not to be in a ranlib table of contents */
	AttrStripStaticSyms   SectionFlag = 0x20000000 /* ok to strip static symbols in this section in files with the MH_DYLDLINK flag */
	AttrNoDeadStrip       SectionFlag = 0x10000000 /* no dead stripping */
	AttrLiveSupport       SectionFlag = 0x08000000 /* blocks are live if they reference live blocks */
	AttrSelfModifyingCode SectionFlag = 0x04000000 /* used with i386 code stubs written on by dyld */
	AttrDebug             SectionFlag = 0x02000000 /* a debug section */
	AttrSomeInstructions  SectionFlag = 0x00000400 /* section contains some machine instructions */
	AttrExtReloc          SectionFlag = 0x00000200 /* section has external relocation entries */
	AttrLocReloc          SectionFlag = 0x00000100 /* section has local relocation entries */
)

var sectionTypeStrings = []intName{
	{uint32(Regular), "Regular"},
	{uint32(Zerofill), "Zerofill"},
	{uint32(CstringLiterals), "CstringLiterals"},
	{uint32(FourByteLiterals), "FourByteLiterals"},
	{uint32(EightByteLiterals), "EightByteLiterals"},
	{uint32(LiteralPointers), "LiteralPointers"},
	{uint32(NonLazySymbolPointers), "NonLazySymbolPointers"},
	{uint32(LazySymbolPointers), "LazySymbolPointers"},
	{uint32(SymbolStubs), "SymbolStubs"},
	{uint32(ModInitFuncPointers), "ModInitFuncPointers"},
	{uint32(ModTermFuncPointers), "ModTermFuncPointers"},
	{uint32(Coalesced), "Coalesced"},
	{uint32(GbZerofill), "GbZerofill"},
	{uint32(Interposing), "Interposing"},
	{uint32(SixteenByteLiterals), "SixteenByteLiterals"},
	{uint32(DtraceDof), "DtraceDof"},
	{uint32(LazyDylibSymbolPointers), "LazyDylibSymbolPointers"},
	{uint32(ThreadLocalRegular), "ThreadLocalRegular"},
	{uint32(ThreadLocalZerofill), "ThreadLocalZerofill"},
	{uint32(ThreadLocalVariables), "ThreadLocalVariables"},
	{uint32(ThreadLocalVariablePointers), "ThreadLocalVariablePointers"},
	{uint32(ThreadLocalInitFunctionPointers), "ThreadLocalInitFunctionPointers"},
	{uint32(InitFuncOffsets), "InitFuncOffsets"},
}

func (f SectionFlag) IsRegular() bool {
	return (f & SectionType) == Regular
}

func (f SectionFlag) String() string {
	return stringName(uint32(f&SectionType), sectionTypeStrings, false)
}

// AttributesList returns the names of the attribute bits that are set.
func (f SectionFlag) AttributesList() []string {
	var attrs []string
	if f&AttrPureInstructions != 0 {
		attrs = append(attrs, "PureInstructions")
	}
	if f&AttrNoToc != 0 {
		attrs = append(attrs, "NoToc")
	}
	if f&AttrStripStaticSyms != 0 {
		attrs = append(attrs, "StripStaticSyms")
	}
	if f&AttrNoDeadStrip != 0 {
		attrs = append(attrs, "NoDeadStrip")
	}
	if f&AttrLiveSupport != 0 {
		attrs = append(attrs, "LiveSupport")
	}
	if f&AttrSelfModifyingCode != 0 {
		attrs = append(attrs, "SelfModifyingCode")
	}
	if f&AttrDebug != 0 {
		attrs = append(attrs, "Debug")
	}
	if f&AttrSomeInstructions != 0 {
		attrs = append(attrs, "SomeInstructions")
	}
	if f&AttrExtReloc != 0 {
		attrs = append(attrs, "ExtReloc")
	}
	if f&AttrLocReloc != 0 {
		attrs = append(attrs, "LocReloc")
	}
	return attrs
}

func (f SectionFlag) AttributesString() string {
	return strings.Join(f.AttributesList(), "|")
}
