package types

import (
	"bytes"
	"testing"
)

func TestVersionString(t *testing.T) {
	tests := []struct {
		in   Version
		want string
	}{
		{0x000a0000, "10.0.0"},
		{0x000c0103, "12.1.3"},
		{0x000e0500, "14.5.0"},
		{0, "0.0.0"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("Version(%#08x).String() = %q, want %q", uint32(tt.in), got, tt.want)
		}
	}
}

func TestVmProtectionString(t *testing.T) {
	tests := []struct {
		in   VmProtection
		want string
	}{
		{7, "rwx"},
		{5, "r-x"},
		{1, "r--"},
		{0, "---"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("VmProtection(%d).String() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadCmdString(t *testing.T) {
	if got, want := LC_SEGMENT_64.String(), "LC_SEGMENT_64"; got != want {
		t.Errorf("LC_SEGMENT_64.String() = %q, want %q", got, want)
	}
	if got, want := LC_BUILD_VERSION.String(), "LC_BUILD_VERSION"; got != want {
		t.Errorf("LC_BUILD_VERSION.String() = %q, want %q", got, want)
	}
	if got, want := LoadCmd(0x99).String(), "0x99"; got != want {
		t.Errorf("LoadCmd(0x99).String() = %q, want %q", got, want)
	}
}

func TestPlatformString(t *testing.T) {
	if got, want := PlatformMacOS.String(), "macOS"; got != want {
		t.Errorf("PlatformMacOS.String() = %q, want %q", got, want)
	}
	if got, want := PlatformDriverKit.String(), "DriverKit"; got != want {
		t.Errorf("PlatformDriverKit.String() = %q, want %q", got, want)
	}
}

func TestHeaderFlagList(t *testing.T) {
	var f HeaderFlag
	f.Set(NoUndefs, true)
	f.Set(TwoLevel, true)
	if !f.Has(NoUndefs) || !f.Has(TwoLevel) || f.Has(DyldLink) {
		t.Fatalf("flag membership wrong: %#x", uint32(f))
	}
	if got, want := f.Flags(), "NoUndefs, TwoLevel"; got != want {
		t.Errorf("Flags() = %q, want %q", got, want)
	}
	f.Set(NoUndefs, false)
	if got := f.List(); len(got) != 1 || got[0] != "TwoLevel" {
		t.Errorf("List() = %v, want [TwoLevel]", got)
	}
}

func TestPutAtMost16Bytes(t *testing.T) {
	b := make([]byte, 16)
	PutAtMost16Bytes(b, "__TEXT")
	if want := append([]byte("__TEXT"), make([]byte, 10)...); !bytes.Equal(b, want) {
		t.Errorf("short name = %q", b)
	}
	PutAtMost16Bytes(b, "__a_very_long_section_name")
	if want := []byte("__a_very_long_se"); !bytes.Equal(b, want) {
		t.Errorf("long name = %q, want %q", b, want)
	}
}

func TestNlistTypePredicates(t *testing.T) {
	tests := []struct {
		in   NType
		sect bool
		ext  bool
		und  bool
	}{
		{0x0f, true, true, false},  // N_SECT | N_EXT
		{0x01, false, true, true},  // N_UNDF | N_EXT
		{0x0e, true, false, false}, // N_SECT
	}
	for _, tt := range tests {
		if got := tt.in.IsDefinedInSection(); got != tt.sect {
			t.Errorf("NType(%#x).IsDefinedInSection() = %v, want %v", uint8(tt.in), got, tt.sect)
		}
		if got := tt.in.IsExternalSym(); got != tt.ext {
			t.Errorf("NType(%#x).IsExternalSym() = %v, want %v", uint8(tt.in), got, tt.ext)
		}
		if got := tt.in.IsUndefinedSym(); got != tt.und {
			t.Errorf("NType(%#x).IsUndefinedSym() = %v, want %v", uint8(tt.in), got, tt.und)
		}
	}
}
