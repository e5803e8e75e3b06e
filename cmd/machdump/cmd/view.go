package cmd

import (
	"github.com/appsworld/machdump"
)

type headerView struct {
	Magic        string   `json:"magic"`
	CPU          string   `json:"cpu"`
	SubCPU       string   `json:"sub_cpu"`
	Type         string   `json:"type"`
	NCommands    uint32   `json:"ncmds"`
	SizeCommands uint32   `json:"sizeofcmds"`
	Flags        []string `json:"flags"`
}

type sectionView struct {
	Segment string `json:"segment"`
	Name    string `json:"name"`
	Addr    uint64 `json:"addr"`
	Size    uint64 `json:"size"`
	Offset  uint32 `json:"offset"`
	Align   uint32 `json:"align"`
	Flags   string `json:"flags"`
}

type loadView struct {
	Index   int    `json:"index"`
	Command string `json:"command"`
	Size    uint32 `json:"size"`
	Detail  string `json:"detail,omitempty"`

	Sections []sectionView `json:"sections,omitempty"`
}

type symbolView struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Section uint8  `json:"section"`
	Desc    string `json:"desc,omitempty"`
	Value   uint64 `json:"value"`
}

type objectView struct {
	Header  headerView   `json:"header"`
	Loads   []loadView   `json:"load_commands"`
	Symbols []symbolView `json:"symbols,omitempty"`
}

func fileView(f *machdump.File) objectView {
	v := objectView{
		Header: headerView{
			Magic:        f.Magic.String(),
			CPU:          f.CPU.String(),
			SubCPU:       f.SubCPU.String(f.CPU),
			Type:         f.Type.String(),
			NCommands:    f.NCommands,
			SizeCommands: f.SizeCommands,
			Flags:        f.Flags.List(),
		},
	}
	for i, l := range f.Loads {
		lv := loadView{
			Index:   i,
			Command: l.Command().String(),
			Size:    l.LoadSize(),
			Detail:  l.String(),
		}
		if s, ok := l.(*machdump.Segment); ok {
			for _, sec := range s.Sections {
				lv.Sections = append(lv.Sections, sectionView{
					Segment: sec.Seg,
					Name:    sec.Name,
					Addr:    sec.Addr,
					Size:    sec.Size,
					Offset:  sec.Offset,
					Align:   sec.Align,
					Flags:   sec.Flags.String(),
				})
			}
		}
		v.Loads = append(v.Loads, lv)
	}
	if f.Symtab != nil {
		for _, sym := range f.Symtab.Syms {
			v.Symbols = append(v.Symbols, symbolView{
				Name:    sym.Name,
				Type:    sym.Type.String(""),
				Section: sym.Sect,
				Desc:    sym.Desc.String(),
				Value:   sym.Value,
			})
		}
	}
	return v
}
