package service

import "sort"

// Preset 命名预设
type Preset struct {
	Name        string
	Resolution  string
	VideoCodec  string
	CRF         int
	SpeedPreset string
}

// presetTable is built once and never mutated.
var presetTable = func() map[string]Preset {
	list := []Preset{
		{Name: "1080p", Resolution: "1920x1080", VideoCodec: "libx264", CRF: 22, SpeedPreset: "medium"},
		{Name: "1080p_hevc", Resolution: "1920x1080", VideoCodec: "libx265", CRF: 26, SpeedPreset: "medium"},
		{Name: "720p", Resolution: "1280x720", VideoCodec: "libx264", CRF: 20, SpeedPreset: "medium"},
		{Name: "720p_hevc", Resolution: "1280x720", VideoCodec: "libx265", CRF: 24, SpeedPreset: "medium"},
		{Name: "480p", Resolution: "854x480", VideoCodec: "libx264", CRF: 23, SpeedPreset: "fast"},
		{Name: "480p_hevc", Resolution: "854x480", VideoCodec: "libx265", CRF: 27, SpeedPreset: "fast"},
		{Name: "360p", Resolution: "640x360", VideoCodec: "libx264", CRF: 25, SpeedPreset: "fast"},
	}
	m := make(map[string]Preset, len(list))
	for _, p := range list {
		m[p.Name] = p
	}
	return m
}()

// LookupPreset returns the named preset.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presetTable[name]
	return p, ok
}

// Presets lists every preset ordered by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(presetTable))
	for _, p := range presetTable {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// x264/x265 speed presets accepted in custom selections.
var speedPresets = map[string]bool{
	"ultrafast": true, "superfast": true, "veryfast": true, "faster": true, "fast": true,
	"medium": true, "slow": true, "slower": true, "veryslow": true,
}
