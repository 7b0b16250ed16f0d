package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"compress-service/ddd/domain/entity"
	"compress-service/ddd/domain/vo"
)

const (
	// MinBitrate is the floor used when the target is tiny or cannot be computed.
	MinBitrate = "500k"
	// DefaultCRF is libx264's own default.
	DefaultCRF = 23
)

// quality words accepted as legacy percentages
var qualityWords = map[string]int{
	"high":   25,
	"medium": 50,
	"low":    75,
}

// SourceInfo is what the resolver needs to know about the input.
type SourceInfo struct {
	SizeBytes       int64
	DurationSeconds float64
}

// ResolverDefaults are the non-video settings shared by every selection.
type ResolverDefaults struct {
	LegacyCodec        string
	LegacySpeedPreset  string
	LegacyAudioCodec   string
	PresetAudioCodec   string
	PresetAudioBitrate string
	PixelFormat        string
}

// DefaultResolverDefaults keeps legacy percentage jobs on
// fast x264 and untouched audio.
func DefaultResolverDefaults() ResolverDefaults {
	return ResolverDefaults{
		LegacyCodec:        "libx264",
		LegacySpeedPreset:  "ultrafast",
		LegacyAudioCodec:   "copy",
		PresetAudioCodec:   "aac",
		PresetAudioBitrate: "128k",
		PixelFormat:        "yuv420p",
	}
}

// Resolver 把用户选择解析成不可变的编码参数
type Resolver struct {
	defaults ResolverDefaults
}

func NewResolver(d ResolverDefaults) *Resolver {
	return &Resolver{defaults: d}
}

// ParseQuality turns user input into a Selection: "", "auto", a quality word,
// an integer 10-90, a preset name or "custom".
func (r *Resolver) ParseQuality(input string) (vo.Selection, error) {
	q := strings.ToLower(strings.TrimSpace(input))
	if q == "" || q == "auto" {
		return vo.AutoQuality(), nil
	}
	if q == "custom" {
		return vo.Custom(vo.CustomOverride{}), nil
	}
	if p, ok := qualityWords[q]; ok {
		return vo.LegacyPercentage(p), nil
	}
	if _, ok := LookupPreset(q); ok {
		return vo.NamedPreset(q), nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(q, "%"))
	if err != nil {
		return vo.Selection{}, vo.Validationf("unknown quality %q", input)
	}
	if n < vo.MinPercentage || n > vo.MaxPercentage {
		return vo.Selection{}, vo.Validationf("percentage must be between %d and %d, got %d", vo.MinPercentage, vo.MaxPercentage, n)
	}
	return vo.LegacyPercentage(n), nil
}

// SelectionFor derives the selection stored in a session. A "custom" quality
// applies the session's per-field overrides on top of the defaults.
func (r *Resolver) SelectionFor(s *entity.CompressionSession) (vo.Selection, error) {
	sel, err := r.ParseQuality(s.Quality())
	if err != nil {
		return vo.Selection{}, err
	}
	if sel.Kind() != vo.SelectionCustom {
		return sel, nil
	}
	return vo.Custom(s.Override("")), nil
}

// Resolve 解析编码参数；同样的输入总是得到同样的输出
func (r *Resolver) Resolve(sel vo.Selection, src SourceInfo) (vo.EncodingParameters, error) {
	var p vo.EncodingParameters
	switch sel.Kind() {
	case vo.SelectionLegacyPercentage:
		p = r.legacy(sel, src)
	case vo.SelectionNamedPreset:
		preset, ok := LookupPreset(sel.PresetName())
		if !ok {
			return vo.EncodingParameters{}, vo.Validationf("unknown preset %q", sel.PresetName())
		}
		p = r.fromPreset(preset)
	case vo.SelectionCustom:
		var err error
		if p, err = r.custom(sel.Override()); err != nil {
			return vo.EncodingParameters{}, err
		}
	default:
		return vo.EncodingParameters{}, vo.Validationf("no quality selected")
	}
	if err := p.Validate(); err != nil {
		return vo.EncodingParameters{}, err
	}
	return p, nil
}

func (r *Resolver) legacy(sel vo.Selection, src SourceInfo) vo.EncodingParameters {
	p := vo.EncodingParameters{
		Source:      vo.SelectionLegacyPercentage,
		VideoCodec:  r.defaults.LegacyCodec,
		SpeedPreset: r.defaults.LegacySpeedPreset,
		PixelFormat: r.defaults.PixelFormat,
		AudioCodec:  r.defaults.LegacyAudioCodec,
	}
	pct, auto := sel.Percentage()
	if auto {
		p.Rate = vo.RateCRF
		p.CRF = DefaultCRF
		return p
	}
	p.Rate = vo.RateBitrate
	p.Bitrate = LegacyBitrate(pct, src.SizeBytes, src.DurationSeconds)
	return p
}

func (r *Resolver) fromPreset(preset Preset) vo.EncodingParameters {
	return vo.EncodingParameters{
		Source:       vo.SelectionNamedPreset,
		VideoCodec:   preset.VideoCodec,
		SpeedPreset:  preset.SpeedPreset,
		Rate:         vo.RateCRF,
		CRF:          preset.CRF,
		Resolution:   preset.Resolution,
		PixelFormat:  r.defaults.PixelFormat,
		AudioCodec:   r.defaults.PresetAudioCodec,
		AudioBitrate: r.defaults.PresetAudioBitrate,
	}
}

func (r *Resolver) custom(o vo.CustomOverride) (vo.EncodingParameters, error) {
	base := vo.EncodingParameters{
		VideoCodec:   r.defaults.LegacyCodec,
		SpeedPreset:  "medium",
		Rate:         vo.RateCRF,
		CRF:          DefaultCRF,
		PixelFormat:  r.defaults.PixelFormat,
		AudioCodec:   r.defaults.PresetAudioCodec,
		AudioBitrate: r.defaults.PresetAudioBitrate,
	}
	if o.BasePreset != "" {
		preset, ok := LookupPreset(o.BasePreset)
		if !ok {
			return vo.EncodingParameters{}, vo.Validationf("unknown base preset %q", o.BasePreset)
		}
		base = r.fromPreset(preset)
	}
	base.Source = vo.SelectionCustom

	if o.VideoCodec != "" {
		base.VideoCodec = o.VideoCodec
	}
	if o.SpeedPreset != "" {
		if !speedPresets[o.SpeedPreset] {
			return vo.EncodingParameters{}, vo.Validationf("unknown speed preset %q", o.SpeedPreset)
		}
		base.SpeedPreset = o.SpeedPreset
	}
	if o.CRF != nil {
		base.CRF = *o.CRF
	}
	switch o.Resolution {
	case "":
	case "keep":
		base.Resolution = ""
	default:
		base.Resolution = o.Resolution
	}
	if o.PixelFormat != "" {
		base.PixelFormat = o.PixelFormat
	}
	if o.AudioCodec != "" {
		base.AudioCodec = o.AudioCodec
	}
	if o.AudioBitrate != "" {
		base.AudioBitrate = o.AudioBitrate
	}
	return base, nil
}

// LegacyBitrate computes the bitrate that lands the output at (100-p)% of
// the source size. Unknown duration falls back to MinBitrate.
func LegacyBitrate(percentage int, sizeBytes int64, durationSeconds float64) string {
	if durationSeconds <= 0 || sizeBytes <= 0 || math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) {
		return MinBitrate
	}
	targetSize := float64(100-percentage) / 100 * float64(sizeBytes)
	bps := int64(math.Floor(targetSize * 8 / durationSeconds))
	return FormatBitrate(bps)
}

// FormatBitrate renders bits per second with an M or k suffix, flooring at MinBitrate.
func FormatBitrate(bps int64) string {
	switch {
	case bps >= 1_000_000:
		return fmt.Sprintf("%dM", bps/1_000_000)
	case bps >= 1_000:
		return fmt.Sprintf("%dk", bps/1_000)
	default:
		return MinBitrate
	}
}
