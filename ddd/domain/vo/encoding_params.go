package vo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RateControl 码率控制方式，CRF 与目标码率互斥
type RateControl int

const (
	RateCRF RateControl = iota + 1
	RateBitrate
)

var (
	resolutionPattern = regexp.MustCompile(`^\d{2,5}x\d{2,5}$`)
	bitratePattern    = regexp.MustCompile(`^\d+[kM]?$`)
	tokenPattern      = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)
)

// EncodingParameters is the immutable result of resolving a Selection.
// It carries no pointers or slices, so copies never alias.
type EncodingParameters struct {
	Source       SelectionKind
	VideoCodec   string
	SpeedPreset  string
	Rate         RateControl
	CRF          int
	Bitrate      string
	Resolution   string // empty keeps the source size
	PixelFormat  string
	AudioCodec   string // "copy" passes audio through
	AudioBitrate string // empty uses the encoder default
}

// Validate 校验参数组合
func (p EncodingParameters) Validate() error {
	if !tokenPattern.MatchString(p.VideoCodec) {
		return Validationf("invalid video codec %q", p.VideoCodec)
	}
	if !tokenPattern.MatchString(p.SpeedPreset) {
		return Validationf("invalid speed preset %q", p.SpeedPreset)
	}
	switch p.Rate {
	case RateCRF:
		if p.CRF < 0 || p.CRF > 51 {
			return Validationf("crf %d out of range 0-51", p.CRF)
		}
		if p.Bitrate != "" {
			return Validationf("crf and bitrate are mutually exclusive")
		}
	case RateBitrate:
		if !bitratePattern.MatchString(p.Bitrate) {
			return Validationf("invalid bitrate %q", p.Bitrate)
		}
	default:
		return Validationf("rate control not set")
	}
	if p.Resolution != "" && !resolutionPattern.MatchString(p.Resolution) {
		return Validationf("invalid resolution %q", p.Resolution)
	}
	if !tokenPattern.MatchString(p.PixelFormat) {
		return Validationf("invalid pixel format %q", p.PixelFormat)
	}
	if !tokenPattern.MatchString(p.AudioCodec) {
		return Validationf("invalid audio codec %q", p.AudioCodec)
	}
	if p.AudioBitrate != "" && !bitratePattern.MatchString(p.AudioBitrate) {
		return Validationf("invalid audio bitrate %q", p.AudioBitrate)
	}
	return nil
}

// Args renders the transcoder argument list. The progress sink receives
// machine-readable key=value lines.
func (p EncodingParameters) Args(input, output, progressSink string) []string {
	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-progress", progressSink,
		"-i", input,
		"-c:v", p.VideoCodec,
		"-preset", p.SpeedPreset,
	}
	if p.Rate == RateBitrate {
		args = append(args, "-b:v", p.Bitrate, "-bufsize", p.Bitrate)
	} else {
		args = append(args, "-crf", strconv.Itoa(p.CRF))
	}
	if p.Resolution != "" {
		args = append(args, "-s", p.Resolution)
	}
	args = append(args, "-c:a", p.AudioCodec)
	if p.AudioBitrate != "" && p.AudioCodec != "copy" {
		args = append(args, "-b:a", p.AudioBitrate)
	}
	args = append(args, "-pix_fmt", p.PixelFormat, "-y", output)
	return args
}

// Summary is a one-line description used in captions and logs.
func (p EncodingParameters) Summary() string {
	parts := []string{p.VideoCodec, p.SpeedPreset}
	if p.Rate == RateBitrate {
		parts = append(parts, "bitrate "+p.Bitrate)
	} else {
		parts = append(parts, fmt.Sprintf("crf %d", p.CRF))
	}
	if p.Resolution != "" {
		parts = append(parts, p.Resolution)
	}
	audio := "audio " + p.AudioCodec
	if p.AudioBitrate != "" && p.AudioCodec != "copy" {
		audio += " " + p.AudioBitrate
	}
	parts = append(parts, audio, p.PixelFormat)
	return strings.Join(parts, ", ")
}
