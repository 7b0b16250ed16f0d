package entity

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"compress-service/ddd/domain/vo"
)

// 可通过 UpdateField 修改的字段
const (
	FieldQuality      = "quality"
	FieldResolution   = "resolution"
	FieldVideoCodec   = "video_codec"
	FieldAudioCodec   = "audio_codec"
	FieldSpeedPreset  = "preset"
	FieldCRF          = "crf"
	FieldAudioBitrate = "audio_bitrate"
	FieldPixelFormat  = "pixel_format"
)

var (
	resolutionField = regexp.MustCompile(`^(keep|\d{2,5}x\d{2,5})$`)
	tokenField      = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)
	bitrateField    = regexp.MustCompile(`^\d+[kM]?$`)
)

// CompressionSession 压缩会话：用户提交媒体后、任务开始前的配置记录
type CompressionSession struct {
	userID       string
	media        vo.MediaRef
	quality      string // preset name, percentage, quality word, "auto" or "custom"
	resolution   string
	videoCodec   string
	audioCodec   string
	speedPreset  string
	crf          *int // nil = inherit
	audioBitrate string
	pixelFormat  string
	createdAt    time.Time
}

// NewCompressionSession 创建会话，默认画质为 auto
func NewCompressionSession(userID string, media vo.MediaRef, now time.Time) *CompressionSession {
	return &CompressionSession{
		userID:    userID,
		media:     media,
		quality:   "auto",
		createdAt: now,
	}
}

// SessionState is the flat, serializable form of a session.
type SessionState struct {
	UserID       string      `json:"user_id"`
	Media        vo.MediaRef `json:"media"`
	Quality      string      `json:"quality"`
	Resolution   string      `json:"resolution,omitempty"`
	VideoCodec   string      `json:"video_codec,omitempty"`
	AudioCodec   string      `json:"audio_codec,omitempty"`
	SpeedPreset  string      `json:"preset,omitempty"`
	CRF          *int        `json:"crf,omitempty"`
	AudioBitrate string      `json:"audio_bitrate,omitempty"`
	PixelFormat  string      `json:"pixel_format,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// RestoreCompressionSession rebuilds a session from its stored state.
func RestoreCompressionSession(s SessionState) *CompressionSession {
	return &CompressionSession{
		userID:       s.UserID,
		media:        s.Media,
		quality:      s.Quality,
		resolution:   s.Resolution,
		videoCodec:   s.VideoCodec,
		audioCodec:   s.AudioCodec,
		speedPreset:  s.SpeedPreset,
		crf:          s.CRF,
		audioBitrate: s.AudioBitrate,
		pixelFormat:  s.PixelFormat,
		createdAt:    s.CreatedAt,
	}
}

// State exports the session for storage.
func (s *CompressionSession) State() SessionState {
	return SessionState{
		UserID:       s.userID,
		Media:        s.media,
		Quality:      s.quality,
		Resolution:   s.resolution,
		VideoCodec:   s.videoCodec,
		AudioCodec:   s.audioCodec,
		SpeedPreset:  s.speedPreset,
		CRF:          s.crf,
		AudioBitrate: s.audioBitrate,
		PixelFormat:  s.pixelFormat,
		CreatedAt:    s.createdAt,
	}
}

// Clone returns an independent copy.
func (s *CompressionSession) Clone() *CompressionSession {
	c := *s
	return &c
}

// Getters
func (s *CompressionSession) UserID() string       { return s.userID }
func (s *CompressionSession) Media() vo.MediaRef   { return s.media }
func (s *CompressionSession) Quality() string      { return s.quality }
func (s *CompressionSession) Resolution() string   { return s.resolution }
func (s *CompressionSession) VideoCodec() string   { return s.videoCodec }
func (s *CompressionSession) AudioCodec() string   { return s.audioCodec }
func (s *CompressionSession) SpeedPreset() string  { return s.speedPreset }
func (s *CompressionSession) CRF() *int            { return s.crf }
func (s *CompressionSession) AudioBitrate() string { return s.audioBitrate }
func (s *CompressionSession) PixelFormat() string  { return s.pixelFormat }
func (s *CompressionSession) CreatedAt() time.Time { return s.createdAt }

// Expired reports whether the session outlived ttl.
func (s *CompressionSession) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.createdAt) > ttl
}

// Override collects the custom fields into a CustomOverride.
func (s *CompressionSession) Override(basePreset string) vo.CustomOverride {
	return vo.CustomOverride{
		BasePreset:   basePreset,
		VideoCodec:   s.videoCodec,
		SpeedPreset:  s.speedPreset,
		CRF:          s.crf,
		Resolution:   s.resolution,
		PixelFormat:  s.pixelFormat,
		AudioCodec:   s.audioCodec,
		AudioBitrate: s.audioBitrate,
	}
}

// UpdateField 修改单个字段，值在此做格式校验；语义校验（预设是否存在）由解析器负责
func (s *CompressionSession) UpdateField(field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case FieldQuality:
		if value == "" {
			value = "auto"
		}
		s.quality = strings.ToLower(value)
	case FieldResolution:
		if !resolutionField.MatchString(value) {
			return vo.Validationf("resolution must be WxH or keep, got %q", value)
		}
		s.resolution = value
	case FieldVideoCodec:
		if !tokenField.MatchString(value) {
			return vo.Validationf("invalid video codec %q", value)
		}
		s.videoCodec = value
	case FieldAudioCodec:
		if !tokenField.MatchString(value) {
			return vo.Validationf("invalid audio codec %q", value)
		}
		s.audioCodec = value
	case FieldSpeedPreset:
		if !tokenField.MatchString(value) {
			return vo.Validationf("invalid preset %q", value)
		}
		s.speedPreset = value
	case FieldCRF:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 51 {
			return vo.Validationf("crf must be an integer 0-51, got %q", value)
		}
		s.crf = &n
	case FieldAudioBitrate:
		if !bitrateField.MatchString(value) {
			return vo.Validationf("invalid audio bitrate %q", value)
		}
		s.audioBitrate = value
	case FieldPixelFormat:
		if !tokenField.MatchString(value) {
			return vo.Validationf("invalid pixel format %q", value)
		}
		s.pixelFormat = value
	default:
		return vo.Validationf("unknown session field %q", field)
	}
	return nil
}
