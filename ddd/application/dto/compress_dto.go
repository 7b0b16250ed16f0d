package dto

import (
	"time"

	"compress-service/ddd/domain/entity"
	"compress-service/ddd/domain/vo"
)

// SessionDTO 会话
type SessionDTO struct {
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

func NewSessionDTO(s *entity.CompressionSession) *SessionDTO {
	st := s.State()
	return &SessionDTO{
		UserID:       st.UserID,
		Media:        st.Media,
		Quality:      st.Quality,
		Resolution:   st.Resolution,
		VideoCodec:   st.VideoCodec,
		AudioCodec:   st.AudioCodec,
		SpeedPreset:  st.SpeedPreset,
		CRF:          st.CRF,
		AudioBitrate: st.AudioBitrate,
		PixelFormat:  st.PixelFormat,
		CreatedAt:    st.CreatedAt,
	}
}

// JobDTO 运行中任务
type JobDTO struct {
	JobID          string              `json:"job_id"`
	UserID         string              `json:"user_id"`
	FileName       string              `json:"file_name"`
	Stage          vo.Stage            `json:"stage"`
	PID            int                 `json:"pid,omitempty"`
	Progress       vo.ProgressSnapshot `json:"progress"`
	OriginalSize   int64               `json:"original_size"`
	CompressedSize int64               `json:"compressed_size,omitempty"`
	Parameters     string              `json:"parameters,omitempty"`
	Cancelled      bool                `json:"cancelled"`
	CreatedAt      time.Time           `json:"created_at"`
	StageSeconds   float64             `json:"stage_seconds"`
}

func NewJobDTO(v entity.JobView, now time.Time) *JobDTO {
	d := &JobDTO{
		JobID:          v.JobID,
		UserID:         v.UserID,
		FileName:       v.FileName,
		Stage:          v.Stage,
		PID:            v.PID,
		Progress:       v.Progress,
		OriginalSize:   v.OriginalSize,
		CompressedSize: v.CompressedSize,
		Parameters:     v.Parameters,
		Cancelled:      v.Cancelled,
		CreatedAt:      v.CreatedAt,
	}
	if started, ok := v.StageStarted[v.Stage]; ok {
		d.StageSeconds = now.Sub(started).Seconds()
	}
	return d
}

// JobListDTO 任务列表
type JobListDTO struct {
	Jobs  []*JobDTO `json:"jobs"`
	Total int       `json:"total"`
}

// PresetDTO 预设
type PresetDTO struct {
	Name        string `json:"name"`
	Resolution  string `json:"resolution"`
	VideoCodec  string `json:"video_codec"`
	CRF         int    `json:"crf"`
	SpeedPreset string `json:"preset"`
}
