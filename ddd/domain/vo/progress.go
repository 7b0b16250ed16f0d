package vo

// UnknownETA marks an ETA that cannot be estimated.
const UnknownETA int64 = -1

// ProgressSnapshot 进度快照
type ProgressSnapshot struct {
	Frame          int64   `json:"frame"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Speed          float64 `json:"speed"`
	Percentage     int     `json:"percentage"`
	Done           bool    `json:"done"`
	ETASeconds     int64   `json:"eta_seconds"`
}

// HasETA reports whether ETASeconds is meaningful.
func (s ProgressSnapshot) HasETA() bool {
	return s.ETASeconds >= 0
}
