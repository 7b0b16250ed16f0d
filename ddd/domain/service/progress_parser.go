package service

import (
	"math"
	"regexp"
	"strconv"

	"compress-service/ddd/domain/vo"
)

var (
	frameRe    = regexp.MustCompile(`frame=(\d+)`)
	outTimeRe  = regexp.MustCompile(`out_time_ms=(\d+)`)
	progressRe = regexp.MustCompile(`progress=(\w+)`)
	speedRe    = regexp.MustCompile(`speed=\s*([\d.]+)`)
)

// ProgressRecord is the raw reading of a progress sink.
type ProgressRecord struct {
	Frame         int64
	OutTimeMicros int64
	Speed         float64
	Done          bool
}

// ParseProgress reads the key=value text ffmpeg appends to its progress file.
// The last value of each key wins; missing keys keep their defaults
// (frame 1, out_time 0, speed 1).
func ParseProgress(text string) ProgressRecord {
	rec := ProgressRecord{Frame: 1, Speed: 1}

	if m := lastMatch(frameRe, text); m != "" {
		if n, err := strconv.ParseInt(m, 10, 64); err == nil {
			rec.Frame = n
		}
	}
	if m := lastMatch(outTimeRe, text); m != "" {
		if n, err := strconv.ParseInt(m, 10, 64); err == nil {
			rec.OutTimeMicros = n
		}
	}
	if m := lastMatch(speedRe, text); m != "" {
		if f, err := strconv.ParseFloat(m, 64); err == nil {
			rec.Speed = f
		}
	}
	for _, m := range progressRe.FindAllStringSubmatch(text, -1) {
		if m[1] == "end" {
			rec.Done = true
			break
		}
	}
	return rec
}

func lastMatch(re *regexp.Regexp, text string) string {
	all := re.FindAllStringSubmatch(text, -1)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1][1]
}

// Snapshot turns a record into percentage and ETA against the media duration.
func (r ProgressRecord) Snapshot(totalSeconds float64) vo.ProgressSnapshot {
	elapsed := float64(r.OutTimeMicros) / 1e6
	return vo.ProgressSnapshot{
		Frame:          r.Frame,
		ElapsedSeconds: elapsed,
		Speed:          r.Speed,
		Percentage:     Percentage(elapsed, totalSeconds),
		Done:           r.Done,
		ETASeconds:     EstimateETA(elapsed, totalSeconds, r.Speed),
	}
}

// Percentage is floor(elapsed*100/total) clamped to [0,100]; 0 when total is 0.
func Percentage(elapsed, total float64) int {
	if total <= 0 || math.IsNaN(total) || math.IsNaN(elapsed) {
		return 0
	}
	pct := math.Floor(elapsed * 100 / total)
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return int(pct)
}

// EstimateETA is floor((total-elapsed)/speed) seconds, or vo.UnknownETA when
// speed is not positive or nothing remains.
func EstimateETA(elapsed, total, speed float64) int64 {
	if speed <= 0 || math.IsNaN(speed) {
		return vo.UnknownETA
	}
	eta := math.Floor((total - elapsed) / speed)
	if eta <= 0 || math.IsInf(eta, 0) || math.IsNaN(eta) {
		return vo.UnknownETA
	}
	return int64(eta)
}
