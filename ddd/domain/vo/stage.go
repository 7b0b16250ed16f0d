package vo

// Stage 压缩任务阶段
type Stage string

const (
	StageIdle         Stage = "idle"
	StageDownloading  Stage = "downloading"
	StageProbing      Stage = "probing"
	StageTranscoding  Stage = "transcoding"
	StageThumbnailing Stage = "thumbnailing"
	StageUploading    Stage = "uploading"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
	StageCancelled    Stage = "cancelled"
)

// pipeline order of the non-terminal stages
var stageOrder = map[Stage]int{
	StageIdle:         0,
	StageDownloading:  1,
	StageProbing:      2,
	StageTranscoding:  3,
	StageThumbnailing: 4,
	StageUploading:    5,
}

// IsValid 检查阶段是否有效
func (s Stage) IsValid() bool {
	if _, ok := stageOrder[s]; ok {
		return true
	}
	return s.IsTerminal()
}

func (s Stage) String() string {
	return string(s)
}

// IsTerminal 是否为最终阶段
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed || s == StageCancelled
}

// CanTransitionTo 检查是否可以转换到目标阶段。
// Forward moves go exactly one step; Failed and Cancelled are reachable from
// any non-terminal stage; Done only from Uploading.
func (s Stage) CanTransitionTo(target Stage) bool {
	if s.IsTerminal() {
		return false
	}
	from, ok := stageOrder[s]
	if !ok {
		return false
	}
	switch target {
	case StageFailed, StageCancelled:
		return true
	case StageDone:
		return s == StageUploading
	}
	to, ok := stageOrder[target]
	return ok && to == from+1
}

// Label is the human wording used in status notes.
func (s Stage) Label() string {
	switch s {
	case StageDownloading:
		return "Downloading"
	case StageProbing:
		return "Reading media info"
	case StageTranscoding:
		return "Compressing"
	case StageThumbnailing:
		return "Generating thumbnail"
	case StageUploading:
		return "Uploading"
	case StageDone:
		return "Done"
	case StageFailed:
		return "Failed"
	case StageCancelled:
		return "Cancelled"
	default:
		return "Waiting"
	}
}
