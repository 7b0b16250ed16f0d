package vo

// SelectionKind 编码参数来源
type SelectionKind int

const (
	SelectionLegacyPercentage SelectionKind = iota + 1
	SelectionNamedPreset
	SelectionCustom
)

func (k SelectionKind) String() string {
	switch k {
	case SelectionLegacyPercentage:
		return "percentage"
	case SelectionNamedPreset:
		return "preset"
	case SelectionCustom:
		return "custom"
	default:
		return "unknown"
	}
}

const (
	MinPercentage = 10
	MaxPercentage = 90
)

// CustomOverride holds the per-field choices of a custom selection.
// Zero values mean "inherit from the base preset". CRF is a pointer since 0 is a valid choice.
type CustomOverride struct {
	BasePreset   string
	VideoCodec   string
	SpeedPreset  string
	CRF          *int
	Resolution   string // "WxH" or "keep"
	PixelFormat  string
	AudioCodec   string
	AudioBitrate string
}

// Selection 用户的画质选择（三选一）
type Selection struct {
	kind       SelectionKind
	percentage int // 0 = auto
	preset     string
	custom     CustomOverride
}

// LegacyPercentage targets an output (100-p)% of the source size.
func LegacyPercentage(p int) Selection {
	return Selection{kind: SelectionLegacyPercentage, percentage: p}
}

// AutoQuality leaves rate control to the encoder's CRF default.
func AutoQuality() Selection {
	return Selection{kind: SelectionLegacyPercentage}
}

func NamedPreset(name string) Selection {
	return Selection{kind: SelectionNamedPreset, preset: name}
}

func Custom(o CustomOverride) Selection {
	return Selection{kind: SelectionCustom, custom: o}
}

func (s Selection) Kind() SelectionKind { return s.kind }

// Percentage returns the legacy target and whether it is "auto".
func (s Selection) Percentage() (int, bool) { return s.percentage, s.percentage == 0 }

func (s Selection) PresetName() string       { return s.preset }
func (s Selection) Override() CustomOverride { return s.custom }

// IsZero reports an unset selection.
func (s Selection) IsZero() bool { return s.kind == 0 }
