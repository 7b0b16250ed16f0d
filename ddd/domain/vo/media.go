package vo

import (
	"path/filepath"
	"strings"
)

// MediaRef 媒体引用：对象存储 key 或本地路径，附带声明的元数据
type MediaRef struct {
	Key             string  `json:"key"`
	FileName        string  `json:"file_name"`
	Size            int64   `json:"size"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Ext returns the lower-case extension without the dot.
func (m MediaRef) Ext() string {
	name := m.FileName
	if name == "" {
		name = m.Key
	}
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Actor is the identity behind a request.
type Actor struct {
	ID    string
	Admin bool
}
