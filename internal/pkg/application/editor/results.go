package editor

import (
	"time"
)

type LevelInfo struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Objects          int       `json:"objects"`
	CompanionObjects int       `json:"companionObjects"`
	Spatial          int       `json:"spatial"`
	LoadedAt         time.Time `json:"loadedAt"`
}

const (
	PrimaryStore   string = "primary"
	CompanionStore string = "companion"
)

type ObjectSummary struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Name  string `json:"name,omitempty"`
	Store string `json:"store"`
}

// ObjectSnapshot holds the serialized forms of an object, taken while the level was locked
type ObjectSnapshot struct {
	ObjectSummary
	ReferencedBy []string

	JSON []byte
	XML  []byte
}

type HashResult struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	Recursive string `json:"recursive"`
}

type DiffEntry struct {
	Path string `json:"path"`
	A    any    `json:"a"`
	B    any    `json:"b"`
}

type DeleteResult struct {
	Deleted []string `json:"deleted"`
}

type ImportResult struct {
	Added        []string          `json:"added"`
	Deduplicated map[string]string `json:"deduplicated"`
	Renamed      map[string]string `json:"renamed"`
}
