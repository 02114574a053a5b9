package model

import "time"

// HistoryType represents the type of history entry
type HistoryType string

const (
	HistoryTypeTest HistoryType = "test"
)

// History represents a single testgate session.
type History struct {
	// Unique ID for this session, shared with the session's identity
	ID string `json:"id"`
	// Type of execution
	Type HistoryType `json:"type"`
	// Timestamp when the session started
	Timestamp time.Time `json:"timestamp"`
	// Command-line arguments (including command name)
	Args []string `json:"args"`
	// Working directory where command was run (relative to repo root)
	WorkDir string `json:"workdir"`
	// Exit code of the session
	ExitCode int `json:"exit_code"`
	// Duration of the session
	Duration time.Duration `json:"duration"`
	// Git information
	Git *Git `json:"git,omitempty"`
	// Target execution environment
	Target *Target `json:"target,omitempty"`
	// Artifacts generated during this session
	Artifacts []Artifact `json:"artifacts,omitempty"`

	Test *TestRun `json:"test,omitempty"`
}

// Git contains git repository information
type Git struct {
	// Git commit hash at time of execution
	Commit string `json:"commit,omitempty"`
	// Git branch at time of execution
	Branch string `json:"branch,omitempty"`
	// Repository name
	Repo string `json:"repo,omitempty"`
	// Remote repository URL
	URL string `json:"url,omitempty"`
}

// Target contains information about the execution environment
type Target struct {
	// Operating system of the execution environment
	OS string `json:"os,omitempty"`
	// CPU architecture of the execution environment
	Arch string `json:"arch,omitempty"`
}

// ArtifactType identifies the type of artifact
type ArtifactType uint8

const (
	ArtifactTypeTestBinary ArtifactType = iota
	ArtifactTypeStdout
	ArtifactTypeStderr
)

func (t ArtifactType) String() string {
	switch t {
	case ArtifactTypeTestBinary:
		return "binary"
	case ArtifactTypeStdout:
		return "stdout"
	case ArtifactTypeStderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// Artifact represents a file generated during execution
type Artifact struct {
	Type ArtifactType `json:"type"`
	Size uint64       `json:"size"`
	File string       `json:"file"` // relative to run dir
}
