package models

import (
	"fmt"
	"time"
)

// ModelFile represents a quantized model artifact on disk. Artifacts are
// created externally (downloaded) and are read-only to this tool.
type ModelFile struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
}

// HumanSize renders the artifact size for listings ("4.2 GB", "812.0 MB").
func (m ModelFile) HumanSize() string {
	const unit = 1024
	if m.SizeBytes < unit {
		return fmt.Sprintf("%d B", m.SizeBytes)
	}
	div, exp := int64(unit), 0
	for n := m.SizeBytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(m.SizeBytes)/float64(div), "KMGTPE"[exp])
}

// SwitchOutcome is the terminal state of a switch invocation
type SwitchOutcome string

const (
	// OutcomeCommitted means the pointer was repointed and, if the
	// container was running, the server came up healthy on the new model
	OutcomeCommitted SwitchOutcome = "committed"

	// OutcomeRolledBack means the health check timed out and the pointer
	// was restored to its previous target
	OutcomeRolledBack SwitchOutcome = "rolled-back"

	// OutcomeFailed means the switch failed with no recovery possible
	OutcomeFailed SwitchOutcome = "failed"

	// OutcomeNoop means the selected model was already active
	OutcomeNoop SwitchOutcome = "noop"
)

// SwitchResult describes one completed switch invocation
type SwitchResult struct {
	Outcome  SwitchOutcome `json:"outcome"`
	SwitchID string        `json:"switch_id"`
	Model    string        `json:"model"`              // requested target
	Previous string        `json:"previous,omitempty"` // pointer target before the swap

	// Healthy reports whether the health endpoint returned 2xx after the
	// final restart (the new model for committed, the old one for
	// rolled-back). A committed switch with the container stopped
	// reports Healthy=false alongside a warning.
	Healthy  bool          `json:"healthy"`
	Attempts int           `json:"health_attempts,omitempty"`
	Duration time.Duration `json:"duration"`

	Warnings []string `json:"warnings,omitempty"`
}

// HistoryRecord is the informational marker state read back from disk.
// No invariants are enforced on it.
type HistoryRecord struct {
	Current  string `json:"current,omitempty"`
	Previous string `json:"previous,omitempty"`
}
