package domain

import "time"

type Phase string

const (
	PhaseAnalyzing Phase = "ANALYZING"
	PhaseSucceeded Phase = "SUCCEEDED"
	PhaseFailed    Phase = "FAILED"
)

type FileAnalysisState struct {
	DocumentID DocumentID `json:"document_id"`
	FileName   string     `json:"file_name"`
	Size       int64      `json:"size"`
	Phase      Phase      `json:"phase"`
	Verdict    *Verdict   `json:"verdict,omitempty"`
	Error      string     `json:"error,omitempty"`
	Attempts   int        `json:"attempts"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type BatchStatus string

const (
	BatchIdle     BatchStatus = "idle"
	BatchRunning  BatchStatus = "running"
	BatchFinished BatchStatus = "finished"
)

type BatchSnapshot struct {
	Generation uint64              `json:"generation"`
	Status     BatchStatus         `json:"status"`
	Files      []FileAnalysisState `json:"files"`
	Analyzing  int                 `json:"analyzing"`
	Succeeded  int                 `json:"succeeded"`
	Failed     int                 `json:"failed"`
}

func (s BatchSnapshot) State(id DocumentID) (FileAnalysisState, bool) {
	for _, file := range s.Files {
		if file.DocumentID == id {
			return file, true
		}
	}
	return FileAnalysisState{}, false
}

type AnalysisEvent struct {
	Generation uint64     `json:"generation"`
	DocumentID DocumentID `json:"document_id"`
	FileName   string     `json:"file_name"`
	Phase      Phase      `json:"phase"`
	Verdict    *Verdict   `json:"verdict,omitempty"`
	Error      string     `json:"error,omitempty"`
	Attempt    int        `json:"attempt"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// AnalyzeOptions tunes a one-shot analysis.
type AnalyzeOptions struct {
	// RetryFailed re-runs every FAILED file once after the batch settles.
	RetryFailed bool
}
