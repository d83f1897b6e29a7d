package entity

import "github.com/google/uuid"

// CurationOptions are the per-job overrides of the engine defaults. Nil
// fields fall back to the worker configuration.
type CurationOptions struct {
	SamplingMode       string   `json:"sampling_mode,omitempty"`
	SampleEveryN       *int     `json:"sample_every_n,omitempty"`
	SampleIntervalSecs *float64 `json:"sample_interval_secs,omitempty"`
	TargetFrameCount   *int     `json:"target_frame_count,omitempty"`
	QualityThreshold   *float64 `json:"quality_threshold,omitempty"`
	BlurCeiling        *float64 `json:"blur_ceiling,omitempty"`
	DiversityThreshold *float64 `json:"diversity_threshold,omitempty"`
	DiversityDecay     *float64 `json:"diversity_decay,omitempty"`
	MaxRelaxations     *int     `json:"max_relaxations,omitempty"`
}

// CurationRequestMessage is the inbound message from the curation.request
// queue: the start signal from the GUI collaborator.
type CurationRequestMessage struct {
	JobID     uuid.UUID        `json:"job_id"`
	UserID    string           `json:"user_id"`
	VideoKey  string           `json:"video_key"`
	FileSize  int64            `json:"file_size"`
	UserEmail string           `json:"user_email"`
	Options   *CurationOptions `json:"options,omitempty"`
}

// CurationStatusMessage is the terminal result published to the
// curation.status queue.
type CurationStatusMessage struct {
	JobID            uuid.UUID `json:"job_id"`
	UserID           string    `json:"user_id"`
	Status           JobStatus `json:"status"`
	VideoKey         string    `json:"video_key"`
	FrameSetKey      string    `json:"frameset_key,omitempty"`
	CandidateCount   int       `json:"candidate_count,omitempty"`
	SelectedCount    int       `json:"selected_count,omitempty"`
	ExportedCount    int       `json:"exported_count,omitempty"`
	UnderBudget      bool      `json:"under_budget,omitempty"`
	RelaxationRounds int       `json:"relaxation_rounds,omitempty"`
	Duration         float64   `json:"duration_seconds,omitempty"`
	Warnings         []string  `json:"warnings,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	Attempt          int       `json:"attempt"`
	MaxAttempts      int       `json:"max_attempts"`
}

// CurationProgressMessage is published to the curation.progress queue after
// each processed batch so the GUI can render a progress bar.
type CurationProgressMessage struct {
	JobID     uuid.UUID `json:"job_id"`
	Stage     string    `json:"stage"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
}
