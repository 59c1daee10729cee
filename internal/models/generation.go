package models

import "time"

type GenerationStatus string

const (
	StatusPending GenerationStatus = "pending"
	StatusDone    GenerationStatus = "done"
	StatusError   GenerationStatus = "error"
)

func (s GenerationStatus) Terminal() bool {
	return s == StatusDone || s == StatusError
}

type GenerationResult struct {
	Status    GenerationStatus `json:"status"`
	Image     *Image           `json:"image,omitempty"`
	Error     string           `json:"error,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func PendingResult(now time.Time) *GenerationResult {
	return &GenerationResult{Status: StatusPending, UpdatedAt: now}
}

func DoneResult(img *Image, now time.Time) *GenerationResult {
	return &GenerationResult{Status: StatusDone, Image: img, UpdatedAt: now}
}

func ErrorResult(msg string, now time.Time) *GenerationResult {
	return &GenerationResult{Status: StatusError, Error: msg, UpdatedAt: now}
}

// GenerationRequest is one call to the external image model.
type GenerationRequest struct {
	Decade      string
	Prompt      string
	Source      Image
	AspectRatio float64
}
