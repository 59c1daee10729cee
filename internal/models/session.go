package models

import (
	"sort"
	"time"
)

type Stage string

const (
	StageUploaded   Stage = "uploaded"
	StageGenerating Stage = "generating"
	StageShown      Stage = "shown"
)

// Image is an encoded picture kept inline with its detected format.
type Image struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// Session is one upload-to-results cycle and the unit stored in history.
type Session struct {
	ID          string                       `json:"id"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
	Original    Image                        `json:"original"`
	AspectRatio float64                      `json:"aspect_ratio"`
	Decades     []string                     `json:"decades"`
	Results     map[string]*GenerationResult `json:"results"`
	Stage       Stage                        `json:"stage"`
}

// Clone returns a deep copy. Image bytes are shared since they are never
// mutated in place.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Decades = append([]string(nil), s.Decades...)
	c.Results = make(map[string]*GenerationResult, len(s.Results))
	for d, r := range s.Results {
		if r == nil {
			continue
		}
		rc := *r
		if r.Image != nil {
			img := *r.Image
			rc.Image = &img
		}
		c.Results[d] = &rc
	}
	return &c
}

func (s *Session) Result(decade string) (*GenerationResult, bool) {
	r, ok := s.Results[decade]
	return r, ok && r != nil
}

func (s *Session) SetResult(decade string, r *GenerationResult) {
	if s.Results == nil {
		s.Results = make(map[string]*GenerationResult)
	}
	s.Results[decade] = r
}

func (s *Session) HasDecade(decade string) bool {
	for _, d := range s.Decades {
		if d == decade {
			return true
		}
	}
	return false
}

// AllTerminal reports whether every selected decade is done or failed.
func (s *Session) AllTerminal() bool {
	if len(s.Decades) == 0 {
		return false
	}
	for _, d := range s.Decades {
		r, ok := s.Result(d)
		if !ok || !r.Status.Terminal() {
			return false
		}
	}
	return true
}

// MissingDecades lists the selected decades without a completed image.
func (s *Session) MissingDecades() []string {
	var missing []string
	for _, d := range s.Decades {
		r, ok := s.Result(d)
		if !ok || r.Status != StatusDone || r.Image == nil {
			missing = append(missing, d)
		}
	}
	return missing
}

// SortNewestFirst orders sessions by creation time descending. ULIDs sort by
// time too, so the ID breaks ties deterministically.
func SortNewestFirst(sessions []*Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].ID > sessions[j].ID
	})
}
