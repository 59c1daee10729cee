package controllers

import (
	"time"

	"flashback/internal/models"
)

type imageView struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

type resultView struct {
	Status    models.GenerationStatus `json:"status"`
	Error     string                  `json:"error,omitempty"`
	ImageURL  string                  `json:"image_url,omitempty"`
	UpdatedAt time.Time               `json:"updated_at"`
}

type sessionView struct {
	ID          string                `json:"id"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	Stage       models.Stage          `json:"stage"`
	AspectRatio float64               `json:"aspect_ratio"`
	Original    imageView             `json:"original"`
	Decades     []string              `json:"decades"`
	Results     map[string]resultView `json:"results"`
	AlbumURL    string                `json:"album_url,omitempty"`
}

type sessionSummary struct {
	ID          string       `json:"id"`
	CreatedAt   time.Time    `json:"created_at"`
	Stage       models.Stage `json:"stage"`
	Decades     []string     `json:"decades"`
	Done        int          `json:"done"`
	Failed      int          `json:"failed"`
	Pending     int          `json:"pending"`
	OriginalURL string       `json:"original_url"`
}

func sessionURL(id string) string {
	return "/sessions/" + id
}

func decadeImageURL(id, decade string) string {
	return sessionURL(id) + "/decades/" + decade + "/image"
}

func newSessionView(s *models.Session) sessionView {
	v := sessionView{
		ID:          s.ID,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		Stage:       s.Stage,
		AspectRatio: s.AspectRatio,
		Original: imageView{
			URL:      sessionURL(s.ID) + "/original",
			MimeType: s.Original.MimeType,
			Width:    s.Original.Width,
			Height:   s.Original.Height,
		},
		Decades: append([]string{}, s.Decades...),
		Results: make(map[string]resultView, len(s.Results)),
	}
	for _, d := range s.Decades {
		r, ok := s.Result(d)
		if !ok {
			continue
		}
		rv := resultView{Status: r.Status, Error: r.Error, UpdatedAt: r.UpdatedAt}
		if r.Status == models.StatusDone {
			rv.ImageURL = decadeImageURL(s.ID, d)
		}
		v.Results[d] = rv
	}
	if len(s.Decades) > 0 && len(s.MissingDecades()) == 0 {
		v.AlbumURL = sessionURL(s.ID) + "/album"
	}
	return v
}

func newSessionSummary(s *models.Session) sessionSummary {
	sum := sessionSummary{
		ID:          s.ID,
		CreatedAt:   s.CreatedAt,
		Stage:       s.Stage,
		Decades:     append([]string{}, s.Decades...),
		OriginalURL: sessionURL(s.ID) + "/original",
	}
	for _, d := range s.Decades {
		r, ok := s.Result(d)
		if !ok {
			continue
		}
		switch r.Status {
		case models.StatusDone:
			sum.Done++
		case models.StatusError:
			sum.Failed++
		case models.StatusPending:
			sum.Pending++
		}
	}
	return sum
}
