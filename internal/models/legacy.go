package models

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// LegacyRecord is one entry of the old flat history log: a JSON array where
// images were kept as data URLs and the lifecycle as a UI state name.
type LegacyRecord struct {
	ID              string                 `json:"id"`
	Timestamp       int64                  `json:"timestamp"`
	OriginalImage   string                 `json:"originalImage"`
	AspectRatio     float64                `json:"aspectRatio"`
	SelectedDecades []string               `json:"selectedDecades"`
	GeneratedImages map[string]LegacyImage `json:"generatedImages"`
	AppState        string                 `json:"appState"`
}

type LegacyImage struct {
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
}

var errBadDataURL = errors.New("malformed data url")

// ToSession converts a legacy record into the keyed session format.
func (lr *LegacyRecord) ToSession() (*Session, error) {
	if lr.ID == "" {
		return nil, errors.New("legacy record without id")
	}
	original, err := DecodeDataURL(lr.OriginalImage)
	if err != nil {
		return nil, fmt.Errorf("legacy record %s original image: %w", lr.ID, err)
	}

	created := time.UnixMilli(lr.Timestamp).UTC()
	s := &Session{
		ID:          lr.ID,
		CreatedAt:   created,
		UpdatedAt:   created,
		Original:    *original,
		AspectRatio: lr.AspectRatio,
		Decades:     append([]string(nil), lr.SelectedDecades...),
		Results:     make(map[string]*GenerationResult, len(lr.GeneratedImages)),
		Stage:       legacyStage(lr.AppState),
	}
	if len(s.Decades) == 0 {
		for _, d := range Decades {
			if _, ok := lr.GeneratedImages[d]; ok {
				s.Decades = append(s.Decades, d)
			}
		}
	}

	for decade, li := range lr.GeneratedImages {
		switch li.Status {
		case string(StatusDone):
			img, err := DecodeDataURL(li.URL)
			if err != nil {
				s.SetResult(decade, ErrorResult("legacy image unreadable", created))
				continue
			}
			s.SetResult(decade, DoneResult(img, created))
		case string(StatusError):
			s.SetResult(decade, ErrorResult(li.Error, created))
		default:
			// a pending entry in the old log never finished
			s.SetResult(decade, ErrorResult("generation interrupted", created))
		}
	}
	return s, nil
}

func legacyStage(appState string) Stage {
	switch appState {
	case "generating":
		return StageGenerating
	case "results-shown":
		return StageShown
	default:
		return StageUploaded
	}
}

// DecodeDataURL decodes "data:<mime>[;base64],<payload>".
func DecodeDataURL(s string) (*Image, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, errBadDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errBadDataURL
	}

	mime, params, _ := strings.Cut(meta, ";")
	if mime == "" {
		mime = "text/plain"
	}

	var data []byte
	if strings.Contains(params, "base64") {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadDataURL, err)
		}
		data = b
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadDataURL, err)
		}
		data = []byte(unescaped)
	}
	return &Image{Data: data, MimeType: mime}, nil
}
