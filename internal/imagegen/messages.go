package imagegen

import (
	"fmt"
	"strings"

	"flashback/internal/models"
)

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

// Data is base64 on the wire, which []byte gives for free.
type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
	Error          *apiError       `json:"error,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func newRequest(req *models.GenerationRequest) *generateRequest {
	return &generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MimeType: req.Source.MimeType, Data: req.Source.Data}},
				{Text: req.Prompt},
			},
		}},
		GenerationConfig: generationConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	}
}

// image picks the first inline image. Without one the error carries whatever
// the model said instead.
func (r *generateResponse) image() (*models.Image, error) {
	var texts []string
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) > 0 {
				mime := p.InlineData.MimeType
				if mime == "" {
					mime = "image/png"
				}
				return &models.Image{Data: p.InlineData.Data, MimeType: mime}, nil
			}
			if t := strings.TrimSpace(p.Text); t != "" {
				texts = append(texts, t)
			}
		}
	}

	switch {
	case r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "":
		return nil, fmt.Errorf("%w: request blocked (%s)", models.ErrGeneratorNoImage, r.PromptFeedback.BlockReason)
	case len(texts) > 0:
		return nil, fmt.Errorf("%w: %s", models.ErrGeneratorNoImage, strings.Join(texts, " "))
	case len(r.Candidates) > 0 && r.Candidates[0].FinishReason != "":
		return nil, fmt.Errorf("%w: finish reason %s", models.ErrGeneratorNoImage, r.Candidates[0].FinishReason)
	default:
		return nil, models.ErrGeneratorNoImage
	}
}
