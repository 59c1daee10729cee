package models

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrGenerationPending  = errors.New("a generation for this decade is already in progress")
	ErrUnknownDecade      = errors.New("unknown decade")
	ErrNoDecades          = errors.New("no decades selected")
	ErrDuplicateDecade    = errors.New("decade selected more than once")
	ErrDecadeNotSelected  = errors.New("decade is not part of this session")
	ErrAlbumIncomplete    = errors.New("album needs a finished image for every selected decade")
	ErrNoFile             = errors.New("no file uploaded")
	ErrUnsupportedImage   = errors.New("unsupported image type, expected PNG, JPEG or WEBP")
	ErrUploadTooLarge     = errors.New("uploaded file is too large")
	ErrRateLimited        = errors.New("generation limit reached")
	ErrGeneratorNoImage   = errors.New("model returned no image")
	ErrGeneratorNotConfig = errors.New("image generator API key is not configured")
)
