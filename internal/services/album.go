package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"flashback/internal/models"
	"flashback/internal/structures"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	albumColumns     = 2
	albumGap         = 40
	albumTitleHeight = 140
	cardPadding      = 24
	cardCaption      = 90
	defaultCardWidth = 600
)

var (
	albumBackground = color.RGBA{R: 0xf4, G: 0xef, B: 0xe6, A: 0xff}
	cardBackground  = color.White
	photoBackground = color.RGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xff}
	inkColor        = color.RGBA{R: 0x2b, G: 0x2b, B: 0x2b, A: 0xff}
)

type AlbumServiceInterface interface {
	Compose(session *models.Session) ([]byte, error)
}

// AlbumService lays every finished decade out as a polaroid card on one PNG.
type AlbumService struct {
	title     string
	cardWidth int
	titleFace font.Face
	labelFace font.Face
}

func NewAlbumService(conf *structures.Config) (AlbumServiceInterface, error) {
	cardWidth := conf.Album.CardWidth
	if cardWidth <= 2*cardPadding {
		cardWidth = defaultCardWidth
	}

	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse album font: %w", err)
	}
	titleFace, err := opentype.NewFace(f, &opentype.FaceOptions{Size: 64, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("failed to create title face: %w", err)
	}
	labelFace, err := opentype.NewFace(f, &opentype.FaceOptions{Size: 40, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("failed to create caption face: %w", err)
	}

	return &AlbumService{
		title:     conf.Album.Title,
		cardWidth: cardWidth,
		titleFace: titleFace,
		labelFace: labelFace,
	}, nil
}

// Compose renders the album. Every selected decade must have a finished image,
// otherwise models.ErrAlbumIncomplete is returned and nothing is rendered.
func (a *AlbumService) Compose(session *models.Session) ([]byte, error) {
	if session == nil || len(session.Decades) == 0 {
		return nil, fmt.Errorf("%w: no decades selected", models.ErrAlbumIncomplete)
	}
	if missing := session.MissingDecades(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", models.ErrAlbumIncomplete, strings.Join(missing, ", "))
	}

	pictures := make([]image.Image, len(session.Decades))
	for i, d := range session.Decades {
		r, _ := session.Result(d)
		img, _, err := image.Decode(bytes.NewReader(r.Image.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s image: %w", d, err)
		}
		pictures[i] = img
	}

	photoSize := a.cardWidth - 2*cardPadding
	cardHeight := cardPadding + photoSize + cardCaption
	rows := (len(pictures) + albumColumns - 1) / albumColumns
	width := albumColumns*a.cardWidth + (albumColumns+1)*albumGap
	height := albumTitleHeight + rows*cardHeight + (rows+1)*albumGap

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(albumBackground), image.Point{}, draw.Src)

	if a.title != "" {
		drawCentered(canvas, a.titleFace, a.title, width/2, albumTitleHeight-40)
	}

	for i, pic := range pictures {
		col, row := i%albumColumns, i/albumColumns
		x := albumGap + col*(a.cardWidth+albumGap)
		y := albumTitleHeight + albumGap + row*(cardHeight+albumGap)

		card := image.Rect(x, y, x+a.cardWidth, y+cardHeight)
		draw.Draw(canvas, card, image.NewUniform(cardBackground), image.Point{}, draw.Src)

		photo := image.Rect(x+cardPadding, y+cardPadding, x+cardPadding+photoSize, y+cardPadding+photoSize)
		draw.Draw(canvas, photo, image.NewUniform(photoBackground), image.Point{}, draw.Src)
		draw.CatmullRom.Scale(canvas, fitRect(pic.Bounds(), photo), pic, pic.Bounds(), draw.Over, nil)

		drawCentered(canvas, a.labelFace, session.Decades[i], x+a.cardWidth/2, photo.Max.Y+cardCaption/2+14)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode album: %w", err)
	}
	return buf.Bytes(), nil
}

// fitRect scales src into dst keeping the aspect ratio, centered.
func fitRect(src, dst image.Rectangle) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	dw, dh := dst.Dx(), dst.Dy()
	if sw == 0 || sh == 0 {
		return dst
	}
	w, h := dw, sh*dw/sw
	if h > dh {
		w, h = sw*dh/sh, dh
	}
	x := dst.Min.X + (dw-w)/2
	y := dst.Min.Y + (dh-h)/2
	return image.Rect(x, y, x+w, y+h)
}

func drawCentered(dst draw.Image, face font.Face, text string, centerX, baseline int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(inkColor),
		Face: face,
	}
	w := d.MeasureString(text).Round()
	d.Dot = fixed.P(centerX-w/2, baseline)
	d.DrawString(text)
}
