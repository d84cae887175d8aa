// Package render draws slides into raster images for previews and snapshots.
// Text uses a fixed bitmap face; remote images are drawn as placeholders.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"deckgenius/internal/models"
)

// ImageFormat represents the output image format.
type ImageFormat int

const (
	ImageFormatPNG ImageFormat = iota
	ImageFormatJPEG
)

// Options configures slide-to-image rendering.
type Options struct {
	// Width is the output width in pixels. Height follows the aspect ratio.
	Width       int
	Format      ImageFormat
	JPEGQuality int
}

// DefaultOptions returns default rendering options.
func DefaultOptions() Options {
	return Options{Width: 960, Format: ImageFormatPNG, JPEGQuality: 90}
}

var (
	white       = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	black       = color.NRGBA{A: 255}
	placeholder = color.NRGBA{R: 0xd9, G: 0xd9, B: 0xd9, A: 0xff}
)

// SlideToImage renders slide at the design size of aspect, scaled to opts.Width.
func SlideToImage(slide models.Slide, aspect models.AspectRatio, opts Options) image.Image {
	if opts.Width <= 0 {
		opts.Width = DefaultOptions().Width
	}
	designW, designH := aspect.Dimensions()
	imgW := opts.Width
	imgH := imgW * designH / designW
	scale := float64(imgW) / float64(designW)

	img := image.NewRGBA(image.Rect(0, 0, imgW, imgH))
	bg := white
	if c, ok := ParseColor(slide.BackgroundColor); ok {
		bg = c
	}
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	if src, ok := decodeDataURI(slide.BackgroundImage); ok {
		xdraw.ApproxBiLinear.Scale(img, img.Bounds(), src, src.Bounds(), draw.Over, nil)
	}

	r := &renderer{img: img, scale: scale}
	for _, el := range slide.Elements {
		switch el.Type {
		case models.ElementText:
			r.text(el)
		case models.ElementImage:
			r.image(el)
		}
	}
	return img
}

// Encode writes img in the requested format
func Encode(w io.Writer, img image.Image, opts Options) error {
	switch opts.Format {
	case ImageFormatJPEG:
		quality := opts.JPEGQuality
		if quality <= 0 || quality > 100 {
			quality = 90
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		return png.Encode(w, img)
	}
}

// SlidePNG renders slide and returns it PNG-encoded
func SlidePNG(slide models.Slide, aspect models.AspectRatio, width int) ([]byte, error) {
	var buf bytes.Buffer
	img := SlideToImage(slide, aspect, Options{Width: width})
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode slide %s: %w", slide.ID, err)
	}
	return buf.Bytes(), nil
}

type renderer struct {
	img   *image.RGBA
	scale float64
}

func (r *renderer) rect(el models.Element) image.Rectangle {
	x := int(el.X * r.scale)
	y := int(el.Y * r.scale)
	w := int(el.Width * r.scale)
	h := int(el.Height * r.scale)
	return image.Rect(x, y, x+w, y+h).Intersect(r.img.Bounds())
}

func (r *renderer) image(el models.Element) {
	rect := r.rect(el)
	if rect.Empty() {
		return
	}
	if src, ok := decodeDataURI(el.Src); ok {
		xdraw.ApproxBiLinear.Scale(r.img, rect, src, src.Bounds(), draw.Over, nil)
		return
	}
	draw.Draw(r.img, rect, image.NewUniform(placeholder), image.Point{}, draw.Over)
}

func (r *renderer) text(el models.Element) {
	rect := r.rect(el)
	if rect.Empty() || el.Text == "" {
		return
	}
	c := black
	if parsed, ok := ParseColor(el.Color); ok {
		c = parsed
	}

	face := basicfont.Face7x13
	lineH := face.Metrics().Height.Ceil()
	d := &font.Drawer{Dst: r.img, Src: image.NewUniform(c), Face: face}

	y := rect.Min.Y + face.Metrics().Ascent.Ceil()
	for _, line := range wrap(d, transform(el.Text, el.TextTransform), rect.Dx()) {
		if y > rect.Max.Y {
			break
		}
		width := d.MeasureString(line).Ceil()
		x := rect.Min.X
		switch el.Align {
		case "center":
			x += (rect.Dx() - width) / 2
		case "right":
			x += rect.Dx() - width
		}
		d.Dot = fixed.P(x, y)
		d.DrawString(line)
		y += lineH
	}
}

func transform(s, mode string) string {
	switch mode {
	case "uppercase":
		return strings.ToUpper(s)
	case "lowercase":
		return strings.ToLower(s)
	case "capitalize":
		words := strings.Fields(s)
		for i, w := range words {
			rs := []rune(w)
			rs[0] = []rune(strings.ToUpper(string(rs[0])))[0]
			words[i] = string(rs)
		}
		return strings.Join(words, " ")
	}
	return s
}

// wrap breaks text into lines no wider than width, keeping explicit newlines.
func wrap(d *font.Drawer, text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if d.MeasureString(candidate).Ceil() > width {
				lines = append(lines, line)
				line = w
				continue
			}
			line = candidate
		}
		lines = append(lines, line)
	}
	return lines
}

// ParseColor understands #rgb, #rrggbb and #rrggbbaa
func ParseColor(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]}) + "ff"
	case 6:
		s += "ff"
	case 8:
	default:
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}

func decodeDataURI(src string) (image.Image, bool) {
	if !strings.HasPrefix(src, "data:image/") {
		return nil, false
	}
	comma := strings.IndexByte(src, ',')
	if comma < 0 || !strings.HasSuffix(src[:comma], ";base64") {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(src[comma+1:])
	if err != nil {
		return nil, false
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, false
	}
	return img, true
}
