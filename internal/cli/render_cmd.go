package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"deckgenius/internal/models"
	"deckgenius/internal/render"
	"deckgenius/internal/synth"
)

func newRenderCmd() *cobra.Command {
	var (
		output  string
		width   int
		quality int
	)

	cmd := &cobra.Command{
		Use:   "render <file> <slide-id>",
		Short: "Render one slide of an export to an image",
		Long:  `Renders a slide from a presentation or slide export file. The format follows the output extension (.png, .jpg).`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			imp, err := models.ParseImport(data)
			if err != nil {
				return err
			}

			var slides []models.Slide
			aspect := models.Aspect16x9
			if imp.Kind == models.ImportDocument {
				slides = imp.Document.Slides
				if imp.Document.AspectRatio != "" {
					aspect = imp.Document.AspectRatio
				}
			} else {
				slides = []models.Slide{*imp.Slide}
			}

			idx := synth.FindSlide(slides, args[1])
			if idx < 0 {
				return fmt.Errorf("%w: %s", models.ErrSlideNotFound, args[1])
			}

			opts := render.Options{Width: width, Format: render.ImageFormatPNG, JPEGQuality: quality}
			switch strings.ToLower(filepath.Ext(output)) {
			case ".jpg", ".jpeg":
				opts.Format = render.ImageFormatJPEG
			}

			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			defer file.Close()

			img := render.SlideToImage(slides[idx], aspect, opts)
			if err := render.Encode(file, img, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d)\n", output, img.Bounds().Dx(), img.Bounds().Dy())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "slide.png", "output image file")
	cmd.Flags().IntVarP(&width, "width", "w", render.DefaultOptions().Width, "output width in pixels")
	cmd.Flags().IntVar(&quality, "quality", render.DefaultOptions().JPEGQuality, "JPEG quality")
	return cmd
}
