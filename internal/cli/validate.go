package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"deckgenius/internal/models"
	"deckgenius/internal/playback"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a presentation or slide export",
		Long:  `Parses an export file and reports whether it can be imported and whether its deck is ready for autoplay with the configured slide selection.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, _, err := opts.loadConfig()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			imp, err := models.ParseImport(data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if imp.Kind == models.ImportSlide {
				fmt.Fprintf(out, "slide %q with %d elements\n", imp.Slide.ID, len(imp.Slide.Elements))
				return nil
			}

			doc := imp.Document
			fmt.Fprintf(out, "presentation %q with %d slides (%s)\n", doc.Title, len(doc.Slides), aspectOf(doc))
			if len(doc.Slides) == 0 {
				return models.ErrEmptyPresentation
			}

			selector := selectorFor(manager.Get().Playback)
			if err := playback.CheckAutoplay(doc.Slides, selector); err != nil {
				fmt.Fprintf(out, "autoplay: not ready: %v\n", err)
				return nil
			}
			welcome, _ := selector.Welcome(doc.Slides)
			template := doc.Slides[selector.TemplateIndex]
			fmt.Fprintf(out, "autoplay: waiting slide %q, template %q\n", welcome.ID, template.ID)
			return nil
		},
	}
}

func aspectOf(doc *models.Document) models.AspectRatio {
	if doc.AspectRatio == "" {
		return models.Aspect16x9
	}
	return doc.AspectRatio
}
