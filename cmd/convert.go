package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"github.com/trunov/convo/internal/entities"
	"github.com/trunov/convo/internal/formats"
	"github.com/trunov/convo/internal/processor"
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Re-encode a local image file",
	Example: `  convo convert photo.png --to webp
  convo convert scan.tiff --to jpg -o out/scan.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("to", "", "target format (png, jpg, webp, gif, bmp, tiff)")
	convertCmd.Flags().StringP("output", "o", "", "output path (default: input renamed to the target extension)")
	convertCmd.Flags().String("type", "", "declared MIME type of the input (default: guessed from the extension)")
	_ = convertCmd.MarkFlagRequired("to")
}

func runConvert(cmd *cobra.Command, args []string) error {
	path := args[0]
	target, _ := cmd.Flags().GetString("to")
	output, _ := cmd.Flags().GetString("output")
	declared, _ := cmd.Flags().GetString("type")

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if declared == "" {
		declared = guessType(path, data)
	}

	r := processor.New(processor.Options{
		JPEGQuality: cfg.Converter.JPEGQuality,
		WebPQuality: cfg.Converter.WebPQuality,
	})

	out, err := r.Reencode(context.Background(), entities.SourceFile{
		Name:     filepath.Base(path),
		MIMEType: declared,
		Data:     data,
	}, target)
	if err != nil {
		return err
	}

	if output == "" {
		output = filepath.Join(filepath.Dir(path), out.Filename)
	}
	if err := os.WriteFile(output, out.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s, %dx%d, %d bytes)\n",
		path, output, out.MIMEType, out.Width, out.Height, out.Size())
	return nil
}

// guessType mirrors what a browser reports for a picked file: the type
// registered for its extension, or a sniffed one when there is none.
func guessType(path string, data []byte) string {
	if t := mime.TypeByExtension("." + formats.Extension(filepath.Base(path))); t != "" {
		return t
	}
	return mimetype.Detect(data).String()
}
