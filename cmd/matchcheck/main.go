// matchcheck matches every catalog template against a saved screenshot
// and prints what the hunter would see: confidence, location, click point
// and whether the match clears the threshold.
//
//	matchcheck -templates ./templates -frame shot.png -threshold 0.8 [-exhaustive]
//
// Use it to tune the threshold and template crops offline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"text/tabwriter"

	"github.com/nerrad567/bosshunter/internal/infrastructure/config"
	"github.com/nerrad567/bosshunter/internal/vision"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args and writes one line per label to out.
func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("matchcheck", flag.ContinueOnError)
	fs.SetOutput(out)
	templatesDir := fs.String("templates", "./templates", "directory holding <label>.png templates")
	framePath := fs.String("frame", "", "screenshot to match against (PNG or JPEG)")
	threshold := fs.Float64("threshold", 0.8, "confidence a match must reach")
	exhaustive := fs.Bool("exhaustive", false, "score every placement instead of the coarse-to-fine search")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *framePath == "" {
		return errors.New("-frame is required")
	}
	if *threshold < config.MinThreshold || *threshold > config.MaxThreshold {
		return fmt.Errorf("-threshold must be between %.2f and %.2f", config.MinThreshold, config.MaxThreshold)
	}

	catalog := vision.NewCatalog()
	if _, err := catalog.LoadDir(*templatesDir, nil); err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	img, err := vision.DecodeFile(*framePath)
	if err != nil {
		return fmt.Errorf("loading frame: %w", err)
	}
	frame := vision.ToGray(img)

	matcher := vision.NewMatcher()
	if *exhaustive {
		matcher = &vision.NCCMatcher{Exhaustive: true}
	}
	return report(out, catalog, matcher, frame, *threshold)
}

// report matches each label and prints a table.
func report(out io.Writer, catalog *vision.Catalog, matcher vision.Matcher, frame *image.Gray, threshold float64) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tCONFIDENCE\tTOP-LEFT\tCENTER\tVERDICT")

	for _, label := range vision.Labels() {
		tmpl, ok := catalog.Get(label)
		if !ok {
			fmt.Fprintf(tw, "%s\t-\t-\t-\tunbound\n", label)
			continue
		}

		res, err := matcher.Match(context.Background(), frame, tmpl)
		if err != nil {
			if errors.Is(err, vision.ErrSizeMismatch) {
				fmt.Fprintf(tw, "%s\t-\t-\t-\tsize mismatch\n", label)
				continue
			}
			return fmt.Errorf("matching %s: %w", label, err)
		}

		verdict := "rejected"
		if res.Accepted(threshold) {
			verdict = "accepted"
		}
		c := res.Center()
		fmt.Fprintf(tw, "%s\t%.4f\t(%d,%d)\t(%d,%d)\t%s\n",
			label, res.Confidence, res.Location.X, res.Location.Y, c.X, c.Y, verdict)
	}

	return tw.Flush()
}
