package vision

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder for template files
	_ "image/png"  // register PNG decoder for template files
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Catalog holds one grayscale reference image per label.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Templates can be reloaded
//     between runs while the API reads Info.
type Catalog struct {
	mu     sync.RWMutex
	images map[Label]*image.Gray
}

// TemplateInfo describes one catalog entry for status displays.
type TemplateInfo struct {
	Label  Label `json:"label"`
	Bound  bool  `json:"bound"`
	Width  int   `json:"width,omitempty"`
	Height int   `json:"height,omitempty"`
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{images: make(map[Label]*image.Gray)}
}

// Set binds img (converted to grayscale) to label.
func (c *Catalog) Set(label Label, img image.Image) error {
	if !label.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	if img == nil || img.Bounds().Empty() {
		return fmt.Errorf("%w: template %s", ErrEmptyImage, label)
	}

	gray := ToGray(img)

	c.mu.Lock()
	c.images[label] = gray
	c.mu.Unlock()
	return nil
}

// Get returns the template bound to label.
func (c *Catalog) Get(label Label) (*image.Gray, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[label]
	return img, ok
}

// Missing returns the labels in required that have no template, in order.
func (c *Catalog) Missing(required []Label) []Label {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var missing []Label
	for _, l := range required {
		if _, ok := c.images[l]; !ok {
			missing = append(missing, l)
		}
	}
	return missing
}

// Info lists every known label with its binding state.
func (c *Catalog) Info() []TemplateInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]TemplateInfo, 0, len(allLabels))
	for _, l := range allLabels {
		info := TemplateInfo{Label: l}
		if img, ok := c.images[l]; ok {
			info.Bound = true
			info.Width = img.Bounds().Dx()
			info.Height = img.Bounds().Dy()
		}
		out = append(out, info)
	}
	return out
}

// LoadFile decodes a PNG or JPEG file and binds it to label.
func (c *Catalog) LoadFile(label Label, path string) error {
	img, err := DecodeFile(path)
	if err != nil {
		return err
	}
	return c.Set(label, img)
}

// LoadDir loads every known label from dir. A label's file is
// files[label] when present, otherwise "<label>.png". Absent files are
// skipped and show up later through Missing; unreadable or undecodable
// files are reported together.
func (c *Catalog) LoadDir(dir string, files map[string]string) ([]Label, error) {
	for name := range files {
		if !Label(name).Valid() {
			return nil, fmt.Errorf("%w: %q in template file map", ErrUnknownLabel, name)
		}
	}

	var loaded []Label
	var errs []error
	for _, l := range allLabels {
		name := files[string(l)]
		if name == "" {
			name = string(l) + ".png"
		}
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, name)
		}

		err := c.LoadFile(l, path)
		switch {
		case err == nil:
			loaded = append(loaded, l)
		case errors.Is(err, fs.ErrNotExist):
			continue
		default:
			errs = append(errs, fmt.Errorf("%s: %w", l, err))
		}
	}

	sort.Slice(loaded, func(i, j int) bool { return loaded[i] < loaded[j] })
	return loaded, errors.Join(errs...)
}

// DecodeFile reads a PNG or JPEG image from disk.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}
