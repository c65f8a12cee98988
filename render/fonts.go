package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/gg/text"
	"github.com/sirupsen/logrus"
)

// FontLibrary maps document font-family names to loaded font sources. The
// first loaded font doubles as the fallback for unknown families, so a
// design referencing a missing font still renders with consistent layout
// rather than dropping its text.
type FontLibrary struct {
	sources  map[string]*text.FontSource
	fallback *text.FontSource
}

// LoadFonts loads every .ttf/.otf file in dir. Families are keyed by both
// the font's internal name and the file's base name, lowercased. A missing
// or empty directory yields an empty library; text layers are then skipped
// at render time.
func LoadFonts(dir string) (*FontLibrary, error) {
	lib := &FontLibrary{sources: make(map[string]*text.FontSource)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.WithField("dir", dir).Warn("Font directory not found, text layers will not render")
			return lib, nil
		}
		return nil, fmt.Errorf("failed to read font directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".ttf" && ext != ".otf" {
			continue
		}
		if err := lib.Add(filepath.Join(dir, entry.Name())); err != nil {
			logrus.WithFields(logrus.Fields{
				"file":  entry.Name(),
				"error": err,
			}).Warn("Skipping unloadable font")
		}
	}

	if len(lib.sources) == 0 {
		logrus.WithField("dir", dir).Warn("No fonts loaded, text layers will not render")
	}
	return lib, nil
}

// Add loads one font file into the library.
func (l *FontLibrary) Add(path string) error {
	source, err := text.NewFontSourceFromFile(path)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	l.sources[strings.ToLower(base)] = source
	if name := source.Name(); name != "" {
		l.sources[strings.ToLower(name)] = source
	}
	if l.fallback == nil {
		l.fallback = source
	}

	logrus.WithFields(logrus.Fields{
		"file": filepath.Base(path),
		"name": source.Name(),
	}).Debug("Font loaded")
	return nil
}

// Face returns a sized face for the family, falling back to the first
// loaded font for unknown families. Returns nil when the library is empty.
func (l *FontLibrary) Face(family string, size float64) text.Face {
	if source, ok := l.sources[strings.ToLower(family)]; ok {
		return source.Face(size)
	}
	if l.fallback != nil {
		return l.fallback.Face(size)
	}
	return nil
}

// Close releases all loaded font sources.
func (l *FontLibrary) Close() error {
	seen := make(map[*text.FontSource]struct{})
	var firstErr error
	for _, source := range l.sources {
		if _, dup := seen[source]; dup {
			continue
		}
		seen[source] = struct{}{}
		if err := source.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
