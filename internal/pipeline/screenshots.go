package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// maxNameAttempts bounds the collision suffixes tried for one timestamp.
const maxNameAttempts = 1000

// ScreenshotStore keeps rendered screenshots and returns where each one
// went.
type ScreenshotStore interface {
	Save(caseNumber string, at time.Time, png []byte) (string, error)
}

// DirScreenshots writes screenshots as <case>_<YYYYMMDD_HHMMSS>.png under
// Dir. An existing file is never overwritten; a numeric suffix is added
// instead.
type DirScreenshots struct {
	Dir string
}

// Save writes png and returns its path.
func (d DirScreenshots) Save(caseNumber string, at time.Time, png []byte) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "screenshots: create dir %s", d.Dir)
	}

	base := fmt.Sprintf("%s_%s", SafeName(caseNumber), at.Format("20060102_150405"))
	for i := 0; i < maxNameAttempts; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		path := filepath.Join(d.Dir, name+".png")

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", eris.Wrapf(err, "screenshots: create %s", path)
		}
		if _, err := f.Write(png); err != nil {
			f.Close()
			return "", eris.Wrapf(err, "screenshots: write %s", path)
		}
		if err := f.Close(); err != nil {
			return "", eris.Wrapf(err, "screenshots: close %s", path)
		}
		return path, nil
	}
	return "", eris.Errorf("screenshots: no free name for %s", base)
}

// SafeName makes a case number usable as a file name.
func SafeName(caseNumber string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, strings.TrimSpace(caseNumber))
	s = strings.Trim(s, ".")
	if s == "" {
		return "case"
	}
	return s
}
