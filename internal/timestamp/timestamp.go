// Package timestamp resolves the calendar date stamped onto each photo.
//
// The capture date is read from the image's EXIF block when one is present
// and parseable; otherwise the file's last-modification time stands in. A
// Stamp records which of the two sources supplied the date so callers can
// log the fallback.
package timestamp

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Source identifies where a Stamp's date came from.
type Source int

const (
	SourceExif Source = iota
	SourceModTime
)

func (s Source) String() string {
	switch s {
	case SourceExif:
		return "exif"
	case SourceModTime:
		return "mtime"
	default:
		return "unknown"
	}
}

// Stamp is the resolved capture date of one image together with its
// provenance.
type Stamp struct {
	Time   time.Time
	Source Source
}

// Text formats the stamp as YYYY-MM-DD, zero-padded, regardless of source.
func (s Stamp) Text() string {
	return s.Time.Format("2006-01-02")
}

// exifTimeLayout is the datetime format mandated by the EXIF standard.
const exifTimeLayout = "2006:01:02 15:04:05"

// dateTimeFields in priority order. DateTimeOriginal is the shutter time;
// the others are progressively weaker approximations of it.
var dateTimeFields = []exif.FieldName{
	exif.DateTimeOriginal,
	exif.DateTimeDigitized,
	exif.DateTime,
}

// Resolve produces the watermark date for the image at path. It returns an
// error only when the fallback modification time is itself unobtainable
// (the file disappeared or is unreadable); a missing or malformed EXIF
// block is not an error.
func Resolve(path string) (Stamp, error) {
	if t, ok := exifTime(path); ok {
		return Stamp{Time: t, Source: SourceExif}, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return Stamp{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Stamp{Time: info.ModTime().Local(), Source: SourceModTime}, nil
}

// exifTime extracts the first well-formed EXIF datetime field, trying the
// fields in dateTimeFields order. Any failure along the way (unreadable
// file, no EXIF block, non-parseable or out-of-range value) reports !ok.
func exifTime(path string) (time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, false
	}

	for _, field := range dateTimeFields {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		raw, err := tag.StringVal()
		if err != nil {
			continue
		}
		t, err := parseExifDateTime(raw)
		if err != nil {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

// parseExifDateTime parses an EXIF "YYYY:MM:DD HH:MM:SS" value in local
// time. Trailing NULs (ASCII fields are NUL-terminated on some cameras)
// and surrounding whitespace are tolerated; out-of-range month/day values
// are rejected by the parser.
func parseExifDateTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	return time.ParseInLocation(exifTimeLayout, raw, time.Local)
}
