package catalog

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"scheinicam/internal/gateway"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatFileSize renders bytes in binary units with two decimals using the
// locale's decimal separator. Zero and negative sizes render as "0 B".
func FormatFileSize(tag language.Tag, bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	size := float64(bytes)
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	return message.NewPrinter(tag).Sprintf("%.2f %s", size, sizeUnits[unit])
}

func isGerman(tag language.Tag) bool {
	base, _ := tag.Base()
	german, _ := language.German.Base()
	return base == german
}

// DisplayName is the human label for a video, derived from its start time in
// loc. German locales get "2.1.2006 - 15:04 Uhr".
func DisplayName(video gateway.Video, tag language.Tag, loc *time.Location) string {
	german := isGerman(tag)
	if video.StartTime.IsZero() {
		if german {
			return "Unbekannt"
		}
		return "unknown"
	}
	if loc == nil {
		loc = time.Local
	}
	start := video.StartTime.In(loc)
	if german {
		return start.Format("2.1.2006") + " - " + start.Format("15:04") + " Uhr"
	}
	return start.Format("2006-01-02 15:04")
}

// DisplayName labels video with the catalog's locale in the local zone.
func (c *Catalog) DisplayName(video gateway.Video) string {
	return DisplayName(video, c.locale, time.Local)
}

// FormatFileSize renders bytes with the catalog's locale.
func (c *Catalog) FormatFileSize(bytes int64) string {
	return FormatFileSize(c.locale, bytes)
}
