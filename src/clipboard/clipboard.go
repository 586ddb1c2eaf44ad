package clipboard

import (
	"strings"
	"sync"

	"golang.design/x/clipboard"

	"screen-translator/src/overlay"
)

var writeMu sync.Mutex

func Init() error {
	return clipboard.Init()
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// WriteBoxes copies the translated lines of a finished pass, one per line.
func WriteBoxes(boxes []overlay.TextBox) error {
	if len(boxes) == 0 {
		return nil
	}
	lines := make([]string, 0, len(boxes))
	for _, b := range boxes {
		lines = append(lines, b.TranslatedText)
	}
	return Write(strings.Join(lines, "\n"))
}
