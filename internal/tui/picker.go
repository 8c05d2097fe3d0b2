package tui

import (
	"errors"

	"github.com/ncruces/zenity"
)

// FilePicker asks the user for a local audio file.
type FilePicker interface {
	PickAudio() (string, error)
}

// ZenityPicker shows the native file dialog. A dismissed dialog yields an
// empty path.
type ZenityPicker struct{}

func (ZenityPicker) PickAudio() (string, error) {
	path, err := zenity.SelectFile(
		zenity.Title("Select dictation audio"),
		zenity.FileFilters{
			{
				Name: "Audio files",
				Patterns: []string{
					"*.wav", "*.mp3", "*.m4a", "*.aac",
					"*.ogg", "*.opus", "*.flac", "*.webm",
				},
			},
		},
	)
	if errors.Is(err, zenity.ErrCanceled) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return path, nil
}
