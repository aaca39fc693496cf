package quality

import "fmt"

// ErrSelectionChanged reports that a mid-capture URL refresh produced a
// different track pair than the one being recorded.
type ErrSelectionChanged struct {
	Field    string // "video", "audio"
	Fatal    bool   // container changes always are
	Old, New string
}

func (e *ErrSelectionChanged) Error() string {
	return fmt.Sprintf("%s selection changed: %s -> %s", e.Field, e.Old, e.New)
}

// Compare checks a refreshed selection against the one capture started with.
// An itag change is an error unless ignoreQualityChange is set; a container
// change is always an error, because segments of different containers
// cannot be concatenated into one track file.
func Compare(current, refreshed Selection, ignoreQualityChange bool) error {
	if cc, rc := current.Video.Container(), refreshed.Video.Container(); cc != rc {
		return &ErrSelectionChanged{Field: "video", Fatal: true, Old: cc, New: rc}
	}
	if cc, rc := current.Audio.Container(), refreshed.Audio.Container(); cc != rc {
		return &ErrSelectionChanged{Field: "audio", Fatal: true, Old: cc, New: rc}
	}
	if ignoreQualityChange {
		return nil
	}
	if current.Video.Itag != refreshed.Video.Itag {
		return &ErrSelectionChanged{
			Field: "video",
			Old:   fmt.Sprintf("itag %d", current.Video.Itag),
			New:   fmt.Sprintf("itag %d", refreshed.Video.Itag),
		}
	}
	if current.Audio.Itag != refreshed.Audio.Itag {
		return &ErrSelectionChanged{
			Field: "audio",
			Old:   fmt.Sprintf("itag %d", current.Audio.Itag),
			New:   fmt.Sprintf("itag %d", refreshed.Audio.Itag),
		}
	}
	return nil
}
