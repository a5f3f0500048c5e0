package voice

import "time"

// TranscriptionResponse is the backend reply to POST /api/voice/transcribe.
// Text may be empty when nothing was recognized.
type TranscriptionResponse struct {
	Text     string `json:"text"`
	Duration int64  `json:"duration,omitempty"` // milliseconds
}

// Recording is the finalized result of a capture session: the accumulated
// chunks joined into a single blob.
type Recording struct {
	Data      []byte
	Format    string
	StartedAt time.Time
	StoppedAt time.Time
}

// Empty reports whether the capture produced no audio at all.
func (r Recording) Empty() bool {
	return len(r.Data) == 0
}
