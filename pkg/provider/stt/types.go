package stt

// Transcript is the text recognised in one clip.
type Transcript struct {
	// Text is the recognised speech with surrounding whitespace removed.
	Text string

	// Language is the language reported by the service, if any.
	Language string
}
