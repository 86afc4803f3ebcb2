// Package artifact identifies grid artifacts: video recordings and files
// downloaded by a browser session.
package artifact

import "fmt"

// VideoExtension is appended to video names on the grid video endpoint.
const VideoExtension = ".mp4"

// Reference identifies a remote artifact. Zero SessionID means a video recording.
type Reference struct {
	sessionID string
	fileName  string
}

// NewReference creates a reference after validating the file name.
func NewReference(sessionID, fileName string) (Reference, error) {
	if err := ValidateFileName(fileName); err != nil {
		return Reference{}, err
	}
	return Reference{sessionID: sessionID, fileName: fileName}, nil
}

// Video creates a reference to a session video recording.
func Video(fileName string) (Reference, error) {
	return NewReference("", fileName)
}

func (r Reference) SessionID() string { return r.sessionID }
func (r Reference) FileName() string  { return r.fileName }
func (r Reference) IsVideo() bool     { return r.sessionID == "" }

// String renders the reference as session/file, or video/file.mp4 for videos.
func (r Reference) String() string {
	if r.IsVideo() {
		return fmt.Sprintf("video/%s%s", r.fileName, VideoExtension)
	}
	return fmt.Sprintf("%s/%s", r.sessionID, r.fileName)
}
