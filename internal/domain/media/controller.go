// internal/domain/media/controller.go
package media

// Controller drives the single audio/video element pair of a course.
type Controller interface {
	SetSource(src string) error
	Play() error
	Pause()
	// Clean stops playback and detaches the current source.
	Clean()
}

// ModalSubsystem owns modal dialogs and their own media.
type ModalSubsystem interface {
	Open(modalID string) error
	CloseActive()
}
