// internal/domain/course/view.go
package course

import "context"

// PageLoader fetches a page's content and mounts it. It must only return
// once the page's sections exist, so a nil error means they are addressable.
type PageLoader interface {
	LoadSlide(ctx context.Context, url string) (*Slide, error)
}

// ScrollBehavior mirrors the two scrolling styles the runtime asks for.
type ScrollBehavior int

const (
	ScrollSmooth ScrollBehavior = iota
	ScrollInstant
)

// SlideView renders the mounted page. Implementations report intersection
// changes back to the runtime on their own; the view never decides gating.
type SlideView interface {
	ShowPage(page Page, slide *Slide)
	ShowSection(key SectionKey)
	HideSection(key SectionKey)
	MarkSectionCompleted(key SectionKey)
	ScrollToSection(key SectionKey, behavior ScrollBehavior)
	// ShowMessage displays a short advisory to the learner.
	ShowMessage(text string)
}
