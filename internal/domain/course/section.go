// internal/domain/course/section.go
package course

import "strings"

// SectionKey identifies a section across pages. Local section ids repeat
// between pages, so completion facts are always keyed by both parts.
type SectionKey struct {
	PageID    string
	SectionID string
}

// String renders the compound "pageId_sectionId" form used in storage.
func (k SectionKey) String() string {
	return k.PageID + "_" + k.SectionID
}

// ParseSectionKey splits a compound id at the first separator.
func ParseSectionKey(compound string) (SectionKey, bool) {
	pageID, sectionID, ok := strings.Cut(compound, "_")
	if !ok || pageID == "" || sectionID == "" {
		return SectionKey{}, false
	}
	return SectionKey{PageID: pageID, SectionID: sectionID}, true
}

// NormalizeSectionID turns a raw content id into a local section id for
// pageID. A "pageID_" prefix is stripped; an id carrying some other page's
// prefix keeps only its last segment.
func NormalizeSectionID(raw, pageID string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if pageID != "" {
		if rest, ok := strings.CutPrefix(raw, pageID+"_"); ok && rest != "" {
			return rest
		}
	}
	if i := strings.LastIndex(raw, "_"); i >= 0 && i < len(raw)-1 {
		return raw[i+1:]
	}
	return raw
}

// CompletionTrigger says what completes a section.
type CompletionTrigger string

const (
	// CompleteOnMedia completes the section when its media ends.
	CompleteOnMedia CompletionTrigger = "media"
	// CompleteOnAction waits for an explicit scripted completion.
	CompleteOnAction CompletionTrigger = "action"
)

// SectionElement is a section as mounted on a loaded page, in document order.
type SectionElement struct {
	ID          string // Local id
	Title       string
	Text        string // Plain-text rendering for text-only views
	Function    string // Name of the content function run on activation
	MediaSource string
	CompleteOn  CompletionTrigger
	// Cues fire while the section's media plays; OnEnd runs when it ends.
	Cues  []Cue
	OnEnd []Action
}

// Key returns the section's compound key on pageID.
func (s SectionElement) Key(pageID string) SectionKey {
	return SectionKey{PageID: pageID, SectionID: s.ID}
}

// Slide is the result of loading a page: its sections are mounted and
// addressable once LoadSlide returns.
type Slide struct {
	URL      string
	Title    string
	Body     string
	Sections []SectionElement
}
