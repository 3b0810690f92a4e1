// internal/domain/course/navigation.go
package course

// NavigationMode tells the activation engine why the viewport is moving.
type NavigationMode int

const (
	ModeOrganic NavigationMode = iota
	ModeForcedScroll
	ModeTOCJump
	ModeResizing
)

func (m NavigationMode) String() string {
	switch m {
	case ModeOrganic:
		return "organic"
	case ModeForcedScroll:
		return "forced_scroll"
	case ModeTOCJump:
		return "toc_jump"
	case ModeResizing:
		return "resizing"
	default:
		return "unknown"
	}
}

// PendingNavigation is a section target recorded before a page load and
// honored once the page's sections are mounted. PageIndex -1 means the
// target applies to whichever page loads next.
type PendingNavigation struct {
	PageIndex int    `json:"pageIndex"`
	SectionID string `json:"sectionId"`
}

// AppliesTo reports whether the intent targets the page at index.
func (p PendingNavigation) AppliesTo(index int) bool {
	return p.PageIndex < 0 || p.PageIndex == index
}
