// internal/domain/course/page.go
package course

// Module groups pages for display in the table of contents.
type Module struct {
	ID    string
	Title string
}

// Page is one slide of the course. Index is the sole ordering key.
type Page struct {
	ID          string
	Index       int
	URL         string
	Title       string
	ModuleID    string // Empty means DefaultModuleID
	HasSections bool
	HasMedia    bool
	Completed   bool
	// Sections lists the sections known before the page is loaded. It is
	// only used to pre-populate the table of contents and may be empty.
	Sections []SectionInfo
}

// SectionInfo describes a section without mounting it.
type SectionInfo struct {
	ID    string
	Title string
}

const DefaultModuleID = "default"

// Definition is the static description of a course.
type Definition struct {
	ID           string
	Title        string
	ScormVersion string // "1.2" or "2004"
	HasExam      bool
	CoverPage    bool // Page 0 is a non-navigable splash page
	Modules      []Module
	Pages        []Page
}

// ModuleTitle returns the title for a module id, falling back to the id itself.
func (d *Definition) ModuleTitle(id string) string {
	for _, m := range d.Modules {
		if m.ID == id {
			return m.Title
		}
	}
	if id == "" || id == DefaultModuleID {
		return "Módulo"
	}
	return id
}
