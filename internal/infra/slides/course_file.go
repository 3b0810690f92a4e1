// internal/infra/slides/course_file.go
package slides

import (
	"fmt"
	"os"
	"path"
	"strings"

	"course_runtime/internal/domain/course"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"
)

var ErrInvalidCourse = fmt.Errorf("invalid course file")

type courseFile struct {
	ID           string       `yaml:"id"`
	Title        string       `yaml:"title"`
	ScormVersion string       `yaml:"scorm_version"`
	HasExam      bool         `yaml:"has_exam"`
	CoverPage    bool         `yaml:"cover_page"`
	Modules      []moduleFile `yaml:"modules"`
	Pages        []pageFile   `yaml:"pages"`
}

type moduleFile struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}

type pageFile struct {
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	URL         string        `yaml:"url"`
	Module      string        `yaml:"module"`
	HasSections *bool         `yaml:"has_sections"`
	HasMedia    bool          `yaml:"has_media"`
	Sections    []sectionFile `yaml:"sections"`
}

type sectionFile struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}

// LoadCourseFile reads a YAML course description.
func LoadCourseFile(filename string) (*course.Definition, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read course file %s: %w", filename, err)
	}
	return ParseCourse(data)
}

// ParseCourse decodes and validates a course description. Missing ids are
// derived from titles, or from the page URL.
func ParseCourse(data []byte) (*course.Definition, error) {
	var f courseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCourse, err)
	}

	def := &course.Definition{
		ID:           f.ID,
		Title:        f.Title,
		ScormVersion: f.ScormVersion,
		HasExam:      f.HasExam,
		CoverPage:    f.CoverPage,
	}
	if def.ID == "" {
		def.ID = slug.Make(f.Title)
	}
	if def.ID == "" {
		return nil, fmt.Errorf("%w: course needs an id or a title", ErrInvalidCourse)
	}
	if def.ScormVersion == "" {
		def.ScormVersion = "2004"
	}

	modules := make(map[string]bool, len(f.Modules))
	for _, m := range f.Modules {
		id := m.ID
		if id == "" {
			id = slug.Make(m.Title)
		}
		if id == "" || modules[id] {
			return nil, fmt.Errorf("%w: module %q has a missing or duplicate id", ErrInvalidCourse, m.Title)
		}
		modules[id] = true
		def.Modules = append(def.Modules, course.Module{ID: id, Title: m.Title})
	}

	if len(f.Pages) == 0 {
		return nil, fmt.Errorf("%w: course has no pages", ErrInvalidCourse)
	}
	seen := make(map[string]bool, len(f.Pages))
	for i, p := range f.Pages {
		if strings.TrimSpace(p.URL) == "" {
			return nil, fmt.Errorf("%w: page %d has no url", ErrInvalidCourse, i)
		}
		id := p.ID
		if id == "" {
			id = pageIDFromTitle(p.Title, p.URL)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate page id %q", ErrInvalidCourse, id)
		}
		seen[id] = true
		if p.Module != "" && !modules[p.Module] {
			return nil, fmt.Errorf("%w: page %q references unknown module %q", ErrInvalidCourse, id, p.Module)
		}

		page := course.Page{
			ID:          id,
			Index:       i,
			URL:         p.URL,
			Title:       p.Title,
			ModuleID:    p.Module,
			HasSections: p.HasSections == nil || *p.HasSections,
			HasMedia:    p.HasMedia,
		}
		for _, s := range p.Sections {
			sid := course.NormalizeSectionID(s.ID, id)
			if sid == "" {
				sid = slug.Make(s.Title)
			}
			page.Sections = append(page.Sections, course.SectionInfo{ID: sid, Title: s.Title})
		}
		def.Pages = append(def.Pages, page)
	}
	return def, nil
}

// pageIDFromTitle never contains the section separator, so compound keys
// stay unambiguous.
func pageIDFromTitle(title, url string) string {
	base := title
	if base == "" {
		base = strings.TrimSuffix(path.Base(url), path.Ext(url))
	}
	return strings.ReplaceAll(slug.Make(base), "_", "-")
}
