// internal/app/toc_sync.go
package app

import (
	"course_runtime/internal/domain/course"

	"github.com/sirupsen/logrus"
)

type TOCSectionNode struct {
	ID        string
	Title     string
	Completed bool
	Unlocked  bool // Selectable as a jump target
}

type TOCPageNode struct {
	Index     int
	PageID    string
	Title     string
	Completed bool
	Current   bool
	Unlocked  bool
	Sections  []TOCSectionNode
}

type TOCModule struct {
	ID    string
	Title string
	Pages []TOCPageNode
}

// TOCView renders the table of contents. It never decides completion.
type TOCView interface {
	Render(modules []TOCModule)
	UpdatePageStatus(index int, completed bool)
	UpdateSectionStatus(index int, sectionID string, completed bool)
	Show()
	Hide()
	Visible() bool
}

// TOCSync keeps a TOCView consistent with CourseState and CompletionStore.
type TOCSync struct {
	state    *CourseState
	store    *CompletionStore
	modes    *NavigationModes
	view     TOCView
	sections map[int][]course.SectionInfo
	gate     func(pageID, sectionID string) bool
	subs     []*Subscription
	log      *logrus.Entry
}

func NewTOCSync(state *CourseState, store *CompletionStore, modes *NavigationModes, view TOCView, log *logrus.Entry) *TOCSync {
	t := &TOCSync{
		state:    state,
		store:    store,
		modes:    modes,
		view:     view,
		sections: make(map[int][]course.SectionInfo),
		log:      log.WithField("component", "toc"),
	}
	for _, p := range state.Pages() {
		if len(p.Sections) > 0 {
			t.sections[p.Index] = append([]course.SectionInfo(nil), p.Sections...)
		}
	}
	t.subs = append(t.subs,
		store.Subscribe(t.HandleSectionCompleted),
		state.OnPageStatus(t.HandlePageStatus),
	)
	return t
}

// Close drops the adapter's subscriptions.
func (t *TOCSync) Close() {
	for _, s := range t.subs {
		s.Unsubscribe()
	}
	t.subs = nil
}

// SetSectionGate installs the predicate telling which incomplete sections
// can already be jumped to.
func (t *TOCSync) SetSectionGate(gate func(pageID, sectionID string) bool) {
	t.gate = gate
}

// SetSections records the sections of page index as found when it loaded.
func (t *TOCSync) SetSections(index int, sections []course.SectionElement) {
	page, ok := t.state.Page(index)
	if !ok {
		return
	}
	infos := make([]course.SectionInfo, 0, len(sections))
	for _, s := range sections {
		id := course.NormalizeSectionID(s.ID, page.ID)
		if id == "" {
			continue
		}
		infos = append(infos, course.SectionInfo{ID: id, Title: s.Title})
	}
	t.sections[index] = infos
}

// KnownSections returns the section ids known for page index.
func (t *TOCSync) KnownSections(index int) []string {
	infos := t.sections[index]
	ids := make([]string, 0, len(infos))
	for _, s := range infos {
		ids = append(ids, s.ID)
	}
	return ids
}

func (t *TOCSync) allSectionsCompleted(index int, pageID string) bool {
	infos := t.sections[index]
	if len(infos) == 0 {
		return false
	}
	for _, s := range infos {
		if !t.store.IsSectionCompleted(course.SectionKey{PageID: pageID, SectionID: s.ID}) {
			return false
		}
	}
	return true
}

// Tree derives the whole table of contents. The cover page is left out.
func (t *TOCSync) Tree() []TOCModule {
	def := t.state.Definition()
	var modules []TOCModule
	byID := make(map[string]int)
	jumping := t.modes.IsActive(course.ModeTOCJump)

	for _, p := range t.state.Pages() {
		if p.Index == 0 && def.CoverPage {
			continue
		}
		moduleID := p.ModuleID
		if moduleID == "" {
			moduleID = course.DefaultModuleID
		}
		node := TOCPageNode{
			Index:    p.Index,
			PageID:   p.ID,
			Title:    p.Title,
			Current:  p.Index == t.state.CurrentIndex(),
			Unlocked: p.Index <= t.state.FurthestIndex() || p.Completed,
		}
		node.Completed = p.Completed || (!jumping && t.allSectionsCompleted(p.Index, p.ID))
		for _, s := range t.sections[p.Index] {
			done := t.store.IsSectionCompleted(course.SectionKey{PageID: p.ID, SectionID: s.ID})
			node.Sections = append(node.Sections, TOCSectionNode{
				ID:        s.ID,
				Title:     s.Title,
				Completed: done,
				Unlocked:  done || p.Completed || (t.gate != nil && t.gate(p.ID, s.ID)),
			})
		}

		i, ok := byID[moduleID]
		if !ok {
			modules = append(modules, TOCModule{ID: moduleID, Title: def.ModuleTitle(moduleID)})
			i = len(modules) - 1
			byID[moduleID] = i
		}
		modules[i].Pages = append(modules[i].Pages, node)
	}
	return modules
}

// Update re-renders the whole tree.
func (t *TOCSync) Update() {
	if t.view == nil {
		return
	}
	t.view.Render(t.Tree())
}

// HandleSectionCompleted updates one section node and, when it was the
// page's last incomplete section, the page node. The page update waits
// while a table-of-contents jump is settling.
func (t *TOCSync) HandleSectionCompleted(key course.SectionKey) {
	if t.view == nil {
		return
	}
	idx := t.state.IndexOf(key.PageID)
	if idx < 0 {
		return
	}
	t.view.UpdateSectionStatus(idx, key.SectionID, true)
	if t.modes.IsActive(course.ModeTOCJump) {
		t.log.WithField("page", key.PageID).Debug("Deferring page completion while jump is pending")
		return
	}
	if t.allSectionsCompleted(idx, key.PageID) {
		t.view.UpdatePageStatus(idx, true)
	}
}

// HandlePageStatus mirrors a page flag change. Re-opening a page clears
// its section visuals too.
func (t *TOCSync) HandlePageStatus(change PageStatusChange) {
	if t.view == nil {
		return
	}
	t.view.UpdatePageStatus(change.Index, change.Completed)
	if change.Completed {
		return
	}
	for _, s := range t.sections[change.Index] {
		t.view.UpdateSectionStatus(change.Index, s.ID, false)
	}
}

func (t *TOCSync) Toggle() {
	if t.view == nil {
		return
	}
	if t.view.Visible() {
		t.view.Hide()
		return
	}
	t.Update()
	t.view.Show()
}

func (t *TOCSync) Hide() {
	if t.view != nil && t.view.Visible() {
		t.view.Hide()
	}
}
