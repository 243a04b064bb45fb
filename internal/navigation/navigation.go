// Package navigation tracks the (course, section, page) selection of a
// viewer and derives what is visible from it.
package navigation

import (
	"github.com/google/uuid"

	"github.com/stemsi/courseware-backend/internal/model"
)

// Tree is the read side of the content hierarchy.
type Tree interface {
	Courses() []model.Course
	SectionsOf(courseID uuid.UUID) []model.Section
	PagesOf(sectionID uuid.UUID) []model.Page
	BlocksOf(pageID uuid.UUID) []model.Block
}

// State is the current selection. Unset fields mean nothing is selected
// at that level; an empty selection is a valid state.
type State struct {
	CourseID  uuid.NullUUID `json:"course_id"`
	SectionID uuid.NullUUID `json:"section_id"`
	PageID    uuid.NullUUID `json:"page_id"`
}

func some(id uuid.UUID) uuid.NullUUID { return uuid.NullUUID{UUID: id, Valid: true} }

// Initial selects the first course, its first section and that
// section's first page, stopping at the first empty level.
func Initial(t Tree) State {
	courses := t.Courses()
	if len(courses) == 0 {
		return State{}
	}
	return SelectCourse(t, State{}, courses[0].ID)
}

// SelectCourse switches to a course and resets section and page to its
// first section and first page. Unknown courses leave s unchanged.
func SelectCourse(t Tree, s State, courseID uuid.UUID) State {
	if !hasCourse(t, courseID) {
		return s
	}
	next := State{CourseID: some(courseID)}
	sections := t.SectionsOf(courseID)
	if len(sections) == 0 {
		return next
	}
	return SelectSection(t, next, sections[0].ID)
}

// SelectSection switches to a section of the current course and resets
// the page to its first page. Sections outside the course are ignored.
func SelectSection(t Tree, s State, sectionID uuid.UUID) State {
	if !s.CourseID.Valid || !hasSection(t, s.CourseID.UUID, sectionID) {
		return s
	}
	next := State{CourseID: s.CourseID, SectionID: some(sectionID)}
	if pages := t.PagesOf(sectionID); len(pages) > 0 {
		next.PageID = some(pages[0].ID)
	}
	return next
}

// SelectPage switches to a page of the current section.
func SelectPage(t Tree, s State, pageID uuid.UUID) State {
	if !s.SectionID.Valid || indexOf(t.PagesOf(s.SectionID.UUID), pageID) < 0 {
		return s
	}
	s.PageID = some(pageID)
	return s
}

// Step moves the page selection by offset within the current section.
// Moves that would leave the page list are ignored.
func Step(t Tree, s State, offset int) State {
	if !s.SectionID.Valid {
		return s
	}
	pages := t.PagesOf(s.SectionID.UUID)
	cur := 0
	if s.PageID.Valid {
		if cur = indexOf(pages, s.PageID.UUID); cur < 0 {
			cur = 0
		}
	}
	next := cur + offset
	if next < 0 || next >= len(pages) {
		return s
	}
	s.PageID = some(pages[next].ID)
	return s
}

// View is everything derived from a State.
type View struct {
	State     State           `json:"state"`
	Courses   []model.Course  `json:"courses"`
	Sections  []model.Section `json:"sections"`
	Pages     []model.Page    `json:"pages"`
	Page      *model.Page     `json:"page"`
	PageIndex int             `json:"page_index"`
	HasPrev   bool            `json:"has_prev"`
	HasNext   bool            `json:"has_next"`
	Blocks    []model.Block   `json:"-"`
}

// Derive resolves the visible sections, pages, current page and its
// blocks. A page selection that no longer exists in the section falls
// back to the section's first page.
func Derive(t Tree, s State) View {
	v := View{
		State:     s,
		Courses:   t.Courses(),
		Sections:  []model.Section{},
		Pages:     []model.Page{},
		Blocks:    []model.Block{},
		PageIndex: -1,
	}
	if s.CourseID.Valid {
		v.Sections = nonNil(t.SectionsOf(s.CourseID.UUID))
	}
	if !s.SectionID.Valid {
		return v
	}
	v.Pages = nonNil(t.PagesOf(s.SectionID.UUID))
	if len(v.Pages) == 0 {
		return v
	}

	idx := 0
	if s.PageID.Valid {
		if i := indexOf(v.Pages, s.PageID.UUID); i >= 0 {
			idx = i
		}
	}
	page := v.Pages[idx]
	v.Page = &page
	v.PageIndex = idx
	v.State.PageID = some(page.ID)
	v.HasPrev = idx > 0
	v.HasNext = idx < len(v.Pages)-1
	v.Blocks = nonNil(t.BlocksOf(page.ID))
	return v
}

func hasCourse(t Tree, id uuid.UUID) bool {
	for _, c := range t.Courses() {
		if c.ID == id {
			return true
		}
	}
	return false
}

func hasSection(t Tree, courseID, sectionID uuid.UUID) bool {
	for _, s := range t.SectionsOf(courseID) {
		if s.ID == sectionID {
			return true
		}
	}
	return false
}

func indexOf(pages []model.Page, id uuid.UUID) int {
	for i, p := range pages {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
