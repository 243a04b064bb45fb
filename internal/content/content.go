// Package content holds an in-memory snapshot of the course tree and
// answers the parent/child queries navigation and rendering need.
package content

import (
	"github.com/google/uuid"

	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/ordering"
)

// Model is a read snapshot of courses, sections, pages and blocks.
// Children are kept in load order and sorted on access where the
// hierarchy defines an order. A Model is not safe for concurrent mutation.
type Model struct {
	courses  []model.Course
	sections []model.Section
	pages    map[uuid.UUID]model.Page
	blocks   map[uuid.UUID]model.Block

	sectionIndex map[uuid.UUID]model.Section
	pagesBy      map[uuid.UUID][]uuid.UUID
	blocksBy     map[uuid.UUID][]uuid.UUID
}

// New builds a Model. Pages or blocks whose parent is missing are kept
// but never reachable through the parent queries.
func New(courses []model.Course, sections []model.Section, pages []model.Page, blocks []model.Block) *Model {
	m := &Model{
		courses:      append([]model.Course(nil), courses...),
		sections:     append([]model.Section(nil), sections...),
		pages:        make(map[uuid.UUID]model.Page, len(pages)),
		blocks:       make(map[uuid.UUID]model.Block, len(blocks)),
		sectionIndex: make(map[uuid.UUID]model.Section, len(sections)),
		pagesBy:      make(map[uuid.UUID][]uuid.UUID),
		blocksBy:     make(map[uuid.UUID][]uuid.UUID),
	}
	for _, s := range sections {
		m.sectionIndex[s.ID] = s
	}
	for _, p := range pages {
		m.PutPage(p)
	}
	for _, b := range blocks {
		m.PutBlock(b)
	}
	return m
}

// Courses returns every course in load order.
func (m *Model) Courses() []model.Course {
	return append([]model.Course(nil), m.courses...)
}

// Course looks up a course by id.
func (m *Model) Course(id uuid.UUID) (model.Course, bool) {
	for _, c := range m.courses {
		if c.ID == id {
			return c, true
		}
	}
	return model.Course{}, false
}

// Section looks up a section by id.
func (m *Model) Section(id uuid.UUID) (model.Section, bool) {
	s, ok := m.sectionIndex[id]
	return s, ok
}

// Page looks up a page by id.
func (m *Model) Page(id uuid.UUID) (model.Page, bool) {
	p, ok := m.pages[id]
	return p, ok
}

// Block looks up a block by id.
func (m *Model) Block(id uuid.UUID) (model.Block, bool) {
	b, ok := m.blocks[id]
	return b, ok
}

// SectionsOf returns the sections of a course in load order.
func (m *Model) SectionsOf(courseID uuid.UUID) []model.Section {
	var out []model.Section
	for _, s := range m.sections {
		if s.CourseID == courseID {
			out = append(out, s)
		}
	}
	return out
}

// PagesOf returns the pages of a section ordered by position.
func (m *Model) PagesOf(sectionID uuid.UUID) []model.Page {
	ids := m.pagesBy[sectionID]
	out := make([]model.Page, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.pages[id])
	}
	ordering.Sort(out)
	return out
}

// BlocksOf returns the blocks of a page ordered by position.
func (m *Model) BlocksOf(pageID uuid.UUID) []model.Block {
	ids := m.blocksBy[pageID]
	out := make([]model.Block, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.blocks[id])
	}
	ordering.Sort(out)
	return out
}

// PutPage inserts or replaces a page.
func (m *Model) PutPage(p model.Page) {
	if old, ok := m.pages[p.ID]; ok && old.SectionID != p.SectionID {
		m.pagesBy[old.SectionID] = without(m.pagesBy[old.SectionID], p.ID)
	}
	if _, ok := m.pages[p.ID]; !ok || m.pages[p.ID].SectionID != p.SectionID {
		m.pagesBy[p.SectionID] = append(m.pagesBy[p.SectionID], p.ID)
	}
	m.pages[p.ID] = p
}

// PutBlock inserts or replaces a block.
func (m *Model) PutBlock(b model.Block) {
	if old, ok := m.blocks[b.ID]; ok && old.PageID != b.PageID {
		m.blocksBy[old.PageID] = without(m.blocksBy[old.PageID], b.ID)
	}
	if _, ok := m.blocks[b.ID]; !ok || m.blocks[b.ID].PageID != b.PageID {
		m.blocksBy[b.PageID] = append(m.blocksBy[b.PageID], b.ID)
	}
	m.blocks[b.ID] = b
}

// ApplyPositions updates page and block positions from persisted writes.
// Unknown ids are ignored.
func (m *Model) ApplyPositions(writes []ordering.Write) {
	for _, w := range writes {
		if p, ok := m.pages[w.ID]; ok {
			m.pages[w.ID] = p.WithPosition(w.Position)
			continue
		}
		if b, ok := m.blocks[w.ID]; ok {
			m.blocks[w.ID] = b.WithPosition(w.Position)
		}
	}
}

func without(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
