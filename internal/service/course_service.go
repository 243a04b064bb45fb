package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stemsi/courseware-backend/internal/block"
	"github.com/stemsi/courseware-backend/internal/content"
	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/navigation"
	"github.com/stemsi/courseware-backend/internal/repository"
)

// CourseService serves the catalogue and the navigation workspace.
type CourseService struct {
	courses     repository.CourseStore
	pages       repository.PageStore
	blocks      repository.BlockStore
	submissions repository.SubmissionStore
	log         zerolog.Logger
}

// NewCourseService creates a new CourseService.
func NewCourseService(stores repository.Stores, log zerolog.Logger) *CourseService {
	return &CourseService{
		courses:     stores.Courses,
		pages:       stores.Pages,
		blocks:      stores.Blocks,
		submissions: stores.Submissions,
		log:         log.With().Str("component", "course_service").Logger(),
	}
}

// ListCourses returns every course.
func (s *CourseService) ListCourses(ctx context.Context) ([]model.Course, error) {
	return s.courses.ListCourses(ctx)
}

// ListSections returns the sections of a course.
func (s *CourseService) ListSections(ctx context.Context, courseID uuid.UUID) ([]model.Section, error) {
	return s.courses.ListSectionsByCourse(ctx, courseID)
}

// ListPages returns the ordered pages of a section.
func (s *CourseService) ListPages(ctx context.Context, sectionID uuid.UUID) ([]model.Page, error) {
	if _, err := s.courses.GetSection(ctx, sectionID); err != nil {
		return nil, mapNotFound(err)
	}
	return s.pages.ListBySection(ctx, sectionID)
}

// GetPage returns one page.
func (s *CourseService) GetPage(ctx context.Context, pageID uuid.UUID) (*model.Page, error) {
	p, err := s.pages.GetByID(ctx, pageID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return p, nil
}

// PageBlocks renders a page's blocks for the actor, attaching the actor's
// own submissions.
func (s *CourseService) PageBlocks(ctx context.Context, actor Actor, pageID uuid.UUID) ([]block.View, error) {
	if _, err := s.pages.GetByID(ctx, pageID); err != nil {
		return nil, mapNotFound(err)
	}
	blocks, err := s.blocks.ListByPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, actor, pageID, blocks)
}

func (s *CourseService) render(ctx context.Context, actor Actor, pageID uuid.UUID, blocks []model.Block) ([]block.View, error) {
	own := map[uuid.UUID]model.Submission{}
	if len(blocks) > 0 {
		subs, err := s.submissions.ListByPageForStudent(ctx, pageID, actor.ID)
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			own[sub.BlockID] = sub
		}
	}
	return block.RenderAll(blocks, actor.privileged(), own)
}

// LoadTree loads the whole course hierarchy, fetching each level
// concurrently.
func (s *CourseService) LoadTree(ctx context.Context) (*content.Model, error) {
	var (
		courses  []model.Course
		sections []model.Section
		pages    []model.Page
		blocks   []model.Block
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { courses, err = s.courses.ListCourses(gctx); return })
	g.Go(func() (err error) { sections, err = s.courses.ListSections(gctx); return })
	g.Go(func() (err error) { pages, err = s.pages.ListAll(gctx); return })
	g.Go(func() (err error) { blocks, err = s.blocks.ListAll(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return content.New(courses, sections, pages, blocks), nil
}

// NavQuery is a requested selection. Missing parents are resolved from
// the deepest id given.
type NavQuery struct {
	CourseID  *uuid.UUID
	SectionID *uuid.UUID
	PageID    *uuid.UUID
	Offset    int
}

// Workspace is the navigation view plus the rendered blocks of the
// current page.
type Workspace struct {
	navigation.View
	BlockViews []block.View `json:"blocks"`
}

// Workspace resolves q against the current tree. A zero query yields the
// initial selection.
func (s *CourseService) Workspace(ctx context.Context, actor Actor, q NavQuery) (*Workspace, error) {
	tree, err := s.LoadTree(ctx)
	if err != nil {
		return nil, err
	}

	state := Resolve(tree, q)
	view := navigation.Derive(tree, state)

	ws := &Workspace{View: view, BlockViews: []block.View{}}
	if view.Page != nil {
		if ws.BlockViews, err = s.render(ctx, actor, view.Page.ID, view.Blocks); err != nil {
			return nil, err
		}
	}
	return ws, nil
}

// Resolve applies a NavQuery to the initial selection of tree.
func Resolve(tree *content.Model, q NavQuery) navigation.State {
	if q.PageID != nil && q.SectionID == nil {
		if p, ok := tree.Page(*q.PageID); ok {
			q.SectionID = &p.SectionID
		}
	}
	if q.SectionID != nil && q.CourseID == nil {
		if sec, ok := tree.Section(*q.SectionID); ok {
			q.CourseID = &sec.CourseID
		}
	}

	state := navigation.Initial(tree)
	if q.CourseID != nil {
		state = navigation.SelectCourse(tree, state, *q.CourseID)
	}
	if q.SectionID != nil {
		state = navigation.SelectSection(tree, state, *q.SectionID)
	}
	if q.PageID != nil {
		state = navigation.SelectPage(tree, state, *q.PageID)
	}
	if q.Offset != 0 {
		state = navigation.Step(tree, state, q.Offset)
	}
	return state
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
