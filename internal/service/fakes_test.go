package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/ordering"
	"github.com/stemsi/courseware-backend/internal/realtime"
	"github.com/stemsi/courseware-backend/internal/repository"
)

// memStore is an in-memory implementation of every repository store.
type memStore struct {
	mu          sync.Mutex
	courses     []model.Course
	sections    []model.Section
	pages       map[uuid.UUID]model.Page
	blocks      map[uuid.UUID]model.Block
	submissions map[[2]uuid.UUID]model.Submission
	users       map[uuid.UUID]model.User

	failPositions error
	failUpsert    error
}

func newMemStore() *memStore {
	return &memStore{
		pages:       map[uuid.UUID]model.Page{},
		blocks:      map[uuid.UUID]model.Block{},
		submissions: map[[2]uuid.UUID]model.Submission{},
		users:       map[uuid.UUID]model.User{},
	}
}

func (m *memStore) stores() repository.Stores {
	return repository.Stores{
		Courses:     memCourses{m},
		Pages:       memPages{m},
		Blocks:      memBlocks{m},
		Submissions: memSubmissions{m},
		Users:       memUsers{m},
	}
}

type memCourses struct{ m *memStore }

func (s memCourses) ListCourses(context.Context) ([]model.Course, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return append([]model.Course{}, s.m.courses...), nil
}

func (s memCourses) ListSections(context.Context) ([]model.Section, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return append([]model.Section{}, s.m.sections...), nil
}

func (s memCourses) ListSectionsByCourse(_ context.Context, courseID uuid.UUID) ([]model.Section, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []model.Section{}
	for _, sec := range s.m.sections {
		if sec.CourseID == courseID {
			out = append(out, sec)
		}
	}
	return out, nil
}

func (s memCourses) GetSection(_ context.Context, id uuid.UUID) (*model.Section, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, sec := range s.m.sections {
		if sec.ID == id {
			return &sec, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s memCourses) CreateCourse(_ context.Context, c *model.Course) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c.ID = uuid.New()
	s.m.courses = append(s.m.courses, *c)
	return nil
}

func (s memCourses) CreateSection(_ context.Context, sec *model.Section) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	sec.ID = uuid.New()
	s.m.sections = append(s.m.sections, *sec)
	return nil
}

type memPages struct{ m *memStore }

func (s memPages) ListAll(context.Context) ([]model.Page, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []model.Page{}
	for _, p := range s.m.pages {
		out = append(out, p)
	}
	ordering.Sort(out)
	return out, nil
}

func (s memPages) ListBySection(_ context.Context, sectionID uuid.UUID) ([]model.Page, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []model.Page{}
	for _, p := range s.m.pages {
		if p.SectionID == sectionID {
			out = append(out, p)
		}
	}
	ordering.Sort(out)
	return out, nil
}

func (s memPages) GetByID(_ context.Context, id uuid.UUID) (*model.Page, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.pages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s memPages) Append(_ context.Context, p *model.Page) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	n := 0
	for _, x := range s.m.pages {
		if x.SectionID == p.SectionID {
			n++
		}
	}
	p.ID, p.Position, p.CreatedAt = uuid.New(), n, time.Now()
	s.m.pages[p.ID] = *p
	return nil
}

func (s memPages) UpdatePositions(_ context.Context, sectionID uuid.UUID, writes []ordering.Write) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.failPositions != nil {
		return s.m.failPositions
	}
	for _, w := range writes {
		if p, ok := s.m.pages[w.ID]; !ok || p.SectionID != sectionID {
			return repository.ErrStalePositions
		}
	}
	for _, w := range writes {
		s.m.pages[w.ID] = s.m.pages[w.ID].WithPosition(w.Position)
	}
	return nil
}

type memBlocks struct{ m *memStore }

func (s memBlocks) ListAll(context.Context) ([]model.Block, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []model.Block{}
	for _, b := range s.m.blocks {
		out = append(out, b)
	}
	ordering.Sort(out)
	return out, nil
}

func (s memBlocks) ListByPage(_ context.Context, pageID uuid.UUID) ([]model.Block, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []model.Block{}
	for _, b := range s.m.blocks {
		if b.PageID == pageID {
			out = append(out, b)
		}
	}
	ordering.Sort(out)
	return out, nil
}

func (s memBlocks) GetByID(_ context.Context, id uuid.UUID) (*model.Block, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	b, ok := s.m.blocks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (s memBlocks) Append(_ context.Context, b *model.Block) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	n := 0
	for _, x := range s.m.blocks {
		if x.PageID == b.PageID {
			n++
		}
	}
	b.ID, b.Position = uuid.New(), n
	s.m.blocks[b.ID] = *b
	return nil
}

func (s memBlocks) Update(_ context.Context, b *model.Block) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.blocks[b.ID]; !ok {
		return repository.ErrNotFound
	}
	b.UpdatedAt = time.Now()
	s.m.blocks[b.ID] = *b
	return nil
}

func (s memBlocks) UpdatePositions(_ context.Context, pageID uuid.UUID, writes []ordering.Write) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.failPositions != nil {
		return s.m.failPositions
	}
	for _, w := range writes {
		if b, ok := s.m.blocks[w.ID]; !ok || b.PageID != pageID {
			return repository.ErrStalePositions
		}
	}
	for _, w := range writes {
		s.m.blocks[w.ID] = s.m.blocks[w.ID].WithPosition(w.Position)
	}
	return nil
}

type memSubmissions struct{ m *memStore }

func (s memSubmissions) upsert(sub *model.Submission, apply func(existing *model.Submission)) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.failUpsert != nil {
		return s.m.failUpsert
	}
	key := [2]uuid.UUID{sub.BlockID, sub.StudentID}
	existing, ok := s.m.submissions[key]
	if !ok {
		existing = model.Submission{ID: uuid.New(), BlockID: sub.BlockID, StudentID: sub.StudentID, CreatedAt: time.Now()}
	}
	apply(&existing)
	existing.UpdatedAt = time.Now()
	s.m.submissions[key] = existing
	*sub = existing
	return nil
}

func (s memSubmissions) UpsertAnswer(_ context.Context, sub *model.Submission) error {
	answer, score := sub.Answer, sub.Score
	return s.upsert(sub, func(e *model.Submission) { e.Answer, e.Score = answer, score })
}

func (s memSubmissions) UpsertVideo(_ context.Context, sub *model.Submission) error {
	url := sub.VideoURL
	return s.upsert(sub, func(e *model.Submission) { e.VideoURL, e.Score = url, nil })
}

func (s memSubmissions) Get(_ context.Context, blockID, studentID uuid.UUID) (*model.Submission, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	sub, ok := s.m.submissions[[2]uuid.UUID{blockID, studentID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sub, nil
}

func (s memSubmissions) ListByPageForStudent(_ context.Context, pageID, studentID uuid.UUID) ([]model.Submission, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []model.Submission{}
	for _, sub := range s.m.submissions {
		if b, ok := s.m.blocks[sub.BlockID]; ok && b.PageID == pageID && sub.StudentID == studentID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockID.String() < out[j].BlockID.String() })
	return out, nil
}

type memUsers struct{ m *memStore }

func (s memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s memUsers) Create(_ context.Context, u *model.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, x := range s.m.users {
		if x.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	u.ID = uuid.New()
	s.m.users[u.ID] = *u
	return nil
}

func (s memUsers) UpdateRole(_ context.Context, email string, role model.Role) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for id, u := range s.m.users {
		if u.Email == email {
			u.Role = role
			s.m.users[id] = u
			return nil
		}
	}
	return repository.ErrNotFound
}

// memLocker grants one holder per key.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func newMemLocker() *memLocker { return &memLocker{held: map[string]bool{}} }

func (l *memLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if l.held[key] {
		return nil, realtime.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

type memPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *memPublisher) Publish(_ context.Context, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *memPublisher) last() (realtime.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return realtime.Event{}, false
	}
	return p.events[len(p.events)-1], true
}

type memQueue struct {
	mu   sync.Mutex
	jobs [][]byte
}

func (q *memQueue) Push(_ context.Context, job []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

type memBlobs struct {
	objects map[string][]byte
	err     error
}

func (b *memBlobs) Put(_ context.Context, bucket, key string, r io.Reader, _ string) error {
	if b.err != nil {
		return b.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if b.objects == nil {
		b.objects = map[string][]byte{}
	}
	b.objects[bucket+"/"+key] = data
	return nil
}

func (b *memBlobs) PublicURL(bucket, key string) string {
	return "https://cdn.test/" + bucket + "/" + key
}

var errBoom = errors.New("boom")

// tree seeds one course with one section holding pages, and a page with blocks.
type tree struct {
	course  model.Course
	section model.Section
	pages   []model.Page
	blocks  []model.Block
}

func seedTree(m *memStore, pageCount int, blocks ...model.Block) tree {
	var t tree
	t.course = model.Course{ID: uuid.New(), Title: "Chemistry"}
	t.section = model.Section{ID: uuid.New(), CourseID: t.course.ID, Title: "Atoms"}
	m.courses = append(m.courses, t.course)
	m.sections = append(m.sections, t.section)
	for i := 0; i < pageCount; i++ {
		p := model.Page{ID: uuid.New(), SectionID: t.section.ID, Title: string(rune('A' + i)), Position: i}
		m.pages[p.ID] = p
		t.pages = append(t.pages, p)
	}
	for i, b := range blocks {
		b.ID = uuid.New()
		b.PageID = t.pages[0].ID
		b.Position = i
		m.blocks[b.ID] = b
		t.blocks = append(t.blocks, b)
	}
	return t
}

var (
	teacher = Actor{ID: uuid.New(), Role: model.RoleTeacher}
	admin   = Actor{ID: uuid.New(), Role: model.RoleAdmin}
	student = Actor{ID: uuid.New(), Role: model.RoleStudent}
)
