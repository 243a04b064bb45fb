package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/courseware-backend/internal/config"
	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/realtime"
)

type authoringFixture struct {
	m      *memStore
	locker *memLocker
	pub    *memPublisher
	queue  *memQueue
	svc    *AuthoringService
}

func newAuthoring() authoringFixture {
	f := authoringFixture{m: newMemStore(), locker: newMemLocker(), pub: &memPublisher{}, queue: &memQueue{}}
	f.svc = NewAuthoringService(f.m.stores(), f.locker, f.pub, f.queue, zerolog.Nop())
	return f
}

func titles(pages []model.Page) string {
	s := ""
	for _, p := range pages {
		s += p.Title
	}
	return s
}

func TestReorderPagesMovesAndRenumbers(t *testing.T) {
	f := newAuthoring()
	tr := seedTree(f.m, 4)

	pages, err := f.svc.ReorderPages(context.Background(), teacher, tr.section.ID, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if titles(pages) != "BCDA" {
		t.Fatalf("order = %s", titles(pages))
	}
	stored, _ := f.m.stores().Pages.ListBySection(context.Background(), tr.section.ID)
	if titles(stored) != "BCDA" {
		t.Fatalf("stored order = %s", titles(stored))
	}
	for i, p := range stored {
		if p.Position != i {
			t.Fatalf("position %d = %d", i, p.Position)
		}
	}

	ev, ok := f.pub.last()
	if !ok || ev.Type != realtime.EventReordered || ev.Scope != realtime.ScopeSection || len(ev.Order) != 4 {
		t.Fatalf("event = %+v", ev)
	}
	if len(f.locker.held) != 0 {
		t.Fatal("lock must be released")
	}
}

func TestReorderRequiresPrivilegedRole(t *testing.T) {
	f := newAuthoring()
	tr := seedTree(f.m, 2, model.Block{Type: model.BlockContent}, model.Block{Type: model.BlockContent})

	if _, err := f.svc.ReorderPages(context.Background(), student, tr.section.ID, 0, 1); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("pages err = %v", err)
	}
	if _, err := f.svc.ReorderBlocks(context.Background(), student, tr.pages[0].ID, 0, 1); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("blocks err = %v", err)
	}
	if titles(mustPages(t, f, tr.section.ID)) != "AB" {
		t.Fatal("unauthorized reorder changed order")
	}
}

func mustPages(t *testing.T, f authoringFixture, sectionID uuid.UUID) []model.Page {
	t.Helper()
	pages, err := f.m.stores().Pages.ListBySection(context.Background(), sectionID)
	if err != nil {
		t.Fatal(err)
	}
	return pages
}

func TestReorderInvalidIndex(t *testing.T) {
	f := newAuthoring()
	tr := seedTree(f.m, 2)
	if _, err := f.svc.ReorderPages(context.Background(), admin, tr.section.ID, 0, 2); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("err = %v", err)
	}
	if len(f.pub.events) != 0 {
		t.Fatal("no event for invalid reorder")
	}
}

func TestReorderSameIndexIsNoop(t *testing.T) {
	f := newAuthoring()
	tr := seedTree(f.m, 3)
	pages, err := f.svc.ReorderPages(context.Background(), teacher, tr.section.ID, 1, 1)
	if err != nil || titles(pages) != "ABC" {
		t.Fatalf("pages=%s err=%v", titles(pages), err)
	}
	if len(f.pub.events) != 0 {
		t.Fatal("no-op reorder must not broadcast")
	}
}

func TestReorderLockHeld(t *testing.T) {
	f := newAuthoring()
	tr := seedTree(f.m, 2)
	f.locker.held[config.CacheKey.SectionReorderLock(tr.section.ID)] = true

	if _, err := f.svc.ReorderPages(context.Background(), teacher, tr.section.ID, 0, 1); !errors.Is(err, ErrReorderInProgress) {
		t.Fatalf("err = %v", err)
	}
}

func TestReorderFailureLeavesOrderUntouched(t *testing.T) {
	f := newAuthoring()
	tr := seedTree(f.m, 1,
		model.Block{Type: model.BlockContent, Title: "A"},
		model.Block{Type: model.BlockContent, Title: "B"},
		model.Block{Type: model.BlockContent, Title: "C"},
	)
	f.m.failPositions = errBoom

	if _, err := f.svc.ReorderBlocks(context.Background(), teacher, tr.pages[0].ID, 0, 2); !errors.Is(err, ErrReorderFailed) {
		t.Fatalf("err = %v", err)
	}
	blocks, _ := f.m.stores().Blocks.ListByPage(context.Background(), tr.pages[0].ID)
	if blocks[0].Title != "A" || blocks[2].Title != "C" {
		t.Fatalf("order changed after failed reorder: %v", blocks)
	}
	if len(f.pub.events) != 0 {
		t.Fatal("failed reorder must not broadcast")
	}
	if len(f.locker.held) != 0 {
		t.Fatal("lock must be released on failure")
	}
}

func TestReorderBlocksPublishesOnPageChannel(t *testing.T) {
	f := newAuthoring()
	tr := seedTree(f.m, 1,
		model.Block{Type: model.BlockContent, Title: "A"},
		model.Block{Type: model.BlockMCQ, Title: "B"},
	)
	blocks, err := f.svc.ReorderBlocks(context.Background(), admin, tr.pages[0].ID, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if blocks[0].Title != "B" || blocks[0].Position != 0 || blocks[1].Position != 1 {
		t.Fatalf("blocks = %+v", blocks)
	}
	ev, _ := f.pub.last()
	if ev.Scope != realtime.ScopePage || ev.ParentID != tr.pages[0].ID || ev.Order[0] != blocks[0].ID {
		t.Fatalf("event = %+v", ev)
	}
}

func TestCreatePageAppends(t *testing.T) {
	f := newAuthoring()
	tr := seedTree(f.m, 2)
	page, err := f.svc.CreatePage(context.Background(), teacher, tr.section.ID, model.CreatePageRequest{Title: "C"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Position != 2 {
		t.Fatalf("position = %d", page.Position)
	}
	if _, err := f.svc.CreatePage(context.Background(), teacher, uuid.New(), model.CreatePageRequest{Title: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown section err = %v", err)
	}
	if _, err := f.svc.CreatePage(context.Background(), student, tr.section.ID, model.CreatePageRequest{Title: "x"}); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("student err = %v", err)
	}
}

func TestAddBlockUsesKindDefaults(t *testing.T) {
	f := newAuthoring()
	tr := seedTree(f.m, 1, model.Block{Type: model.BlockContent})

	b, err := f.svc.AddBlock(context.Background(), teacher, tr.pages[0].ID, model.BlockContent)
	if err != nil {
		t.Fatal(err)
	}
	if b.Position != 1 || b.Title != "New Block" || b.Content != "Edit me…" {
		t.Fatalf("content block = %+v", b)
	}
	b, err = f.svc.AddBlock(context.Background(), teacher, tr.pages[0].ID, model.BlockVideo)
	if err != nil {
		t.Fatal(err)
	}
	if b.Position != 2 || b.Title != "New video block" || b.Content != "" {
		t.Fatalf("video block = %+v", b)
	}
	ev, _ := f.pub.last()
	if ev.Type != realtime.EventBlockAdded || *ev.ItemID != b.ID {
		t.Fatalf("event = %+v", ev)
	}
	if _, err := f.svc.AddBlock(context.Background(), teacher, tr.pages[0].ID, "essay"); !errors.Is(err, ErrInvalidBlockData) {
		t.Fatalf("unknown kind err = %v", err)
	}
}

func TestUpdateBlockWritesAllFields(t *testing.T) {
	f := newAuthoring()
	tr := seedTree(f.m, 1, model.Block{Type: model.BlockMCQ})

	req := model.UpdateBlockRequest{
		Title:         "Pick one",
		Content:       "Choose wisely",
		Options:       json.RawMessage(`["A","B","C"]`),
		CorrectAnswer: json.RawMessage(`{"correct_index":1}`),
		MaxPoints:     4,
	}
	b, err := f.svc.UpdateBlock(context.Background(), teacher, tr.blocks[0].ID, req)
	if err != nil {
		t.Fatal(err)
	}
	stored := f.m.blocks[b.ID]
	if stored.Title != "Pick one" || stored.MaxPoints != 4 || string(stored.CorrectAnswer) != `{"correct_index":1}` {
		t.Fatalf("stored = %+v", stored)
	}

	req.CorrectAnswer = json.RawMessage(`{"answer":"yes"}`)
	if _, err := f.svc.UpdateBlock(context.Background(), teacher, tr.blocks[0].ID, req); !errors.Is(err, ErrInvalidBlockData) {
		t.Fatalf("mixed key err = %v", err)
	}
	req.CorrectAnswer = nil
	req.MaxPoints = -1
	if _, err := f.svc.UpdateBlock(context.Background(), teacher, tr.blocks[0].ID, req); !errors.Is(err, ErrInvalidBlockData) {
		t.Fatalf("negative points err = %v", err)
	}
	if _, err := f.svc.UpdateBlock(context.Background(), student, tr.blocks[0].ID, req); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("student err = %v", err)
	}
}

func TestQueueAndApplyEdit(t *testing.T) {
	f := newAuthoring()
	tr := seedTree(f.m, 1, model.Block{Type: model.BlockYesNo})
	req := model.UpdateBlockRequest{Title: "Is water wet?", CorrectAnswer: json.RawMessage(`{"answer":"yes"}`), MaxPoints: 1}

	if err := f.svc.QueueEdit(context.Background(), teacher, tr.blocks[0].ID, req); err != nil {
		t.Fatal(err)
	}
	if len(f.queue.jobs) != 1 {
		t.Fatalf("queued %d jobs", len(f.queue.jobs))
	}
	var job EditJob
	if err := json.Unmarshal(f.queue.jobs[0], &job); err != nil {
		t.Fatal(err)
	}

	permanent, err := f.svc.ApplyEdit(context.Background(), job)
	if err != nil || permanent {
		t.Fatalf("apply = %v, %v", permanent, err)
	}
	ev, _ := f.pub.last()
	if ev.Type != realtime.EventBlockSaved || ev.ParentID != tr.pages[0].ID {
		t.Fatalf("event = %+v", ev)
	}

	job.BlockID = uuid.New()
	if permanent, err := f.svc.ApplyEdit(context.Background(), job); !permanent || !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing block = %v, %v", permanent, err)
	}
	if err := f.svc.QueueEdit(context.Background(), student, tr.blocks[0].ID, req); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("student queue err = %v", err)
	}
}
