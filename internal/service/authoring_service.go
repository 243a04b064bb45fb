package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/courseware-backend/internal/block"
	"github.com/stemsi/courseware-backend/internal/config"
	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/ordering"
	"github.com/stemsi/courseware-backend/internal/realtime"
	"github.com/stemsi/courseware-backend/internal/repository"
)

// ListLocker serialises writes to one sibling list across instances.
type ListLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// EventPublisher broadcasts content changes to live viewers.
type EventPublisher interface {
	Publish(ctx context.Context, ev realtime.Event) error
}

// JobQueue accepts serialised background jobs.
type JobQueue interface {
	Push(ctx context.Context, job []byte) error
}

// EditJob is a queued block edit.
type EditJob struct {
	BlockID uuid.UUID                `json:"block_id"`
	ActorID uuid.UUID                `json:"actor_id"`
	Role    model.Role               `json:"role"`
	Edit    model.UpdateBlockRequest `json:"edit"`
	Attempt int                      `json:"attempt"`
}

// AuthoringService creates, edits and reorders pages and blocks.
type AuthoringService struct {
	courses   repository.CourseStore
	pages     repository.PageStore
	blocks    repository.BlockStore
	locker    ListLocker
	publisher EventPublisher
	edits     JobQueue
	log       zerolog.Logger
}

// NewAuthoringService creates a new AuthoringService.
func NewAuthoringService(stores repository.Stores, locker ListLocker, publisher EventPublisher, edits JobQueue, log zerolog.Logger) *AuthoringService {
	return &AuthoringService{
		courses:   stores.Courses,
		pages:     stores.Pages,
		blocks:    stores.Blocks,
		locker:    locker,
		publisher: publisher,
		edits:     edits,
		log:       log.With().Str("component", "authoring_service").Logger(),
	}
}

// CreatePage appends a page at the end of a section.
func (s *AuthoringService) CreatePage(ctx context.Context, actor Actor, sectionID uuid.UUID, req model.CreatePageRequest) (*model.Page, error) {
	if !actor.privileged() {
		return nil, ErrNotAuthorized
	}
	if _, err := s.courses.GetSection(ctx, sectionID); err != nil {
		return nil, mapNotFound(err)
	}

	release, err := s.lock(ctx, config.CacheKey.SectionReorderLock(sectionID))
	if err != nil {
		return nil, err
	}
	defer release()

	page := &model.Page{SectionID: sectionID, Title: req.Title}
	if err := s.pages.Append(ctx, page); err != nil {
		return nil, fmt.Errorf("append page: %w", err)
	}
	s.publish(ctx, realtime.Event{
		Type: realtime.EventPageAdded, Scope: realtime.ScopeSection,
		ParentID: sectionID, ActorID: actor.ID, ItemID: &page.ID,
	})
	return page, nil
}

// AddBlock appends a block of the given type with its kind's defaults.
func (s *AuthoringService) AddBlock(ctx context.Context, actor Actor, pageID uuid.UUID, kind model.BlockType) (*model.Block, error) {
	if !actor.privileged() {
		return nil, ErrNotAuthorized
	}
	b, err := block.New(kind, 0)
	if err != nil {
		return nil, ErrInvalidBlockData
	}
	if _, err := s.pages.GetByID(ctx, pageID); err != nil {
		return nil, mapNotFound(err)
	}

	release, err := s.lock(ctx, config.CacheKey.PageReorderLock(pageID))
	if err != nil {
		return nil, err
	}
	defer release()

	b.PageID = pageID
	if err := s.blocks.Append(ctx, &b); err != nil {
		return nil, fmt.Errorf("append block: %w", err)
	}
	s.publishBlock(ctx, realtime.EventBlockAdded, actor.ID, &b, "")
	return &b, nil
}

// UpdateBlock writes every editable field of a block. Options and the
// grading key are validated against the block's type.
func (s *AuthoringService) UpdateBlock(ctx context.Context, actor Actor, blockID uuid.UUID, req model.UpdateBlockRequest) (*model.Block, error) {
	if !actor.privileged() {
		return nil, ErrNotAuthorized
	}
	b, err := s.blocks.GetByID(ctx, blockID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if err := block.CheckEdit(b.Type, req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlockData, err)
	}
	if req.MaxPoints < 0 {
		return nil, fmt.Errorf("%w: max_points must not be negative", ErrInvalidBlockData)
	}

	b.Title = req.Title
	b.Content = req.Content
	b.Options = nullable(req.Options)
	b.CorrectAnswer = nullable(req.CorrectAnswer)
	b.MaxPoints = req.MaxPoints
	if err := s.blocks.Update(ctx, b); err != nil {
		return nil, mapNotFound(err)
	}
	return b, nil
}

// QueueEdit validates the actor and hands the edit to the block edit
// worker. The outcome is broadcast on the page channel.
func (s *AuthoringService) QueueEdit(ctx context.Context, actor Actor, blockID uuid.UUID, req model.UpdateBlockRequest) error {
	if !actor.privileged() {
		return ErrNotAuthorized
	}
	job, err := json.Marshal(EditJob{BlockID: blockID, ActorID: actor.ID, Role: actor.Role, Edit: req})
	if err != nil {
		return err
	}
	return s.edits.Push(ctx, job)
}

// ApplyEdit runs a queued edit and broadcasts its outcome. Errors that a
// retry cannot fix are reported as permanent.
func (s *AuthoringService) ApplyEdit(ctx context.Context, job EditJob) (permanent bool, err error) {
	actor := Actor{ID: job.ActorID, Role: job.Role}
	b, err := s.UpdateBlock(ctx, actor, job.BlockID, job.Edit)
	if err != nil {
		permanent = errors.Is(err, ErrNotAuthorized) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidBlockData)
		return permanent, err
	}
	s.publishBlock(ctx, realtime.EventBlockSaved, actor.ID, b, "")
	return false, nil
}

// EditFailed broadcasts that a queued edit was abandoned.
func (s *AuthoringService) EditFailed(ctx context.Context, job EditJob, cause error) {
	b, err := s.blocks.GetByID(ctx, job.BlockID)
	if err != nil {
		s.log.Warn().Err(err).Str("block_id", job.BlockID.String()).Msg("Dropped edit for missing block")
		return
	}
	s.publishBlock(ctx, realtime.EventBlockSaveFailed, job.ActorID, b, cause.Error())
}

// ReorderPages moves the page at src to dst within a section.
func (s *AuthoringService) ReorderPages(ctx context.Context, actor Actor, sectionID uuid.UUID, src, dst int) ([]model.Page, error) {
	if !actor.privileged() {
		return nil, ErrNotAuthorized
	}
	if _, err := s.courses.GetSection(ctx, sectionID); err != nil {
		return nil, mapNotFound(err)
	}

	release, err := s.lock(ctx, config.CacheKey.SectionReorderLock(sectionID))
	if err != nil {
		return nil, err
	}
	defer release()

	pages, err := s.pages.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	ordering.Sort(pages)
	res, err := ordering.Move(pages, src, dst)
	if err != nil {
		return nil, ErrInvalidIndex
	}
	if res.Noop() {
		return res.Items, nil
	}
	if err := s.pages.UpdatePositions(ctx, sectionID, res.Changes); err != nil {
		s.log.Error().Err(err).Str("section_id", sectionID.String()).Msg("Page reorder rolled back")
		return nil, fmt.Errorf("%w: %v", ErrReorderFailed, err)
	}

	s.publish(ctx, realtime.Event{
		Type: realtime.EventReordered, Scope: realtime.ScopeSection,
		ParentID: sectionID, ActorID: actor.ID, Order: keys(res.Items),
	})
	return res.Items, nil
}

// ReorderBlocks moves the block at src to dst within a page.
func (s *AuthoringService) ReorderBlocks(ctx context.Context, actor Actor, pageID uuid.UUID, src, dst int) ([]model.Block, error) {
	if !actor.privileged() {
		return nil, ErrNotAuthorized
	}
	if _, err := s.pages.GetByID(ctx, pageID); err != nil {
		return nil, mapNotFound(err)
	}

	release, err := s.lock(ctx, config.CacheKey.PageReorderLock(pageID))
	if err != nil {
		return nil, err
	}
	defer release()

	blocks, err := s.blocks.ListByPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	ordering.Sort(blocks)
	res, err := ordering.Move(blocks, src, dst)
	if err != nil {
		return nil, ErrInvalidIndex
	}
	if res.Noop() {
		return res.Items, nil
	}
	if err := s.blocks.UpdatePositions(ctx, pageID, res.Changes); err != nil {
		s.log.Error().Err(err).Str("page_id", pageID.String()).Msg("Block reorder rolled back")
		return nil, fmt.Errorf("%w: %v", ErrReorderFailed, err)
	}

	s.publish(ctx, realtime.Event{
		Type: realtime.EventReordered, Scope: realtime.ScopePage,
		ParentID: pageID, ActorID: actor.ID, Order: keys(res.Items),
	})
	return res.Items, nil
}

func (s *AuthoringService) lock(ctx context.Context, key string) (func(), error) {
	release, err := s.locker.Acquire(ctx, key)
	if errors.Is(err, realtime.ErrLockHeld) {
		return nil, ErrReorderInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire list lock: %w", err)
	}
	return release, nil
}

// publish never fails the caller.
func (s *AuthoringService) publish(ctx context.Context, ev realtime.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", string(ev.Type)).Msg("Publish failed")
	}
}

func (s *AuthoringService) publishBlock(ctx context.Context, t realtime.EventType, actorID uuid.UUID, b *model.Block, cause string) {
	data, _ := json.Marshal(b)
	s.publish(ctx, realtime.Event{
		Type: t, Scope: realtime.ScopePage, ParentID: b.PageID,
		ActorID: actorID, ItemID: &b.ID, Data: data, Error: cause,
	})
}

func keys[T ordering.Positioned[T]](items []T) []uuid.UUID {
	out := make([]uuid.UUID, len(items))
	for i, it := range items {
		out[i] = it.Key()
	}
	return out
}

func nullable(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
