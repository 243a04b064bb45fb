package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/courseware-backend/internal/block"
	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/repository"
	"github.com/stemsi/courseware-backend/internal/storage"
)

// VideoBucket is the logical bucket recorded videos are stored in.
const VideoBucket = "videos"

// Accepted video MIME types.
var allowedVideoTypes = map[string]bool{
	"video/mp4":        true,
	"video/webm":       true,
	"video/quicktime":  true,
	"video/ogg":        true,
	"video/x-matroska": true,
}

// VideoUpload is a recorded or picked video file.
type VideoUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// SubmissionService records and grades student submissions.
type SubmissionService struct {
	blocks        repository.BlockStore
	submissions   repository.SubmissionStore
	blobs         storage.BlobStore
	maxVideoBytes int64
	now           func() time.Time
	log           zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(stores repository.Stores, blobs storage.BlobStore, maxVideoBytes int64, log zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		blocks:        stores.Blocks,
		submissions:   stores.Submissions,
		blobs:         blobs,
		maxVideoBytes: maxVideoBytes,
		now:           time.Now,
		log:           log.With().Str("component", "submission_service").Logger(),
	}
}

// Submit grades answer against the block's current key and upserts the
// actor's submission. The returned submission is what was persisted; on
// error nothing is reported as saved.
func (s *SubmissionService) Submit(ctx context.Context, actor Actor, blockID uuid.UUID, answer json.RawMessage) (*model.Submission, error) {
	b, err := s.blocks.GetByID(ctx, blockID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	score, err := block.Grade(*b, answer)
	if err != nil {
		if errors.Is(err, block.ErrInvalidAnswer) {
			return nil, ErrInvalidAnswer
		}
		return nil, err
	}

	sub := &model.Submission{
		BlockID:   blockID,
		StudentID: actor.ID,
		Answer:    answer,
		Score:     score,
	}
	if err := s.submissions.UpsertAnswer(ctx, sub); err != nil {
		return nil, fmt.Errorf("save submission: %w", err)
	}

	ev := s.log.Info().
		Str("block_id", blockID.String()).
		Str("student_id", actor.ID.String()).
		Str("type", string(b.Type))
	if score != nil {
		ev = ev.Float64("score", *score)
	}
	ev.Msg("Submission recorded")
	return sub, nil
}

// SubmitVideo stores a video under videos/<block>/<student>-<unixms>-<name>
// and records its public URL. A storage failure leaves no row behind.
func (s *SubmissionService) SubmitVideo(ctx context.Context, actor Actor, blockID uuid.UUID, up VideoUpload) (*model.Submission, error) {
	b, err := s.blocks.GetByID(ctx, blockID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if b.Type != model.BlockVideo {
		return nil, ErrWrongBlockType
	}

	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(up.ContentType, ";", 2)[0]))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentTypeFor(up.Filename)
	}
	if !allowedVideoTypes[contentType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, contentType)
	}
	if s.maxVideoBytes > 0 && up.Size > s.maxVideoBytes {
		return nil, fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, up.Size, s.maxVideoBytes)
	}

	key := VideoKey(blockID, actor.ID, s.now(), up.Filename)
	if err := s.blobs.Put(ctx, VideoBucket, key, up.Body, contentType); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Video upload failed")
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	url := s.blobs.PublicURL(VideoBucket, key)
	sub := &model.Submission{BlockID: blockID, StudentID: actor.ID, VideoURL: &url}
	if err := s.submissions.UpsertVideo(ctx, sub); err != nil {
		return nil, fmt.Errorf("save submission: %w", err)
	}

	s.log.Info().
		Str("block_id", blockID.String()).
		Str("student_id", actor.ID.String()).
		Int64("bytes", up.Size).
		Msg("Video submission recorded")
	return sub, nil
}

// Get returns the actor's own submission for a block.
func (s *SubmissionService) Get(ctx context.Context, actor Actor, blockID uuid.UUID) (*model.Submission, error) {
	sub, err := s.submissions.Get(ctx, blockID, actor.ID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return sub, nil
}

// VideoKey builds the object key of a video submission.
func VideoKey(blockID, studentID uuid.UUID, at time.Time, filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "video"
	}
	return fmt.Sprintf("%s/%s-%d-%s", blockID, studentID, at.UnixMilli(), name)
}
