package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/ordering"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrStalePositions is returned when a position write targets a row that
	// is gone or no longer belongs to the list being reordered.
	ErrStalePositions = errors.New("sibling list changed during reorder")
	// ErrDuplicateEmail is returned when a user with the same email exists.
	ErrDuplicateEmail = errors.New("user with this email already exists")
)

// CourseStore reads the course and section catalogue.
type CourseStore interface {
	ListCourses(ctx context.Context) ([]model.Course, error)
	ListSections(ctx context.Context) ([]model.Section, error)
	ListSectionsByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Section, error)
	GetSection(ctx context.Context, id uuid.UUID) (*model.Section, error)
	CreateCourse(ctx context.Context, c *model.Course) error
	CreateSection(ctx context.Context, s *model.Section) error
}

// PageStore persists pages and their order within a section.
type PageStore interface {
	ListAll(ctx context.Context) ([]model.Page, error)
	ListBySection(ctx context.Context, sectionID uuid.UUID) ([]model.Page, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Page, error)
	// Append inserts p at the end of its section and fills ID, Position
	// and CreatedAt.
	Append(ctx context.Context, p *model.Page) error
	// UpdatePositions applies all writes in one transaction or none.
	UpdatePositions(ctx context.Context, sectionID uuid.UUID, writes []ordering.Write) error
}

// BlockStore persists blocks and their order within a page.
type BlockStore interface {
	ListAll(ctx context.Context) ([]model.Block, error)
	ListByPage(ctx context.Context, pageID uuid.UUID) ([]model.Block, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Block, error)
	Append(ctx context.Context, b *model.Block) error
	// Update writes every editable field of b and refreshes UpdatedAt.
	Update(ctx context.Context, b *model.Block) error
	UpdatePositions(ctx context.Context, pageID uuid.UUID, writes []ordering.Write) error
}

// SubmissionStore persists the single current submission per
// (block, student).
type SubmissionStore interface {
	// UpsertAnswer writes answer and score, keeping any stored video.
	UpsertAnswer(ctx context.Context, s *model.Submission) error
	// UpsertVideo writes the video reference and clears the score.
	UpsertVideo(ctx context.Context, s *model.Submission) error
	Get(ctx context.Context, blockID, studentID uuid.UUID) (*model.Submission, error)
	ListByPageForStudent(ctx context.Context, pageID, studentID uuid.UUID) ([]model.Submission, error)
}

// UserStore persists profiles and credentials.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
	UpdateRole(ctx context.Context, email string, role model.Role) error
}

// Stores bundles one implementation of every store.
type Stores struct {
	Courses     CourseStore
	Pages       PageStore
	Blocks      BlockStore
	Submissions SubmissionStore
	Users       UserStore
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// NullJSON maps an empty or literal-null document to SQL NULL.
func NullJSON(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return []byte(raw)
}
