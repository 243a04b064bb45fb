package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/courseware-backend/internal/model"
)

// SubmissionRepository handles block submission data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

const submissionColumns = `id, block_id, student_id, answer, video_url, score, created_at, updated_at`

// UpsertAnswer records an answer and its score for (block, student).
func (r *SubmissionRepository) UpsertAnswer(ctx context.Context, s *model.Submission) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO block_submissions (block_id, student_id, answer, score)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (block_id, student_id)
		 DO UPDATE SET answer = EXCLUDED.answer, score = EXCLUDED.score, updated_at = NOW()
		 RETURNING id, video_url, created_at, updated_at`,
		s.BlockID, s.StudentID, NullJSON(s.Answer), s.Score,
	).Scan(&s.ID, &s.VideoURL, &s.CreatedAt, &s.UpdatedAt)
}

// UpsertVideo records a video reference for (block, student) and clears
// any score.
func (r *SubmissionRepository) UpsertVideo(ctx context.Context, s *model.Submission) error {
	s.Score = nil
	return r.pool.QueryRow(ctx,
		`INSERT INTO block_submissions (block_id, student_id, video_url, score)
		 VALUES ($1, $2, $3, NULL)
		 ON CONFLICT (block_id, student_id)
		 DO UPDATE SET video_url = EXCLUDED.video_url, score = NULL, updated_at = NOW()
		 RETURNING id, answer, created_at, updated_at`,
		s.BlockID, s.StudentID, s.VideoURL,
	).Scan(&s.ID, &s.Answer, &s.CreatedAt, &s.UpdatedAt)
}

// Get retrieves the submission of one student for one block.
func (r *SubmissionRepository) Get(ctx context.Context, blockID, studentID uuid.UUID) (*model.Submission, error) {
	var s model.Submission
	err := r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM block_submissions WHERE block_id = $1 AND student_id = $2`,
		blockID, studentID,
	).Scan(&s.ID, &s.BlockID, &s.StudentID, &s.Answer, &s.VideoURL, &s.Score, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// ListByPageForStudent returns a student's submissions for every block of a page.
func (r *SubmissionRepository) ListByPageForStudent(ctx context.Context, pageID, studentID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.block_id, s.student_id, s.answer, s.video_url, s.score, s.created_at, s.updated_at
		 FROM block_submissions s
		 JOIN blocks b ON b.id = s.block_id
		 WHERE b.page_id = $1 AND s.student_id = $2`,
		pageID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.BlockID, &s.StudentID, &s.Answer, &s.VideoURL, &s.Score, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
