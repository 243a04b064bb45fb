package sqlite

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/stemsi/courseware-backend/internal/model"
)

type SubmissionStore struct{ db *sql.DB }

const submissionColumns = `id, block_id, student_id, answer, video_url, score, created_at, updated_at`

func scanSubmission(row interface{ Scan(...any) error }) (model.Submission, error) {
	var s model.Submission
	var answer []byte
	var video sql.NullString
	var score sql.NullFloat64
	var created, updated int64
	if err := row.Scan(&s.ID, &s.BlockID, &s.StudentID, &answer, &video, &score, &created, &updated); err != nil {
		return s, err
	}
	s.Answer = rawJSON(answer)
	if video.Valid {
		s.VideoURL = &video.String
	}
	if score.Valid {
		s.Score = &score.Float64
	}
	s.CreatedAt = fromMillis(created)
	s.UpdatedAt = fromMillis(updated)
	return s, nil
}

func (s *SubmissionStore) UpsertAnswer(ctx context.Context, sub *model.Submission) error {
	ts := now()
	out, err := scanSubmission(s.db.QueryRowContext(ctx,
		`INSERT INTO block_submissions (id, block_id, student_id, answer, score, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (block_id, student_id)
		 DO UPDATE SET answer = excluded.answer, score = excluded.score, updated_at = excluded.updated_at
		 RETURNING `+submissionColumns,
		uuid.New(), sub.BlockID, sub.StudentID, jsonText(sub.Answer), sub.Score, ts, ts,
	))
	if err != nil {
		return err
	}
	*sub = out
	return nil
}

func (s *SubmissionStore) UpsertVideo(ctx context.Context, sub *model.Submission) error {
	ts := now()
	out, err := scanSubmission(s.db.QueryRowContext(ctx,
		`INSERT INTO block_submissions (id, block_id, student_id, video_url, score, created_at, updated_at)
		 VALUES (?, ?, ?, ?, NULL, ?, ?)
		 ON CONFLICT (block_id, student_id)
		 DO UPDATE SET video_url = excluded.video_url, score = NULL, updated_at = excluded.updated_at
		 RETURNING `+submissionColumns,
		uuid.New(), sub.BlockID, sub.StudentID, sub.VideoURL, ts, ts,
	))
	if err != nil {
		return err
	}
	*sub = out
	return nil
}

func (s *SubmissionStore) Get(ctx context.Context, blockID, studentID uuid.UUID) (*model.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM block_submissions WHERE block_id = ? AND student_id = ?`,
		blockID, studentID,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (s *SubmissionStore) ListByPageForStudent(ctx context.Context, pageID, studentID uuid.UUID) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.block_id, s.student_id, s.answer, s.video_url, s.score, s.created_at, s.updated_at
		 FROM block_submissions s JOIN blocks b ON b.id = s.block_id
		 WHERE b.page_id = ? AND s.student_id = ?`,
		pageID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}
