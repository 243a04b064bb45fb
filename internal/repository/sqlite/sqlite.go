// Package sqlite implements the repository stores on database/sql with the
// pure-Go SQLite driver. Ids are stored as text and timestamps as unix
// milliseconds.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/ordering"
	"github.com/stemsi/courseware-backend/internal/repository"
)

// NewStores wires every SQLite store over one handle. The schema must
// already exist; see database.OpenSQLite.
func NewStores(db *sql.DB) repository.Stores {
	return repository.Stores{
		Courses:     &CourseStore{db: db},
		Pages:       &PageStore{db: db},
		Blocks:      &BlockStore{db: db},
		Submissions: &SubmissionStore{db: db},
		Users:       &UserStore{db: db},
	}
}

func now() int64 { return time.Now().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

func jsonText(raw json.RawMessage) any {
	if v := repository.NullJSON(raw); v != nil {
		return string(raw)
	}
	return nil
}

func rawJSON(b []byte) json.RawMessage {
	if b == nil {
		return nil
	}
	return json.RawMessage(b)
}

// updatePositions applies writes to table rows owned by parentID in one
// transaction.
func updatePositions(ctx context.Context, db *sql.DB, table, parentCol string, parentID uuid.UUID, writes []ordering.Write) error {
	if len(writes) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE `+table+` SET position = ? WHERE id = ? AND `+parentCol+` = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, w := range writes {
		res, err := stmt.ExecContext(ctx, w.Position, w.ID, parentID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return repository.ErrStalePositions
		}
	}
	return tx.Commit()
}

type CourseStore struct{ db *sql.DB }

func (s *CourseStore) ListCourses(ctx context.Context) ([]model.Course, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, title, created_at FROM courses ORDER BY code, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Course{}
	for rows.Next() {
		var c model.Course
		var created int64
		if err := rows.Scan(&c.ID, &c.Code, &c.Title, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = fromMillis(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *CourseStore) ListSections(ctx context.Context) ([]model.Section, error) {
	return s.sections(ctx, `SELECT id, course_id, title, created_at FROM course_sections ORDER BY created_at, id`)
}

func (s *CourseStore) ListSectionsByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Section, error) {
	return s.sections(ctx,
		`SELECT id, course_id, title, created_at FROM course_sections WHERE course_id = ? ORDER BY created_at, id`, courseID)
}

func (s *CourseStore) sections(ctx context.Context, query string, args ...any) ([]model.Section, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Section{}
	for rows.Next() {
		var sec model.Section
		var created int64
		if err := rows.Scan(&sec.ID, &sec.CourseID, &sec.Title, &created); err != nil {
			return nil, err
		}
		sec.CreatedAt = fromMillis(created)
		out = append(out, sec)
	}
	return out, rows.Err()
}

func (s *CourseStore) GetSection(ctx context.Context, id uuid.UUID) (*model.Section, error) {
	var sec model.Section
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, title, created_at FROM course_sections WHERE id = ?`, id,
	).Scan(&sec.ID, &sec.CourseID, &sec.Title, &created)
	if err != nil {
		return nil, notFound(err)
	}
	sec.CreatedAt = fromMillis(created)
	return &sec, nil
}

func (s *CourseStore) CreateCourse(ctx context.Context, c *model.Course) error {
	c.ID = uuid.New()
	created := now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (id, code, title, created_at) VALUES (?, ?, ?, ?)`, c.ID, c.Code, c.Title, created); err != nil {
		return err
	}
	c.CreatedAt = fromMillis(created)
	return nil
}

func (s *CourseStore) CreateSection(ctx context.Context, sec *model.Section) error {
	sec.ID = uuid.New()
	created := now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO course_sections (id, course_id, title, created_at) VALUES (?, ?, ?, ?)`,
		sec.ID, sec.CourseID, sec.Title, created); err != nil {
		return err
	}
	sec.CreatedAt = fromMillis(created)
	return nil
}
