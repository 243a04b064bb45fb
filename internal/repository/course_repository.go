package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/courseware-backend/internal/model"
)

// CourseRepository handles course and section data access.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// ListCourses returns every course ordered by code, then id.
func (r *CourseRepository) ListCourses(ctx context.Context) ([]model.Course, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, title, created_at FROM courses ORDER BY code, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	courses := []model.Course{}
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.Code, &c.Title, &c.CreatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// ListSections returns every section in creation order.
func (r *CourseRepository) ListSections(ctx context.Context) ([]model.Section, error) {
	return r.sections(ctx, `SELECT id, course_id, title, created_at FROM course_sections ORDER BY created_at, id`)
}

// ListSectionsByCourse returns the sections of one course.
func (r *CourseRepository) ListSectionsByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Section, error) {
	return r.sections(ctx,
		`SELECT id, course_id, title, created_at FROM course_sections
		 WHERE course_id = $1 ORDER BY created_at, id`, courseID)
}

func (r *CourseRepository) sections(ctx context.Context, query string, args ...any) ([]model.Section, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sections := []model.Section{}
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.ID, &s.CourseID, &s.Title, &s.CreatedAt); err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// GetSection retrieves a single section.
func (r *CourseRepository) GetSection(ctx context.Context, id uuid.UUID) (*model.Section, error) {
	var s model.Section
	err := r.pool.QueryRow(ctx,
		`SELECT id, course_id, title, created_at FROM course_sections WHERE id = $1`, id,
	).Scan(&s.ID, &s.CourseID, &s.Title, &s.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// CreateCourse inserts a course.
func (r *CourseRepository) CreateCourse(ctx context.Context, c *model.Course) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO courses (code, title) VALUES ($1, $2) RETURNING id, created_at`, c.Code, c.Title,
	).Scan(&c.ID, &c.CreatedAt)
}

// CreateSection inserts a section under an existing course.
func (r *CourseRepository) CreateSection(ctx context.Context, s *model.Section) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO course_sections (course_id, title) VALUES ($1, $2) RETURNING id, created_at`,
		s.CourseID, s.Title,
	).Scan(&s.ID, &s.CreatedAt)
}
