package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/ordering"
)

// PageRepository handles page data access.
type PageRepository struct {
	pool *pgxpool.Pool
}

// NewPageRepository creates a new PageRepository.
func NewPageRepository(pool *pgxpool.Pool) *PageRepository {
	return &PageRepository{pool: pool}
}

const pageColumns = `id, section_id, title, position, created_at`

// ListAll returns every page ordered by position.
func (r *PageRepository) ListAll(ctx context.Context) ([]model.Page, error) {
	return r.list(ctx, `SELECT `+pageColumns+` FROM pages ORDER BY position, id`)
}

// ListBySection returns a section's pages ordered by position.
func (r *PageRepository) ListBySection(ctx context.Context, sectionID uuid.UUID) ([]model.Page, error) {
	return r.list(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE section_id = $1 ORDER BY position, id`, sectionID)
}

func (r *PageRepository) list(ctx context.Context, query string, args ...any) ([]model.Page, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pages := []model.Page{}
	for rows.Next() {
		var p model.Page
		if err := rows.Scan(&p.ID, &p.SectionID, &p.Title, &p.Position, &p.CreatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// GetByID retrieves a single page.
func (r *PageRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Page, error) {
	var p model.Page
	err := r.pool.QueryRow(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE id = $1`, id,
	).Scan(&p.ID, &p.SectionID, &p.Title, &p.Position, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// Append inserts a page after the current last page of its section.
func (r *PageRepository) Append(ctx context.Context, p *model.Page) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO pages (section_id, title, position)
		 SELECT $1, $2, COUNT(*) FROM pages WHERE section_id = $1
		 RETURNING id, position, created_at`,
		p.SectionID, p.Title,
	).Scan(&p.ID, &p.Position, &p.CreatedAt)
}

// UpdatePositions bulk-updates page positions inside one transaction.
// The position unique constraint is deferred, so intermediate duplicates
// within the statement are allowed.
func (r *PageRepository) UpdatePositions(ctx context.Context, sectionID uuid.UUID, writes []ordering.Write) error {
	if len(writes) == 0 {
		return nil
	}
	ids, positions := splitWrites(writes)
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE pages AS p SET position = t.position
			 FROM UNNEST($1::uuid[], $2::int[]) AS t(id, position)
			 WHERE p.id = t.id AND p.section_id = $3`,
			ids, positions, sectionID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != int64(len(writes)) {
			return ErrStalePositions
		}
		return nil
	})
}

func splitWrites(writes []ordering.Write) ([]uuid.UUID, []int32) {
	ids := make([]uuid.UUID, len(writes))
	positions := make([]int32, len(writes))
	for i, w := range writes {
		ids[i] = w.ID
		positions[i] = int32(w.Position)
	}
	return ids, positions
}
