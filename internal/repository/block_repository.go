package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/ordering"
)

// BlockRepository handles block data access.
type BlockRepository struct {
	pool *pgxpool.Pool
}

// NewBlockRepository creates a new BlockRepository.
func NewBlockRepository(pool *pgxpool.Pool) *BlockRepository {
	return &BlockRepository{pool: pool}
}

const blockColumns = `id, page_id, type, title, content, options, correct_answer, max_points, position, created_at, updated_at`

func scanBlock(row pgx.Row, b *model.Block) error {
	return row.Scan(&b.ID, &b.PageID, &b.Type, &b.Title, &b.Content, &b.Options,
		&b.CorrectAnswer, &b.MaxPoints, &b.Position, &b.CreatedAt, &b.UpdatedAt)
}

// ListAll returns every block ordered by position.
func (r *BlockRepository) ListAll(ctx context.Context) ([]model.Block, error) {
	return r.list(ctx, `SELECT `+blockColumns+` FROM blocks ORDER BY position, id`)
}

// ListByPage returns a page's blocks ordered by position.
func (r *BlockRepository) ListByPage(ctx context.Context, pageID uuid.UUID) ([]model.Block, error) {
	return r.list(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE page_id = $1 ORDER BY position, id`, pageID)
}

func (r *BlockRepository) list(ctx context.Context, query string, args ...any) ([]model.Block, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blocks := []model.Block{}
	for rows.Next() {
		var b model.Block
		if err := scanBlock(rows, &b); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// GetByID retrieves a single block.
func (r *BlockRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Block, error) {
	var b model.Block
	if err := scanBlock(r.pool.QueryRow(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id = $1`, id), &b); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// Append inserts a block after the current last block of its page.
func (r *BlockRepository) Append(ctx context.Context, b *model.Block) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO blocks (page_id, type, title, content, options, correct_answer, max_points, position)
		 SELECT $1, $2, $3, $4, $5, $6, $7, COUNT(*) FROM blocks WHERE page_id = $1
		 RETURNING id, position, created_at, updated_at`,
		b.PageID, b.Type, b.Title, b.Content, NullJSON(b.Options), NullJSON(b.CorrectAnswer), b.MaxPoints,
	).Scan(&b.ID, &b.Position, &b.CreatedAt, &b.UpdatedAt)
}

// Update writes title, content, options, correct_answer and max_points.
func (r *BlockRepository) Update(ctx context.Context, b *model.Block) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE blocks
		 SET title = $2, content = $3, options = $4, correct_answer = $5, max_points = $6, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		b.ID, b.Title, b.Content, NullJSON(b.Options), NullJSON(b.CorrectAnswer), b.MaxPoints,
	).Scan(&b.UpdatedAt)
	return notFound(err)
}

// UpdatePositions bulk-updates block positions inside one transaction.
func (r *BlockRepository) UpdatePositions(ctx context.Context, pageID uuid.UUID, writes []ordering.Write) error {
	if len(writes) == 0 {
		return nil
	}
	ids, positions := splitWrites(writes)
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE blocks AS b SET position = t.position
			 FROM UNNEST($1::uuid[], $2::int[]) AS t(id, position)
			 WHERE b.id = t.id AND b.page_id = $3`,
			ids, positions, pageID,
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
