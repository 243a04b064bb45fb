package sqlite

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/ordering"
)

type PageStore struct{ db *sql.DB }

const pageColumns = `id, section_id, title, position, created_at`

func scanPage(row interface{ Scan(...any) error }) (model.Page, error) {
	var p model.Page
	var created int64
	if err := row.Scan(&p.ID, &p.SectionID, &p.Title, &p.Position, &created); err != nil {
		return p, err
	}
	p.CreatedAt = fromMillis(created)
	return p, nil
}

func (s *PageStore) ListAll(ctx context.Context) ([]model.Page, error) {
	return s.list(ctx, `SELECT `+pageColumns+` FROM pages ORDER BY position, id`)
}

func (s *PageStore) ListBySection(ctx context.Context, sectionID uuid.UUID) ([]model.Page, error) {
	return s.list(ctx, `SELECT `+pageColumns+` FROM pages WHERE section_id = ? ORDER BY position, id`, sectionID)
}

func (s *PageStore) list(ctx context.Context, query string, args ...any) ([]model.Page, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Page{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PageStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Page, error) {
	p, err := scanPage(s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *PageStore) Append(ctx context.Context, p *model.Page) error {
	p.ID = uuid.New()
	created := now()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO pages (id, section_id, title, position, created_at)
		 SELECT ?, ?, ?, COUNT(*), ? FROM pages WHERE section_id = ?
		 RETURNING position`,
		p.ID, p.SectionID, p.Title, created, p.SectionID,
	).Scan(&p.Position)
	if err != nil {
		return err
	}
	p.CreatedAt = fromMillis(created)
	return nil
}

func (s *PageStore) UpdatePositions(ctx context.Context, sectionID uuid.UUID, writes []ordering.Write) error {
	return updatePositions(ctx, s.db, "pages", "section_id", sectionID, writes)
}

type BlockStore struct{ db *sql.DB }

const blockColumns = `id, page_id, type, title, content, options, correct_answer, max_points, position, created_at, updated_at`

func scanBlock(row interface{ Scan(...any) error }) (model.Block, error) {
	var b model.Block
	var options, key []byte
	var created, updated int64
	if err := row.Scan(&b.ID, &b.PageID, &b.Type, &b.Title, &b.Content, &options, &key,
		&b.MaxPoints, &b.Position, &created, &updated); err != nil {
		return b, err
	}
	b.Options = rawJSON(options)
	b.CorrectAnswer = rawJSON(key)
	b.CreatedAt = fromMillis(created)
	b.UpdatedAt = fromMillis(updated)
	return b, nil
}

func (s *BlockStore) ListAll(ctx context.Context) ([]model.Block, error) {
	return s.list(ctx, `SELECT `+blockColumns+` FROM blocks ORDER BY position, id`)
}

func (s *BlockStore) ListByPage(ctx context.Context, pageID uuid.UUID) ([]model.Block, error) {
	return s.list(ctx, `SELECT `+blockColumns+` FROM blocks WHERE page_id = ? ORDER BY position, id`, pageID)
}

func (s *BlockStore) list(ctx context.Context, query string, args ...any) ([]model.Block, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Block{}
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *BlockStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Block, error) {
	b, err := scanBlock(s.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (s *BlockStore) Append(ctx context.Context, b *model.Block) error {
	b.ID = uuid.New()
	ts := now()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO blocks (id, page_id, type, title, content, options, correct_answer, max_points, position, created_at, updated_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, COUNT(*), ?, ? FROM blocks WHERE page_id = ?
		 RETURNING position`,
		b.ID, b.PageID, string(b.Type), b.Title, b.Content, jsonText(b.Options), jsonText(b.CorrectAnswer),
		b.MaxPoints, ts, ts, b.PageID,
	).Scan(&b.Position)
	if err != nil {
		return err
	}
	b.CreatedAt = fromMillis(ts)
	b.UpdatedAt = b.CreatedAt
	return nil
}

func (s *BlockStore) Update(ctx context.Context, b *model.Block) error {
	ts := now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE blocks SET title = ?, content = ?, options = ?, correct_answer = ?, max_points = ?, updated_at = ?
		 WHERE id = ?`,
		b.Title, b.Content, jsonText(b.Options), jsonText(b.CorrectAnswer), b.MaxPoints, ts, b.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(sql.ErrNoRows)
	}
	b.UpdatedAt = fromMillis(ts)
	return nil
}

func (s *BlockStore) UpdatePositions(ctx context.Context, pageID uuid.UUID, writes []ordering.Write) error {
	return updatePositions(ctx, s.db, "blocks", "page_id", pageID, writes)
}
