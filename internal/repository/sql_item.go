package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/rankcast/internal/db"
	"github.com/alexanderramin/rankcast/internal/domain"
)

// SQLItemRepo implements ItemRepo for SQLite and Postgres.
type SQLItemRepo struct {
	db      db.DBTX
	dialect db.Dialect
	now     func() time.Time
}

func NewSQLItemRepo(conn db.DBTX, dialect db.Dialect) *SQLItemRepo {
	return &SQLItemRepo{db: conn, dialect: dialect, now: time.Now}
}

const itemColumns = `id, lane, state, title, artist, creator, creator_id, ready_time,
	last_ready_anchor, early_time, promote_time, probability, has_open_issue`

func (r *SQLItemRepo) Upsert(ctx context.Context, items ...*domain.Item) error {
	query := r.dialect.Rebind(`INSERT INTO items (` + itemColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			lane = excluded.lane,
			state = excluded.state,
			title = excluded.title,
			artist = excluded.artist,
			creator = excluded.creator,
			creator_id = excluded.creator_id,
			ready_time = excluded.ready_time,
			last_ready_anchor = excluded.last_ready_anchor,
			early_time = excluded.early_time,
			promote_time = excluded.promote_time,
			probability = excluded.probability,
			has_open_issue = excluded.has_open_issue,
			updated_at = excluded.updated_at`)
	now := r.now().Unix()
	for _, it := range items {
		_, err := r.db.ExecContext(ctx, query,
			it.ID,
			int(it.Lane),
			string(it.State),
			it.Title,
			it.Artist,
			it.Creator,
			it.CreatorID,
			unixOrNull(it.ReadyTime),
			unixOrNull(it.LastReadyAnchor),
			nullableUnix(it.EarlyTime),
			nullableUnix(it.PromoteTime),
			nullableFloat(it.Probability),
			boolToInt(it.HasOpenIssue),
			now,
		)
		if err != nil {
			return fmt.Errorf("upserting item %d: %w", it.ID, err)
		}
	}
	return nil
}

func (r *SQLItemRepo) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := r.dialect.Rebind(`DELETE FROM items WHERE id IN (` + placeholders + `)`)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting items: %w", err)
	}
	return nil
}

func (r *SQLItemRepo) Get(ctx context.Context, id int64) (*domain.Item, error) {
	query := r.dialect.Rebind(`SELECT ` + itemColumns + ` FROM items WHERE id = ?`)
	it, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return it, err
}

func (r *SQLItemRepo) ListPending(ctx context.Context) ([]*domain.Item, error) {
	query := r.dialect.Rebind(`SELECT ` + itemColumns + ` FROM items
		WHERE state = ? ORDER BY lane, ready_time, id`)
	rows, err := r.db.QueryContext(ctx, query, string(domain.ItemPending))
	if err != nil {
		return nil, fmt.Errorf("listing pending items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *SQLItemRepo) ListPromotedSince(ctx context.Context, since time.Time) ([]*domain.Item, error) {
	query := r.dialect.Rebind(`SELECT ` + itemColumns + ` FROM items
		WHERE state = ? AND promote_time >= ? ORDER BY promote_time, id`)
	rows, err := r.db.QueryContext(ctx, query, string(domain.ItemPromoted), since.Unix())
	if err != nil {
		return nil, fmt.Errorf("listing promoted items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *SQLItemRepo) DeletePromotedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := r.dialect.Rebind(`DELETE FROM items WHERE state = ? AND promote_time < ?`)
	res, err := r.db.ExecContext(ctx, query, string(domain.ItemPromoted), cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning promoted items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned items: %w", err)
	}
	return n, nil
}

func (r *SQLItemRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("deleting all items: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var (
		it                        domain.Item
		lane, openIssue           int
		state                     string
		ready, anchor, early, pro sql.NullInt64
		prob                      sql.NullFloat64
	)
	err := row.Scan(&it.ID, &lane, &state, &it.Title, &it.Artist, &it.Creator, &it.CreatorID,
		&ready, &anchor, &early, &pro, &prob, &openIssue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning item: %w", err)
	}
	it.Lane = domain.Lane(lane)
	it.State = domain.ItemState(state)
	it.ReadyTime = parseUnix(ready)
	it.LastReadyAnchor = parseUnix(anchor)
	it.EarlyTime = parseNullableUnix(early)
	it.PromoteTime = parseNullableUnix(pro)
	it.Probability = parseNullableFloat(prob)
	it.HasOpenIssue = intToBool(openIssue)
	return &it, nil
}

func scanItems(rows *sql.Rows) ([]*domain.Item, error) {
	var out []*domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return out, nil
}
