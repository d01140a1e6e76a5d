package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PGStore keeps task records in a Postgres table shaped like the CRM task
// object. It stands in for the CRM in self-hosted deployments.
type PGStore struct {
	db          *sql.DB
	upsertByKey bool
}

func NewPGStore(ctx context.Context, dsn string, upsertByKey bool) (*PGStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &PGStore{db: db, upsertByKey: upsertByKey}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) Close() error {
	return s.db.Close()
}

func (s *PGStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
create table if not exists crm_tasks (
  id text primary key,
  entity_id text not null,
  entity_name text not null default '',
  subject text not null,
  description text not null default '',
  status text not null,
  priority text not null default '',
  due_date date,
  idempotency_key text,
  created_at timestamptz not null
);
create index if not exists crm_tasks_entity_idx on crm_tasks (entity_id, created_at);
create index if not exists crm_tasks_created_idx on crm_tasks (created_at desc);
`)
	if err != nil {
		return err
	}
	if !s.upsertByKey {
		return nil
	}
	_, err = s.db.ExecContext(ctx, `create unique index if not exists crm_tasks_idempotency_key_uidx
on crm_tasks (idempotency_key) where idempotency_key is not null`)
	return err
}

const taskColumns = `id, entity_id, entity_name, subject, description, status, priority, due_date, idempotency_key, created_at`

// QueryByEntity filters on a literal subject prefix; % and _ carry no
// pattern meaning.
func (s *PGStore) QueryByEntity(ctx context.Context, entityID, subjectPrefix string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `select `+taskColumns+` from crm_tasks
where entity_id = $1 and ($2::text = '' or left(subject, length($2::text)) = $2::text)
order by created_at asc, id asc`, entityID, subjectPrefix)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (s *PGStore) QueryRecent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `select `+taskColumns+` from crm_tasks
order by created_at desc, id desc limit $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (s *PGStore) CreateOne(ctx context.Context, r Record) (Record, error) {
	return s.insert(ctx, r)
}

func (s *PGStore) CreateBatch(ctx context.Context, records []Record) []BatchItem {
	out := make([]BatchItem, 0, len(records))
	for _, r := range records {
		created, err := s.insert(ctx, r)
		out = append(out, BatchItem{Record: created, Err: err})
	}
	return out
}

func (s *PGStore) insert(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = newID("task")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	var key any
	if r.IdempotencyKey != "" {
		key = r.IdempotencyKey
	}
	var due any
	if r.DueDate != nil {
		due = r.DueDate.Format(time.DateOnly)
	}
	query := `insert into crm_tasks (` + taskColumns + `) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	if s.upsertByKey {
		query += ` on conflict (idempotency_key) where idempotency_key is not null do nothing`
	}
	res, err := s.db.ExecContext(ctx, query,
		r.ID, r.EntityID, r.EntityName, r.Subject, r.Description, r.Status, r.Priority, due, key, r.CreatedAt)
	if err != nil {
		return r, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return r, ErrDuplicate
	}
	return r, nil
}

func (s *PGStore) RewriteDescription(ctx context.Context, recordID, description string) error {
	res, err := s.db.ExecContext(ctx, `update crm_tasks set description = $2 where id = $1`, recordID, description)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus updates a task's status, as a user completing it in the CRM would.
func (s *PGStore) SetStatus(ctx context.Context, recordID, status string) error {
	res, err := s.db.ExecContext(ctx, `update crm_tasks set status = $2 where id = $1`, recordID, status)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var (
			r   Record
			due sql.NullTime
			key sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.EntityID, &r.EntityName, &r.Subject, &r.Description,
			&r.Status, &r.Priority, &due, &key, &r.CreatedAt); err != nil {
			return nil, err
		}
		if due.Valid {
			d := due.Time
			r.DueDate = &d
		}
		r.IdempotencyKey = key.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}
