package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dropkeep/internal/repository"
)

// NewRecordRepository 返回基于 *sql.DB 的 Postgres 实现。
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// RecordRepository 实现 repository.RecordRepository。
type RecordRepository struct {
	db *sql.DB
}

var recordSelectColumns = []string{
	"id",
	"kind",
	"fields",
	"status",
	"created_at",
	"updated_at",
}

var recordSelectList = strings.Join(recordSelectColumns, ",")

// Create 插入记录并返回数据库生成字段（如时间戳）。
func (r *RecordRepository) Create(ctx context.Context, record *repository.Record) (*repository.Record, error) {
	if record == nil {
		return nil, fmt.Errorf("record is nil")
	}

	fields, err := encodeFields(record.Fields)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO records (id, kind, fields, status)
	VALUES ($1, $2, $3, $4)
	RETURNING ` + recordSelectList

	row := r.db.QueryRowContext(ctx, query, record.ID, record.Kind, fields, record.Status)
	return scanRecord(row)
}

// GetByID 通过主键查询记录，已删除的记录视为不存在。
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*repository.Record, error) {
	query := `SELECT ` + recordSelectList + ` FROM records WHERE id = $1 AND status != $2`
	row := r.db.QueryRowContext(ctx, query, id, repository.RecordStatusDeleted)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// List 支持按类型过滤并分页。
func (r *RecordRepository) List(ctx context.Context, params repository.ListRecordsParams) ([]repository.Record, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	args := []any{repository.RecordStatusDeleted}
	whereClause := "WHERE status != $1"
	if params.Kind != "" {
		args = append(args, params.Kind)
		whereClause += fmt.Sprintf(" AND kind = $%d", len(args))
	}

	args = append(args, limit)
	tail := fmt.Sprintf("ORDER BY created_at DESC LIMIT $%d", len(args))

	if params.Offset > 0 {
		args = append(args, params.Offset)
		tail += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	query := fmt.Sprintf(`SELECT %s FROM records %s %s`, recordSelectList, whereClause, tail)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []repository.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Update 覆盖记录字段。
func (r *RecordRepository) Update(ctx context.Context, record *repository.Record) (*repository.Record, error) {
	if record == nil {
		return nil, fmt.Errorf("record is nil")
	}

	fields, err := encodeFields(record.Fields)
	if err != nil {
		return nil, err
	}

	query := `UPDATE records SET fields = $1, updated_at = $2
	WHERE id = $3 AND status != $4
	RETURNING ` + recordSelectList

	row := r.db.QueryRowContext(ctx, query, fields, time.Now().UTC(), record.ID, repository.RecordStatusDeleted)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// MarkDeleted 软删除记录。
func (r *RecordRepository) MarkDeleted(ctx context.Context, id string) error {
	query := `UPDATE records SET status = $1, updated_at = $2 WHERE id = $3 AND status != $1`
	res, err := r.db.ExecContext(ctx, query, repository.RecordStatusDeleted, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(rs rowScanner) (*repository.Record, error) {
	var (
		rec    repository.Record
		fields []byte
	)

	if err := rs.Scan(
		&rec.ID,
		&rec.Kind,
		&fields,
		&rec.Status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, err
		}
	}
	if rec.Fields == nil {
		rec.Fields = map[string]string{}
	}

	return &rec, nil
}

func encodeFields(fields map[string]string) ([]byte, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	return json.Marshal(fields)
}
