package repository

import (
	"context"
	"time"
)

// RecordStatus 描述记录生命周期。
type RecordStatus string

const (
	RecordStatusActive  RecordStatus = "active"
	RecordStatusDeleted RecordStatus = "deleted"
)

// Record 代表数据库中的一条宿主记录，资源引用保存在 Fields 中。
type Record struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Fields    map[string]string `json:"fields"`
	Status    RecordStatus      `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Clone 返回字段独立的副本，用作保存前的快照。
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Fields = make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	return &out
}

// ListRecordsParams 用于分页检索记录。
type ListRecordsParams struct {
	Kind   string
	Limit  int
	Offset int
}

// RecordRepository 统一记录持久层接口。
type RecordRepository interface {
	Create(ctx context.Context, record *Record) (*Record, error)
	GetByID(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, params ListRecordsParams) ([]Record, error)
	Update(ctx context.Context, record *Record) (*Record, error)
	MarkDeleted(ctx context.Context, id string) error
}
