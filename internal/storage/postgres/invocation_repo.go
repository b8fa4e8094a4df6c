package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/StackOneHQ/mcp-connectors-sub002/internal/storage"
)

// InvocationModel is the GORM model for one invocation record.
// Shared by the PostgreSQL and SQLite backends.
type InvocationModel struct {
	ID          string    `gorm:"type:varchar(36);primaryKey"`
	Tool        string    `gorm:"type:varchar(64);index"`
	ScriptSHA   string    `gorm:"type:varchar(64);index"`
	ExitCode    int       `gorm:"not null"`
	StdoutBytes int       `gorm:"not null"`
	StderrBytes int       `gorm:"not null"`
	TimedOut    bool      `gorm:"not null"`
	Truncated   bool      `gorm:"not null"`
	Denied      bool      `gorm:"not null"`
	DurationMS  int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"index;not null"`
}

// TableName overrides GORM's pluralized default.
func (InvocationModel) TableName() string { return "invocations" }

// InvocationRepository implements storage.InvocationStore.
// Append-only: no Update or Delete methods exist on this type.
type InvocationRepository struct {
	db *gorm.DB
}

// NewInvocationRepository creates an InvocationRepository.
func NewInvocationRepository(db *gorm.DB) *InvocationRepository {
	return &InvocationRepository{db: db}
}

// Append inserts a single invocation record. This is the only write
// method; immutability is enforced at the interface level.
func (r *InvocationRepository) Append(ctx context.Context, rec storage.Record) error {
	model := toModel(rec)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("appending invocation record: %w", err)
	}
	return nil
}

// List returns invocation records, newest first. Limit defaults to 100.
func (r *InvocationRepository) List(ctx context.Context, f storage.Filter) ([]storage.Record, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	q := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit)

	if f.Tool != "" {
		q = q.Where("tool = ?", f.Tool)
	}

	var models []InvocationModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing invocation records: %w", err)
	}

	records := make([]storage.Record, len(models))
	for i := range models {
		records[i] = toDomain(&models[i])
	}
	return records, nil
}

func toModel(rec storage.Record) InvocationModel {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return InvocationModel{
		ID:          id,
		Tool:        rec.Tool,
		ScriptSHA:   rec.ScriptSHA,
		ExitCode:    rec.ExitCode,
		StdoutBytes: rec.StdoutBytes,
		StderrBytes: rec.StderrBytes,
		TimedOut:    rec.TimedOut,
		Truncated:   rec.Truncated,
		Denied:      rec.Denied,
		DurationMS:  rec.DurationMS,
		CreatedAt:   createdAt,
	}
}

func toDomain(m *InvocationModel) storage.Record {
	return storage.Record{
		ID:          m.ID,
		Tool:        m.Tool,
		ScriptSHA:   m.ScriptSHA,
		ExitCode:    m.ExitCode,
		StdoutBytes: m.StdoutBytes,
		StderrBytes: m.StderrBytes,
		TimedOut:    m.TimedOut,
		Truncated:   m.Truncated,
		Denied:      m.Denied,
		DurationMS:  m.DurationMS,
		CreatedAt:   m.CreatedAt,
	}
}
