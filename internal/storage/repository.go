package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/harshauii/medscan/internal/model"
)

// AnalysisRepository defines the interface for analysis history persistence.
// Go interfaces are implicit — any struct that has these methods satisfies it.
// This makes testing easy: mocks don't need to import the real implementation.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *model.Analysis) error
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status model.AnalysisStatus) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]model.Analysis, error)
}

// sqliteAnalysisRepository is the SQLite implementation of AnalysisRepository.
// The struct is unexported — only the interface is public. This is a common
// Go pattern: export the interface, hide the implementation.
type sqliteAnalysisRepository struct {
	db *sqlx.DB
}

// NewAnalysisRepository creates a new SQLite-backed AnalysisRepository.
func NewAnalysisRepository(db *sqlx.DB) AnalysisRepository {
	return &sqliteAnalysisRepository{db: db}
}

func (r *sqliteAnalysisRepository) Create(ctx context.Context, analysis *model.Analysis) error {
	// NamedExecContext uses the struct's `db:` tags to map fields to :named placeholders.
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO analyses (query, content_type, analysis, provider, status, error_message, duration_ms)
		VALUES (:query, :content_type, :analysis, :provider, :status, :error_message, :duration_ms)
	`, analysis)
	if err != nil {
		return fmt.Errorf("creating analysis record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	analysis.ID = id
	return nil
}

func (r *sqliteAnalysisRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM analyses")
	return count, err
}

func (r *sqliteAnalysisRepository) CountByStatus(ctx context.Context, status model.AnalysisStatus) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM analyses WHERE status = ?", status)
	return count, err
}

func (r *sqliteAnalysisRepository) ListRecent(ctx context.Context, limit int) ([]model.Analysis, error) {
	var analyses []model.Analysis
	err := r.db.SelectContext(ctx, &analyses,
		"SELECT * FROM analyses ORDER BY created_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent analyses: %w", err)
	}
	return analyses, nil
}

// APICallRepository handles persistence of upstream call tracking.
type APICallRepository interface {
	Create(ctx context.Context, call *model.APICall) error
	CountByKind(ctx context.Context, kind model.APICallKind) (int64, error)
	CountFailedByKind(ctx context.Context, kind model.APICallKind) (int64, error)
}

type sqliteAPICallRepository struct {
	db *sqlx.DB
}

// NewAPICallRepository creates a new SQLite-backed APICallRepository.
func NewAPICallRepository(db *sqlx.DB) APICallRepository {
	return &sqliteAPICallRepository{db: db}
}

func (r *sqliteAPICallRepository) Create(ctx context.Context, call *model.APICall) error {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO api_calls (provider, kind, model, success, duration_ms)
		VALUES (:provider, :kind, :model, :success, :duration_ms)
	`, call)
	if err != nil {
		return fmt.Errorf("creating api call record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

func (r *sqliteAPICallRepository) CountByKind(ctx context.Context, kind model.APICallKind) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM api_calls WHERE kind = ?", kind)
	return count, err
}

func (r *sqliteAPICallRepository) CountFailedByKind(ctx context.Context, kind model.APICallKind) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM api_calls WHERE kind = ? AND success = 0", kind)
	return count, err
}
