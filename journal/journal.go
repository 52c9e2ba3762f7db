// Package journal persists one row per transaction submission so runs can be
// inspected after the fact.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Submission is what the client observed for one transaction id.
type Submission struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FlowID        uuid.UUID `gorm:"type:uuid;index" json:"flowId"`
	TransactionID string    `gorm:"size:96;index" json:"transactionId"`
	Kind          string    `gorm:"size:32;index" json:"kind"`
	BodyHash      string    `gorm:"size:64;index" json:"bodyHash"`
	Node          string    `gorm:"size:128" json:"node"`
	Precheck      string    `gorm:"size:64" json:"precheck"`
	Status        string    `gorm:"size:64" json:"status,omitempty"`
	State         string    `gorm:"size:16;index" json:"state"`
	Attempts      int       `json:"attempts"`
	Fee           uint64    `json:"fee"`
	LatencyMillis int64     `json:"latencyMillis"`
	Error         string    `gorm:"size:512" json:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Journal writes submissions through gorm.
type Journal struct {
	db *gorm.DB
}

// Open connects to dsn. DSNs starting with postgres:// or postgresql:// use
// the postgres driver; anything else is treated as a sqlite path.
func Open(dsn string) (*Journal, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("journal: dsn required")
	}
	isPostgres := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
	var dialector gorm.Dialector
	if isPostgres {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	if !isPostgres {
		// sqlite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("journal: open: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db)
}

// New wraps an open database and migrates the schema.
func New(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, errors.New("journal: nil database")
	}
	if err := db.AutoMigrate(&Submission{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record stores s, assigning an id and timestamp when unset.
func (j *Journal) Record(ctx context.Context, s *Submission) error {
	if j == nil || j.db == nil {
		return nil
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return j.db.WithContext(ctx).Create(s).Error
}

// Recent returns up to limit submissions, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Submission
	err := j.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&out).Error
	return out, err
}

// ByTransaction returns every submission recorded for a transaction id.
func (j *Journal) ByTransaction(ctx context.Context, txID string) ([]Submission, error) {
	var out []Submission
	err := j.db.WithContext(ctx).Where("transaction_id = ?", txID).Order("created_at asc").Find(&out).Error
	return out, err
}

// Flow returns the submissions sharing a flow id, oldest first.
func (j *Journal) Flow(ctx context.Context, flowID uuid.UUID) ([]Submission, error) {
	var out []Submission
	err := j.db.WithContext(ctx).Where("flow_id = ?", flowID).Order("created_at asc").Find(&out).Error
	return out, err
}

// Summary counts submissions per final state.
func (j *Journal) Summary(ctx context.Context) (map[string]int64, error) {
	type row struct {
		State string
		Count int64
	}
	var rows []row
	if err := j.db.WithContext(ctx).Model(&Submission{}).Select("state, count(*) as count").Group("state").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.State] = r.Count
	}
	return out, nil
}
