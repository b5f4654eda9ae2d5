// Package storage persists parsed résumés and their job matches in
// PostgreSQL.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("record not found")

type Config struct {
	DSN   string `mapstructure:"dsn"`
	Debug bool   `mapstructure:"debug"`
}

// Open connects to the database and migrates the schema.
func Open(cfg Config) (*gorm.DB, error) {
	level := gormlogger.Silent
	if cfg.Debug {
		level = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Resume{}, &JobMatch{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

type Repository interface {
	SaveMatches(ctx context.Context, resume *Resume, matches []JobMatch) error
	FindResume(ctx context.Context, id uuid.UUID) (*Resume, error)
	ListMatches(ctx context.Context, resumeID uuid.UUID) ([]JobMatch, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// SaveMatches stores the résumé and its matches in one transaction. Missing
// ids are generated and every match is linked to the résumé.
func (r *repository) SaveMatches(ctx context.Context, resume *Resume, matches []JobMatch) error {
	if resume == nil {
		return errors.New("resume is required")
	}
	if resume.ID == uuid.Nil {
		resume.ID = uuid.New()
	}
	for i := range matches {
		if matches[i].ID == uuid.Nil {
			matches[i].ID = uuid.New()
		}
		matches[i].ResumeID = resume.ID
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Matches").Create(resume).Error; err != nil {
			return fmt.Errorf("failed to create resume: %w", err)
		}
		if len(matches) == 0 {
			return nil
		}
		if err := tx.Create(&matches).Error; err != nil {
			return fmt.Errorf("failed to create job matches: %w", err)
		}
		return nil
	})
}

func (r *repository) FindResume(ctx context.Context, id uuid.UUID) (*Resume, error) {
	var resume Resume
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&resume).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("resume %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find resume: %w", err)
	}
	return &resume, nil
}

func (r *repository) ListMatches(ctx context.Context, resumeID uuid.UUID) ([]JobMatch, error) {
	var matches []JobMatch
	err := r.db.WithContext(ctx).
		Where("resume_id = ?", resumeID).
		Order("score DESC").
		Find(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list job matches: %w", err)
	}
	return matches, nil
}
