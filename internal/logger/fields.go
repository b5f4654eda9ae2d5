package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldFile is the structured log field key for the processed résumé file.
	FieldFile = "file"
	// FieldStrategy is the structured log field key for the skill detection strategy.
	FieldStrategy = "skill_strategy"
	// FieldQuery is the structured log field key for a job search query.
	FieldQuery = "query"
	// FieldPage is the structured log field key for a job search page.
	FieldPage = "page"
	// FieldResumeID is the structured log field key for a stored résumé.
	FieldResumeID = "resume_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// If the logger is nil or no fields are supplied, the input logger is returned
// unchanged, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// MatchFields returns the fields every log line of a match run carries.
// Empty values are ignored to keep log entries compact.
func MatchFields(file, strategy string) []zap.Field {
	return StringFields(
		StringField{Key: FieldFile, Value: file},
		StringField{Key: FieldStrategy, Value: strategy},
	)
}

// WithMatchFields attaches the match fields to the provided logger.
func WithMatchFields(logger *zap.Logger, file, strategy string) *zap.Logger {
	return WithFields(logger, MatchFields(file, strategy)...)
}
