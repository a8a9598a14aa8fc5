package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
)

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(pairs map[string]string) []zap.Field {
	result := make([]zap.Field, 0, len(pairs))
	for key, value := range pairs {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}

	return result
}

// WithCommonFields attaches the AI provider and model fields to the logger.
// A nil logger falls back to a no-op one to avoid panics in optional paths.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	fields := StringFields(map[string]string{
		FieldProvider: provider,
		FieldModel:    model,
	})
	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}
