package excel

import (
	"gocausal/adapters/coercer"
)

// ReaderConfig holds configuration for a tabular file data source
type ReaderConfig struct {
	FilePath       string                 `json:"file_path"`
	Sheet          string                 `json:"sheet"` // xlsx only; empty means the first sheet
	CoercionConfig coercer.CoercionConfig `json:"coercion_config"`
}

// DefaultReaderConfig returns defaults for file processing
func DefaultReaderConfig(path string) ReaderConfig {
	return ReaderConfig{
		FilePath:       path,
		CoercionConfig: coercer.DefaultCoercionConfig(),
	}
}
