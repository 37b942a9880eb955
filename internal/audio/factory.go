package audio

import (
	"fmt"

	"github.com/kiranshivaraju/soundwatch/internal/config"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
)

// NewAnalyzer constructs the analyzer named by cfg.Analyzer.
// Called once at server startup.
func NewAnalyzer(cfg config.AnalysisConfig) (models.AudioAnalyzer, error) {
	switch cfg.Analyzer {
	case "", "synthetic":
		return NewSynthetic(DefaultSeed()), nil
	default:
		return nil, fmt.Errorf("unknown analyzer %q: must be synthetic", cfg.Analyzer)
	}
}
