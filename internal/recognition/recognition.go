// Package recognition provides the text detection engines.
package recognition

import (
	"context"
	"fmt"

	"github.com/your-org/receiptscan/internal/config"
	"github.com/your-org/receiptscan/internal/models"
)

type Engine interface {
	Name() string
	DetectText(ctx context.Context, image []byte) ([]models.TextDetection, error)
}

// New returns the engine selected by cfg.Engine.
func New(ctx context.Context, cfg config.RecognitionConfig) (Engine, error) {
	switch cfg.Engine {
	case config.EngineRekognition:
		return NewRekognition(ctx, cfg)
	case config.EngineGemini:
		return NewGemini(cfg), nil
	default:
		return nil, fmt.Errorf("unknown recognition engine %q", cfg.Engine)
	}
}
