package monitoring

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/travelsearch/internal/model"
)

type stubAdapter struct {
	name string
	down bool
}

func (s *stubAdapter) Name() string { return s.name }
func (s *stubAdapter) SupportedVerticals() []model.Vertical {
	return []model.Vertical{model.VerticalFlights}
}
func (s *stubAdapter) Available() bool { return !s.down }
func (s *stubAdapter) Search(context.Context, model.Vertical, model.SearchParams) ([]model.RawOffer, error) {
	return nil, nil
}

func zapNop() *zap.Logger { return zap.NewNop() }
