package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowfen/keel/internal/core"
)

type stubEvaluator struct {
	name    string
	minBars int
}

func (s *stubEvaluator) Name() string                      { return s.name }
func (s *stubEvaluator) Description() string               { return "stub" }
func (s *stubEvaluator) MinBars() int                      { return s.minBars }
func (s *stubEvaluator) EvaluateAt([]core.Bar) *Signal     { return nil }
func (s *stubEvaluator) DecideExit([]core.Bar, Entry) bool { return false }

func TestRegistry_NewAndNames(t *testing.T) {
	r := NewRegistry()
	r.Register("beta", func(p Params) Evaluator {
		return &stubEvaluator{name: "beta", minBars: p.Int("min_bars", 30)}
	})
	r.Register("alpha", func(Params) Evaluator {
		return &stubEvaluator{name: "alpha"}
	})

	assert.Equal(t, []string{"alpha", "beta"}, r.Names())

	e, err := r.New("beta", Params{"min_bars": 60})
	require.NoError(t, err)
	assert.Equal(t, 60, e.MinBars())

	_, err = r.New("missing", nil)
	assert.ErrorIs(t, err, core.ErrStrategyNotFound)
}

func TestParams_Defaults(t *testing.T) {
	p := Params{"window": 20}
	assert.Equal(t, 20.0, p.Get("window", 10))
	assert.Equal(t, 10.0, p.Get("absent", 10))
	assert.Equal(t, 20, p.Int("window", 10))

	var empty Params
	assert.Equal(t, 5, empty.Int("anything", 5))
}
