package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliosync/foliosync/internal/domain"
)

func TestSequencerMonotonicPerEntity(t *testing.T) {
	s := newSequencer()

	assert.Equal(t, uint64(1), s.take("portfolio"))
	assert.Equal(t, uint64(2), s.take("portfolio"))
	assert.Equal(t, uint64(1), s.take("watchlist"), "entities have independent sequence spaces")

	assert.Equal(t, uint64(2), s.current("portfolio"))
	assert.Equal(t, uint64(0), s.current("portfolio:AAPL"))
}

func TestSequencerIsLatest(t *testing.T) {
	s := newSequencer()

	first := s.take("portfolio")
	assert.True(t, s.isLatest("portfolio", first))

	second := s.take("portfolio")
	assert.False(t, s.isLatest("portfolio", first))
	assert.True(t, s.isLatest("portfolio", second))
}

func TestItemEntityKeysDoNotCollide(t *testing.T) {
	s := newSequencer()

	aapl := s.take(itemEntity(EntityPortfolio, "AAPL"))
	msft := s.take(itemEntity(EntityPortfolio, "MSFT"))

	assert.True(t, s.isLatest(itemEntity(EntityPortfolio, "AAPL"), aapl))
	assert.True(t, s.isLatest(itemEntity(EntityPortfolio, "MSFT"), msft))
}

func TestValidateHoldingInput(t *testing.T) {
	tests := []struct {
		name    string
		input   domain.HoldingInput
		wantErr bool
	}{
		{name: "valid", input: domain.HoldingInput{Symbol: "AAPL", Shares: 10, AverageCost: 150}},
		{name: "blank symbol", input: domain.HoldingInput{Symbol: "  ", Shares: 10, AverageCost: 150}, wantErr: true},
		{name: "zero shares", input: domain.HoldingInput{Symbol: "AAPL", Shares: 0, AverageCost: 150}, wantErr: true},
		{name: "negative shares", input: domain.HoldingInput{Symbol: "AAPL", Shares: -1, AverageCost: 150}, wantErr: true},
		{name: "negative cost", input: domain.HoldingInput{Symbol: "AAPL", Shares: 10, AverageCost: -0.01}, wantErr: true},
		{name: "unknown type", input: domain.HoldingInput{Symbol: "AAPL", Shares: 10, AverageCost: 150, Type: "bond"}, wantErr: true},
		{name: "cash", input: domain.HoldingInput{Symbol: "USD", Shares: 500, AverageCost: 1, Type: domain.AssetCash}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validateHoldingInput(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Type.Valid())
		})
	}
}

func TestValidateHoldingInputNormalizes(t *testing.T) {
	got, err := validateHoldingInput(domain.HoldingInput{Symbol: " aapl ", Shares: 1, AverageCost: 0})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, domain.AssetStock, got.Type, "type defaults to stock")
}

func TestApplyHoldingOrder(t *testing.T) {
	holdings := []domain.Holding{
		{Symbol: "AAPL", Position: 0},
		{Symbol: "MSFT", Position: 1},
		{Symbol: "NVDA", Position: 2},
	}

	out := applyHoldingOrder(holdings, []string{"NVDA", "AAPL", "MSFT"})

	require.Len(t, out, 3)
	assert.Equal(t, "NVDA", out[0].Symbol)
	assert.Equal(t, "AAPL", out[1].Symbol)
	assert.Equal(t, "MSFT", out[2].Symbol)
	for i, h := range out {
		assert.Equal(t, i, h.Position, "positions are reassigned densely")
	}
}

func TestApplyWatchlistOrderSkipsUnknownSymbols(t *testing.T) {
	items := []domain.WatchlistItem{
		{Symbol: "NVDA", Position: 0},
		{Symbol: "AMZN", Position: 1},
	}

	out := applyWatchlistOrder(items, []string{"AMZN", "TSLA", "NVDA"})

	require.Len(t, out, 2)
	assert.Equal(t, "AMZN", out[0].Symbol)
	assert.Equal(t, 0, out[0].Position)
	assert.Equal(t, "NVDA", out[1].Symbol)
	assert.Equal(t, 1, out[1].Position)
}

func TestSameSymbolSet(t *testing.T) {
	assert.True(t, sameSymbolSet([]string{"A", "B", "C"}, []string{"C", "A", "B"}))
	assert.False(t, sameSymbolSet([]string{"A", "B"}, []string{"A", "B", "C"}))
	assert.False(t, sameSymbolSet([]string{"A", "B", "C"}, []string{"A", "B", "D"}))
	assert.False(t, sameSymbolSet([]string{"A", "A", "B"}, []string{"A", "B", "B"}), "multiset counts matter")
	assert.True(t, sameSymbolSet(nil, nil))
}

func TestEqualOrder(t *testing.T) {
	assert.True(t, equalOrder([]string{"A", "B"}, []string{"A", "B"}))
	assert.False(t, equalOrder([]string{"A", "B"}, []string{"B", "A"}))
	assert.False(t, equalOrder([]string{"A"}, []string{"A", "B"}))
}
