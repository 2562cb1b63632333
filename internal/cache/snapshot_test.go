package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliosync/foliosync/internal/domain"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore("guest-abc")

	s.Write(QuoteKey("AAPL"), &domain.Quote{Symbol: "AAPL", Price: 187.44, Change: 1.2}, TTLQuote)
	s.Write(NewsKey("AAPL"), []domain.NewsArticle{{Title: "Apple earnings", Link: "https://example.com", Source: "wire", Published: "2024-05-01"}}, TTLNews)
	s.Write(HistoryKey("AAPL", "1y", "1d", false), &domain.HistoryResponse{
		Symbol:   "AAPL",
		Period:   "1y",
		Interval: "1d",
		History:  json.RawMessage(`[{"date":"2024-05-01","Close":187.44}]`),
	}, TTLHistory)

	// Never persisted classes
	s.Write(KeyPortfolio, "portfolio-view", TTLWatchlist)
	s.Write(KeyWatchlist, "watchlist-view", TTLWatchlist)

	mgr := NewSnapshotManager(s, dir, zerolog.Nop())
	require.NoError(t, mgr.Save())

	restored := newTestStore("guest-abc")
	restoredMgr := NewSnapshotManager(restored, dir, zerolog.Nop())
	n, err := restoredMgr.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entry, ok := restored.Read(QuoteKey("AAPL"))
	require.True(t, ok)
	quote, isQuote := entry.Value.(*domain.Quote)
	require.True(t, isQuote)
	assert.Equal(t, 187.44, quote.Price)

	entry, ok = restored.Read(HistoryKey("AAPL", "1y", "1d", false))
	require.True(t, ok)
	history, isHistory := entry.Value.(*domain.HistoryResponse)
	require.True(t, isHistory)
	assert.JSONEq(t, `[{"date":"2024-05-01","Close":187.44}]`, string(history.History))

	entry, ok = restored.Read(NewsKey("AAPL"))
	require.True(t, ok)
	articles, isNews := entry.Value.([]domain.NewsArticle)
	require.True(t, isNews)
	require.Len(t, articles, 1)
	assert.Equal(t, "Apple earnings", articles[0].Title)

	_, ok = restored.Read(KeyPortfolio)
	assert.False(t, ok, "portfolio entries are never persisted")
	_, ok = restored.Read(KeyWatchlist)
	assert.False(t, ok, "watchlist entries are never persisted")
}

func TestSnapshotSkipsExpiredEntries(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore("guest-abc")
	s.Write(QuoteKey("STALE"), &domain.Quote{Symbol: "STALE", Price: 1}, -time.Hour)

	mgr := NewSnapshotManager(s, dir, zerolog.Nop())
	require.NoError(t, mgr.Save())

	restored := newTestStore("guest-abc")
	n, err := NewSnapshotManager(restored, dir, zerolog.Nop()).Load()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSnapshotFiltersByIdentity(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore("user-a")
	s.Write(QuoteKey("AAPL"), &domain.Quote{Symbol: "AAPL", Price: 187.44}, TTLQuote)

	mgr := NewSnapshotManager(s, dir, zerolog.Nop())
	require.NoError(t, mgr.Save())

	other := newTestStore("user-b")
	n, err := NewSnapshotManager(other, dir, zerolog.Nop()).Load()
	require.NoError(t, err)
	assert.Equal(t, 0, n, "snapshot entries belong to user-a only")
}

func TestSnapshotLoadMissingFile(t *testing.T) {
	s := newTestStore("guest-abc")
	n, err := NewSnapshotManager(s, t.TempDir(), zerolog.Nop()).Load()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
