package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/raine/sellsmart-bot/internal/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Analyze(ctx context.Context, image listing.Payload) (*AnalysisResult, error) {
	args := m.Called(ctx, image)
	if r := args.Get(0); r != nil {
		return r.(*AnalysisResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type memoryCache struct {
	entries map[string]*listing.Draft
	getErr  error
}

func (c *memoryCache) GetAnalysis(hash string) (*listing.Draft, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.entries[hash].Clone(), nil
}

func (c *memoryCache) SetAnalysis(hash string, draft *listing.Draft) error {
	c.entries[hash] = draft.Clone()
	return nil
}

func sampleDraft() *listing.Draft {
	return &listing.Draft{
		Category:              listing.CategoryObject,
		Title:                 "Desk lamp",
		Description:           "Works fine",
		PriceRange:            "10€ - 15€",
		Hashtags:              []string{"lamp"},
		SuggestedMarketplaces: []string{"Wallapop"},
	}
}

func TestCachedAnalyzer_MissThenHit(t *testing.T) {
	inner := new(mockAnalyzer)
	inner.On("Analyze", mock.Anything, testImage).
		Return(&AnalysisResult{Draft: sampleDraft(), Usage: Usage{InputTokens: 10}}, nil).Once()
	cache := &memoryCache{entries: map[string]*listing.Draft{}}
	analyzer := NewCachedAnalyzer(inner, cache)

	first, err := analyzer.Analyze(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, int64(10), first.Usage.InputTokens)

	second, err := analyzer.Analyze(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, sampleDraft(), second.Draft)
	assert.Equal(t, Usage{}, second.Usage)

	inner.AssertNumberOfCalls(t, "Analyze", 1)
}

func TestCachedAnalyzer_CacheErrorFallsThrough(t *testing.T) {
	inner := new(mockAnalyzer)
	inner.On("Analyze", mock.Anything, testImage).
		Return(&AnalysisResult{Draft: sampleDraft()}, nil)
	cache := &memoryCache{entries: map[string]*listing.Draft{}, getErr: errors.New("db locked")}

	result, err := NewCachedAnalyzer(inner, cache).Analyze(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", result.Draft.Title)
}

func TestCachedAnalyzer_DoesNotCacheFailures(t *testing.T) {
	inner := new(mockAnalyzer)
	inner.On("Analyze", mock.Anything, testImage).Return(nil, ErrAnalysisFailed)
	cache := &memoryCache{entries: map[string]*listing.Draft{}}

	_, err := NewCachedAnalyzer(inner, cache).Analyze(context.Background(), testImage)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.Empty(t, cache.entries)
}

func TestCachedAnalyzer_NilCache(t *testing.T) {
	inner := new(mockAnalyzer)
	inner.On("Analyze", mock.Anything, testImage).Return(&AnalysisResult{Draft: sampleDraft()}, nil)

	_, err := NewCachedAnalyzer(inner, nil).Analyze(context.Background(), testImage)
	require.NoError(t, err)
}

func TestCachedAnalyzer_InvalidEntryIsAMiss(t *testing.T) {
	inner := new(mockAnalyzer)
	inner.On("Analyze", mock.Anything, testImage).Return(&AnalysisResult{Draft: sampleDraft()}, nil).Once()
	stale := sampleDraft()
	stale.Category = "FURNITURE"
	cache := &memoryCache{entries: map[string]*listing.Draft{hashImage(testImage.Data): stale}}

	result, err := NewCachedAnalyzer(inner, cache).Analyze(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, listing.CategoryObject, result.Draft.Category)
	inner.AssertNumberOfCalls(t, "Analyze", 1)
	assert.Equal(t, listing.CategoryObject, cache.entries[hashImage(testImage.Data)].Category)
}
