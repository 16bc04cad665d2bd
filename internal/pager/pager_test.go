package pager_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/mealplan-fulfillment/internal/pager"
)

// fakeFetcher отдает заранее подготовленные страницы, отслеживая курсоры.
type fakeFetcher struct {
	pages   [][]int
	calls   int
	cursors []*int
	err     error
}

func (f *fakeFetcher) fetch(_ context.Context, after *int, _ int) ([]int, error) {
	f.cursors = append(f.cursors, after)
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.pages) {
		return nil, nil
	}
	page := f.pages[f.calls]
	f.calls++
	return page, nil
}

func makePage(start, count int) []int {
	page := make([]int, count)
	for i := range page {
		page[i] = start + i
	}
	return page
}

func TestPager_ExhaustionBoundary(t *testing.T) {
	tests := []struct {
		name        string
		pageSize    int
		firstPage   int
		wantHasMore bool
	}{
		{name: "full page means more may exist", pageSize: 25, firstPage: 25, wantHasMore: true},
		{name: "short page means exhausted", pageSize: 25, firstPage: 24, wantHasMore: false},
		{name: "empty page means exhausted", pageSize: 25, firstPage: 0, wantHasMore: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{pages: [][]int{makePage(0, tt.firstPage)}}
			p := pager.New(pager.Config[int]{PageSize: tt.pageSize, Fetch: f.fetch})

			require.NoError(t, p.Load(context.Background()))

			assert.Equal(t, tt.wantHasMore, p.HasMore())
			assert.Len(t, p.Items(), tt.firstPage)
		})
	}
}

func TestPager_LoadMoreAppends(t *testing.T) {
	f := &fakeFetcher{pages: [][]int{makePage(0, 3), makePage(3, 2)}}
	p := pager.New(pager.Config[int]{PageSize: 3, Fetch: f.fetch})

	require.NoError(t, p.Load(context.Background()))
	require.True(t, p.HasMore())

	require.NoError(t, p.LoadMore(context.Background()))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, p.Items())
	assert.False(t, p.HasMore())

	// Курсор второй загрузки — последний элемент первой страницы.
	require.Len(t, f.cursors, 2)
	assert.Nil(t, f.cursors[0])
	require.NotNil(t, f.cursors[1])
	assert.Equal(t, 2, *f.cursors[1])
}

func TestPager_RefreshReplaces(t *testing.T) {
	f := &fakeFetcher{pages: [][]int{makePage(0, 3), makePage(100, 3)}}
	p := pager.New(pager.Config[int]{PageSize: 3, Fetch: f.fetch})

	require.NoError(t, p.Load(context.Background()))
	assert.Equal(t, []int{0, 1, 2}, p.Items())

	require.NoError(t, p.Refresh(context.Background()))

	// Результат заменен, а не дополнен; курсор сброшен.
	assert.Equal(t, []int{100, 101, 102}, p.Items())
	require.Len(t, f.cursors, 2)
	assert.Nil(t, f.cursors[1])
}

func TestPager_PredicateDoesNotAffectPaginationMath(t *testing.T) {
	// Из 25 сырых элементов предикат скрывает 10: видимых 15,
	// но hasMore вычисляется по сырым 25.
	f := &fakeFetcher{pages: [][]int{makePage(0, 25)}}
	p := pager.New(pager.Config[int]{
		PageSize: 25,
		Fetch:    f.fetch,
		Keep:     func(v int) bool { return v >= 10 },
	})

	require.NoError(t, p.Load(context.Background()))

	assert.Len(t, p.Items(), 15)
	assert.True(t, p.HasMore())
}

func TestPager_FullyFilteredPageStillAdvancesCursor(t *testing.T) {
	f := &fakeFetcher{pages: [][]int{makePage(0, 2), makePage(2, 2)}}
	p := pager.New(pager.Config[int]{
		PageSize: 2,
		Fetch:    f.fetch,
		Keep:     func(v int) bool { return v >= 2 },
	})

	require.NoError(t, p.Load(context.Background()))
	assert.Empty(t, p.Items())
	require.True(t, p.HasMore())

	require.NoError(t, p.LoadMore(context.Background()))
	assert.Equal(t, []int{2, 3}, p.Items())

	require.Len(t, f.cursors, 2)
	require.NotNil(t, f.cursors[1])
	assert.Equal(t, 1, *f.cursors[1])
}

func TestPager_LoadMoreWhenExhaustedIsNoop(t *testing.T) {
	f := &fakeFetcher{pages: [][]int{makePage(0, 1)}}
	p := pager.New(pager.Config[int]{PageSize: 3, Fetch: f.fetch})

	require.NoError(t, p.Load(context.Background()))
	require.False(t, p.HasMore())

	require.NoError(t, p.LoadMore(context.Background()))
	require.NoError(t, p.LoadMore(context.Background()))

	assert.Equal(t, 1, f.calls)
	assert.Equal(t, []int{0}, p.Items())
}

func TestPager_LoadMoreBeforeLoadIsNoop(t *testing.T) {
	f := &fakeFetcher{pages: [][]int{makePage(0, 3)}}
	p := pager.New(pager.Config[int]{PageSize: 3, Fetch: f.fetch})

	require.NoError(t, p.LoadMore(context.Background()))
	assert.Zero(t, f.calls)
}

func TestPager_ConcurrentLoadMoreGuard(t *testing.T) {
	// Пока первая догрузка ждет на блокирующем фетчере,
	// повторный LoadMore обязан быть no-op.
	release := make(chan struct{})
	entered := make(chan struct{})
	calls := 0
	fetch := func(_ context.Context, after *int, _ int) ([]int, error) {
		calls++
		if after != nil {
			close(entered)
			<-release
			return []int{10, 11, 12}, nil
		}
		return []int{0, 1, 2}, nil
	}
	p := pager.New(pager.Config[int]{PageSize: 3, Fetch: fetch})
	require.NoError(t, p.Load(context.Background()))

	done := make(chan struct{})
	go func() {
		_ = p.LoadMore(context.Background())
		close(done)
	}()
	<-entered
	assert.True(t, p.LoadingMore())

	require.NoError(t, p.LoadMore(context.Background())) // no-op
	close(release)
	<-done

	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{0, 1, 2, 10, 11, 12}, p.Items())
}

func TestPager_FetchError(t *testing.T) {
	wantErr := errors.New("backend unavailable")
	f := &fakeFetcher{err: wantErr}
	p := pager.New(pager.Config[int]{PageSize: 3, Fetch: f.fetch})

	err := p.Load(context.Background())
	assert.ErrorIs(t, err, wantErr)
	assert.ErrorIs(t, p.Err(), wantErr)
	assert.Empty(t, p.Items())
	assert.False(t, p.HasMore())
}

func TestPager_CloseDiscardsInflightResult(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	fetch := func(_ context.Context, _ *int, _ int) ([]int, error) {
		close(entered)
		<-release
		return []int{0, 1, 2}, nil
	}
	p := pager.New(pager.Config[int]{PageSize: 3, Fetch: fetch})

	done := make(chan struct{})
	go func() {
		_ = p.Load(context.Background())
		close(done)
	}()
	<-entered
	p.Close()
	close(release)
	<-done

	// Результат, пришедший после Close, не применяется.
	assert.Empty(t, p.Items())
	assert.ErrorIs(t, p.Load(context.Background()), pager.ErrClosed)
}

func TestPager_ResetClearsState(t *testing.T) {
	f := &fakeFetcher{pages: [][]int{makePage(0, 3), makePage(3, 3)}}
	p := pager.New(pager.Config[int]{PageSize: 3, Fetch: f.fetch})

	require.NoError(t, p.Load(context.Background()))
	require.NotEmpty(t, p.Items())

	p.Reset()

	assert.Empty(t, p.Items())
	assert.False(t, p.HasMore())
	assert.NoError(t, p.Err())

	// После Reset пейджер можно загрузить заново с чистым курсором.
	require.NoError(t, p.Load(context.Background()))
	assert.Equal(t, []int{3, 4, 5}, p.Items())
	assert.Nil(t, f.cursors[len(f.cursors)-1])
}

func TestPager_InvalidConfigPanics(t *testing.T) {
	assert.Panics(t, func() {
		pager.New(pager.Config[int]{PageSize: 0, Fetch: func(context.Context, *int, int) ([]int, error) { return nil, nil }})
	})
	assert.Panics(t, func() {
		pager.New(pager.Config[int]{PageSize: 10})
	})
}
