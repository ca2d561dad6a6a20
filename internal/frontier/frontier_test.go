package frontier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/maltedev/refurb-crawler/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const root = "https://www.apple.com/shop/refurbished"

func TestFrontier_ListingDepthCap(t *testing.T) {
	ctx := context.Background()
	f := New(root, Limits{MaxDepth: 1}, nil, nil)
	f.Seed(root)

	seed, ok := f.NextListing(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, seed.Depth)

	n := f.PushListings(seed, []string{root + "/mac", root + "/ipad"})
	assert.Equal(t, 2, n)
	f.Complete(seed.URL, StateExpanded)

	child, ok := f.NextListing(ctx)
	require.True(t, ok)
	assert.Equal(t, 2, child.Depth)

	// Second-tier pages are fetched, their listing children are not queued.
	assert.Equal(t, 0, f.PushListings(child, []string{root + "/mac/13-inch"}))
	assert.Equal(t, 1, f.PushProducts(child, []string{"https://www.apple.com/shop/product/FK0C3LL/A"}))

	_, known := f.State(root + "/mac/13-inch")
	assert.False(t, known)
}

func TestFrontier_NeverClaimsTwice(t *testing.T) {
	ctx := context.Background()
	f := New(root, Limits{MaxDepth: 3}, nil, nil)
	f.Seed(root)
	f.Seed(root)

	task, ok := f.NextListing(ctx)
	require.True(t, ok)
	assert.Equal(t, 0, f.PushListings(task, []string{root}))

	_, ok = f.NextListing(ctx)
	assert.False(t, ok)

	state, _ := f.State(root)
	assert.Equal(t, StateVisiting, state)
}

func TestFrontier_SharedVisitedSetRejectsDuplicateClaim(t *testing.T) {
	ctx := context.Background()
	visited := NewMemoryVisitedSet()
	_, err := visited.Add(ctx, root+"/mac")
	require.NoError(t, err)

	f := New(root, Limits{MaxDepth: 2}, visited, nil)
	f.Seed(root)
	seed, ok := f.NextListing(ctx)
	require.True(t, ok)
	f.PushListings(seed, []string{root + "/mac"})

	_, ok = f.NextListing(ctx)
	assert.False(t, ok)
	assert.Equal(t, 1, f.Stats().Duplicates)
	assert.Equal(t, 1, f.Stats().PagesVisited)
}

func TestFrontier_PageCap(t *testing.T) {
	ctx := context.Background()
	f := New(root, Limits{MaxPages: 2, MaxDepth: 2}, nil, nil)
	f.Seed(root)

	seed, ok := f.NextListing(ctx)
	require.True(t, ok)
	f.PushProducts(seed, []string{"https://a.example/product/1", "https://a.example/product/2"})
	f.CloseProducts()

	_, ok = f.NextProduct(ctx)
	require.True(t, ok)
	assert.True(t, f.Halted())

	_, ok = f.NextProduct(ctx)
	assert.False(t, ok)
	assert.Equal(t, 2, f.Stats().PagesVisited)
}

func TestFrontier_ResultCap(t *testing.T) {
	f := New(root, Limits{MaxResults: 2}, nil, nil)

	assert.True(t, f.TryAccept("a"))
	assert.False(t, f.Halted())
	assert.True(t, f.TryAccept("b"))
	assert.True(t, f.Halted())
	assert.False(t, f.TryAccept("c"))

	stats := f.Stats()
	assert.Equal(t, 2, stats.Accepted)
	assert.Equal(t, 1, stats.OverCap)

	state, _ := f.State("c")
	assert.Equal(t, StateRejected, state)
}

func TestFrontier_ResultCapConcurrent(t *testing.T) {
	f := New(root, Limits{MaxResults: 3}, nil, nil)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if f.TryAccept(fmt.Sprintf("u%d", i)) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
}

func TestFrontier_NextProductWaitsForClose(t *testing.T) {
	f := New(root, Limits{}, nil, nil)

	done := make(chan bool, 1)
	go func() {
		_, ok := f.NextProduct(context.Background())
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	f.CloseProducts()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("NextProduct did not return after close")
	}
}

func TestFrontier_CompleteCounts(t *testing.T) {
	f := New(root, Limits{}, nil, nil)
	f.Complete("a", StateExpanded)
	f.Complete("b", StateRejected)
	f.Complete("c", StateFailed)

	stats := f.Stats()
	assert.Equal(t, 1, stats.Expanded)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, 1, stats.Failed)
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateVisiting.Terminal())
}

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(ctx, key, value, expiration)
	cmd := redis.NewBoolCmd(ctx)
	if err := args.Error(1); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(args.Bool(0))
	}
	return cmd
}

func (m *MockRedisClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(args.Int(0)))
	return cmd
}

func TestRedisVisitedSet(t *testing.T) {
	ctx := context.Background()
	prefix := VisitedKeyPrefix("run-1", "DE")
	assert.Equal(t, "refurb:visited:run-1:DE:", prefix)

	url := root + "/mac"

	client := new(MockRedisClient)
	client.On("SetNX", ctx, mock.MatchedBy(func(k string) bool {
		return len(k) == len(prefix)+64 && k[:len(prefix)] == prefix
	}), url, time.Hour).Return(true, nil).Once()
	client.On("SetNX", ctx, mock.Anything, url, time.Hour).Return(false, nil).Once()
	client.On("Exists", ctx, mock.Anything).Return(1)

	set := NewRedisVisitedSet(client, prefix, time.Hour)

	added, err := set.Add(ctx, url)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = set.Add(ctx, url)
	require.NoError(t, err)
	assert.False(t, added)

	ok, err := set.Contains(ctx, url)
	require.NoError(t, err)
	assert.True(t, ok)

	client.AssertExpectations(t)
}

func TestRedisVisitedSet_ErrorSkipsTask(t *testing.T) {
	ctx := context.Background()
	client := new(MockRedisClient)
	client.On("SetNX", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("connection refused"))

	f := New(root, Limits{MaxDepth: 1}, NewRedisVisitedSet(client, "p:", time.Minute), nil)
	f.Seed(root)

	_, ok := f.NextListing(ctx)
	assert.False(t, ok)

	state, _ := f.State(root)
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, 0, f.Stats().PagesVisited)
}

func TestMemoryVisitedSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVisitedSet()

	added, _ := s.Add(ctx, "a")
	assert.True(t, added)
	added, _ = s.Add(ctx, "a")
	assert.False(t, added)

	ok, _ := s.Contains(ctx, "a")
	assert.True(t, ok)
	ok, _ = s.Contains(ctx, "b")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestSeedTaskShape(t *testing.T) {
	f := New(root, Limits{}, nil, nil)
	f.Seed(root)
	listings, products := f.Pending()
	assert.Equal(t, 1, listings)
	assert.Equal(t, 0, products)

	task, ok := f.NextListing(context.Background())
	require.True(t, ok)
	assert.Equal(t, models.CrawlTask{URL: root, Depth: 1}, task)
}

func TestFrontier_Abandon(t *testing.T) {
	f := New(root, Limits{MaxResults: 1}, nil, nil)
	assert.False(t, f.ResultCapReached())
	require.True(t, f.TryAccept("a"))
	assert.True(t, f.ResultCapReached())

	f.Abandon("b")
	state, _ := f.State("b")
	assert.Equal(t, StateRejected, state)
	assert.Equal(t, 1, f.Stats().OverCap)
}
