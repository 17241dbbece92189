package purge

import (
	"context"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ctx context.Context, src Source, bounds Bounds) ([]snowflake.ID, error) {
	t.Helper()
	var got []snowflake.ID
	for msg, err := range Walk(ctx, src, 1, bounds) {
		if err != nil {
			return got, err
		}
		got = append(got, msg.ID)
	}
	return got, nil
}

func TestWalk_AscendingAcrossPages(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 250)}
	got, err := collect(t, context.Background(), src, Bounds{})
	require.NoError(t, err)
	require.Len(t, got, 250)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i])
	}
	// 3 full/partial pages and one empty page.
	assert.Equal(t, 4, src.fetches)
}

func TestWalk_Bounds(t *testing.T) {
	src := &memorySource{messages: textMessages(1000, 1200)}
	got, err := collect(t, context.Background(), src, Bounds{Lower: 1000, Upper: 1150})
	require.NoError(t, err)
	require.Len(t, got, 150)
	assert.Equal(t, snowflake.ID(1001), got[0])
	assert.Equal(t, snowflake.ID(1150), got[len(got)-1])
	// The walk stops inside the second page once it passes the upper bound.
	assert.Equal(t, 2, src.fetches)
}

func TestWalk_Empty(t *testing.T) {
	src := &memorySource{}
	got, err := collect(t, context.Background(), src, Bounds{Lower: 5})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, src.fetches)
}

func TestWalk_FetchErrorEndsWalk(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 150), failAt: 2}
	got, err := collect(t, context.Background(), src, Bounds{})
	assert.ErrorIs(t, err, errBoom)
	assert.Len(t, got, 100)
}

func TestWalk_Restartable(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 150), failAt: 2}
	got, err := collect(t, context.Background(), src, Bounds{})
	require.Error(t, err)

	rest, err := collect(t, context.Background(), src, Bounds{Lower: got[len(got)-1]})
	require.NoError(t, err)
	assert.Len(t, rest, 50)
	assert.Equal(t, snowflake.ID(101), rest[0])
}

func TestWalk_BreakStopsFetching(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 300)}
	n := 0
	for _, err := range Walk(context.Background(), src, 1, Bounds{}) {
		require.NoError(t, err)
		n++
		if n == 10 {
			break
		}
	}
	assert.Equal(t, 1, src.fetches)
}

func TestWalk_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &memorySource{messages: textMessages(1, 300)}

	var got []snowflake.ID
	var walkErr error
	for msg, err := range Walk(ctx, src, 1, Bounds{}) {
		if err != nil {
			walkErr = err
			break
		}
		got = append(got, msg.ID)
		if len(got) == 5 {
			cancel()
		}
	}
	assert.ErrorIs(t, walkErr, context.Canceled)
	assert.Len(t, got, 5)
	assert.Equal(t, 1, src.fetches)
}

func TestTake(t *testing.T) {
	src := &memorySource{messages: textMessages(1, 300)}
	n := 0
	for _, err := range Take(Walk(context.Background(), src, 1, Bounds{}), 50) {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 50, n)
	assert.Equal(t, 1, src.fetches)

	for range Take(Walk(context.Background(), src, 1, Bounds{}), 0) {
		t.Fatal("expected no messages")
	}
}
