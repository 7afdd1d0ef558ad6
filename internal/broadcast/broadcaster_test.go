package broadcast

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ev(i int) Event {
	return Event{Event: "notify", Data: Payload{Message: strconv.Itoa(i)}}
}

func recvCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	b := New(4)
	for i := 0; i < 100; i++ {
		require.Zero(t, b.Publish(ev(i)))
	}

	sub, err := b.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	require.Equal(t, 1, b.Publish(ev(1000)))
	got, err := sub.Recv(recvCtx(t))
	require.NoError(t, err)
	require.Equal(t, "1000", got.Data.Message)
}

func TestEverySubscriberReceivesInOrder(t *testing.T) {
	b := New(16)
	a, err := b.Subscribe()
	require.NoError(t, err)
	c, err := b.Subscribe()
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.Equal(t, 2, b.Publish(ev(i)))
	}
	for _, sub := range []*Subscription{a, c} {
		for i := 0; i < 10; i++ {
			got, err := sub.Recv(recvCtx(t))
			require.NoError(t, err)
			require.Equal(t, strconv.Itoa(i), got.Data.Message)
		}
	}
}

func TestSlowSubscriberLagsThenResumes(t *testing.T) {
	b := New(3)
	slow, err := b.Subscribe()
	require.NoError(t, err)
	fast, err := b.Subscribe()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		b.Publish(ev(i))
		got, err := fast.Recv(recvCtx(t))
		require.NoError(t, err)
		require.Equal(t, strconv.Itoa(i), got.Data.Message)
	}
	for i := 3; i < 8; i++ {
		b.Publish(ev(i))
		got, err := fast.Recv(recvCtx(t))
		require.NoError(t, err)
		require.Equal(t, strconv.Itoa(i), got.Data.Message)
	}

	_, err = slow.Recv(recvCtx(t))
	var lag *LagError
	require.True(t, errors.As(err, &lag))
	require.EqualValues(t, 5, lag.Skipped)

	for _, want := range []string{"5", "6", "7"} {
		got, err := slow.Recv(recvCtx(t))
		require.NoError(t, err)
		require.Equal(t, want, got.Data.Message)
	}

	b.Publish(ev(8))
	got, err := slow.Recv(recvCtx(t))
	require.NoError(t, err)
	require.Equal(t, "8", got.Data.Message)
}

func TestRecvBlocksUntilPublish(t *testing.T) {
	b := New(4)
	sub, err := b.Subscribe()
	require.NoError(t, err)

	done := make(chan Event, 1)
	go func() {
		got, err := sub.Recv(context.Background())
		if err == nil {
			done <- got
		}
	}()

	time.Sleep(20 * time.Millisecond)
	b.Publish(ev(7))
	select {
	case got := <-done:
		require.Equal(t, "7", got.Data.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("receiver was not woken")
	}
}

func TestRecvHonoursContext(t *testing.T) {
	b := New(4)
	sub, err := b.Subscribe()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = sub.Recv(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscriptionCloseReleases(t *testing.T) {
	b := New(4)
	sub, err := b.Subscribe()
	require.NoError(t, err)
	require.Equal(t, 1, b.SubscriberCount())

	sub.Close()
	sub.Close()
	require.Zero(t, b.SubscriberCount())
	require.Zero(t, b.Publish(ev(1)))

	_, err = sub.Recv(recvCtx(t))
	require.ErrorIs(t, err, ErrClosed)
}

func TestBroadcasterCloseDrainsThenEnds(t *testing.T) {
	b := New(4)
	sub, err := b.Subscribe()
	require.NoError(t, err)
	b.Publish(ev(1))
	b.Close()

	got, err := sub.Recv(recvCtx(t))
	require.NoError(t, err)
	require.Equal(t, "1", got.Data.Message)

	_, err = sub.Recv(recvCtx(t))
	require.ErrorIs(t, err, ErrClosed)

	_, err = b.Subscribe()
	require.ErrorIs(t, err, ErrClosed)
	require.Zero(t, b.Publish(ev(2)))
}

func TestConcurrentPublishers(t *testing.T) {
	const publishers, perPublisher = 4, 50
	b := New(publishers * perPublisher)
	sub, err := b.Subscribe()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				b.Publish(ev(i))
			}
		}()
	}
	wg.Wait()

	for i := 0; i < publishers*perPublisher; i++ {
		_, err := sub.Recv(recvCtx(t))
		require.NoError(t, err)
	}
}
