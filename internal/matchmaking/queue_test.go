package matchmaking

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"supertictactoe/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCreator struct {
	mu    sync.Mutex
	pairs [][2]string
	err   error
}

func (c *recordingCreator) create(gameID, p1, p2 string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.pairs = append(c.pairs, [2]string{p1, p2})
	return nil
}

func newTestQueue(c *recordingCreator) *Queue {
	return NewQueue(c.create, nil, config.Default(), nil)
}

func TestJoinPairsFIFO(t *testing.T) {
	creator := &recordingCreator{}
	q := newTestQueue(creator)

	st, err := q.Join("alice")
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, st.State)

	st, err = q.Join("bob")
	require.NoError(t, err)
	assert.Equal(t, StateMatched, st.State)
	require.NotEmpty(t, st.GameID)

	require.Len(t, creator.pairs, 1)
	assert.Equal(t, [2]string{"alice", "bob"}, creator.pairs[0])

	// The earlier joiner learns the game id through a poll.
	polled := q.Status("alice")
	assert.Equal(t, StateMatched, polled.State)
	assert.Equal(t, st.GameID, polled.GameID)
}

func TestJoinIsIdempotent(t *testing.T) {
	q := newTestQueue(&recordingCreator{})

	for i := 0; i < 3; i++ {
		st, err := q.Join("alice")
		require.NoError(t, err)
		assert.Equal(t, StateWaiting, st.State)
	}
	assert.Equal(t, 1, q.Waiting())
}

func TestJoinAfterMatchReturnsSamePairing(t *testing.T) {
	q := newTestQueue(&recordingCreator{})

	_, err := q.Join("alice")
	require.NoError(t, err)
	st, err := q.Join("bob")
	require.NoError(t, err)

	again, err := q.Join("bob")
	require.NoError(t, err)
	assert.Equal(t, StateMatched, again.State)
	assert.Equal(t, st.GameID, again.GameID)
}

func TestLeaveRemovesWaiting(t *testing.T) {
	q := newTestQueue(&recordingCreator{})

	_, err := q.Join("alice")
	require.NoError(t, err)
	assert.True(t, q.Leave("alice"))
	assert.False(t, q.Leave("alice"))
	assert.Equal(t, StateIdle, q.Status("alice").State)
}

func TestCreateFailureKeepsQueueIntact(t *testing.T) {
	creator := &recordingCreator{err: errors.New("boom")}
	q := newTestQueue(creator)

	_, err := q.Join("alice")
	require.NoError(t, err)
	_, err = q.Join("bob")
	require.ErrorIs(t, err, ErrCreateFailed)

	// alice stays at the head; the next join retries the pairing.
	creator.mu.Lock()
	creator.err = nil
	creator.mu.Unlock()
	st, err := q.Join("bob")
	require.NoError(t, err)
	assert.Equal(t, StateMatched, st.State)
}

func TestConcurrentJoinsPairEveryone(t *testing.T) {
	const pairs = 50
	creator := &recordingCreator{}
	q := newTestQueue(creator)

	var wg sync.WaitGroup
	for i := 0; i < 2*pairs; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := q.Join(fmt.Sprintf("user-%03d", n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, q.Waiting())
	creator.mu.Lock()
	defer creator.mu.Unlock()
	assert.Len(t, creator.pairs, pairs)

	seen := make(map[string]bool)
	for _, p := range creator.pairs {
		for _, uid := range p {
			assert.False(t, seen[uid], "user %s paired twice", uid)
			seen[uid] = true
		}
	}
	assert.Len(t, seen, 2*pairs)
}

func TestJoinAnswersWhileCreateIsInFlight(t *testing.T) {
	started := make(chan struct{})
	block := make(chan struct{})
	q := NewQueue(func(gameID, p1, p2 string) error {
		close(started)
		<-block
		return nil
	}, nil, config.Default(), nil)

	_, err := q.Join("alice")
	require.NoError(t, err)

	done := make(chan Status, 1)
	go func() {
		st, err := q.Join("bob")
		assert.NoError(t, err)
		done <- st
	}()
	<-started

	// The queue lock is not held across match creation, so other callers
	// get answers while the registry is still working.
	st, err := q.Join("carol")
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, st.State)

	close(block)
	select {
	case st := <-done:
		assert.Equal(t, StateMatched, st.State)
	case <-time.After(2 * time.Second):
		t.Fatal("pairing join never returned")
	}
	assert.Equal(t, StateMatched, q.Status("alice").State)
}

func TestStatusReportsPositionAndWait(t *testing.T) {
	q := newTestQueue(&recordingCreator{})
	base := time.Now()
	q.now = func() time.Time { return base }

	st, err := q.Join("alice")
	require.NoError(t, err)
	require.NotNil(t, st.Position)
	assert.Equal(t, 0, *st.Position)
	assert.Equal(t, 0, st.WaitSeconds)

	q.now = func() time.Time { return base.Add(45 * time.Second) }
	polled := q.Status("alice")
	assert.Equal(t, StateWaiting, polled.State)
	require.NotNil(t, polled.Position)
	assert.Equal(t, 0, *polled.Position)
	assert.Equal(t, 45, polled.WaitSeconds)
}

func TestDeadPairingIsPurged(t *testing.T) {
	creator := &recordingCreator{}
	live := true
	q := NewQueue(creator.create, func(string) bool { return live }, config.Default(), nil)

	_, err := q.Join("alice")
	require.NoError(t, err)
	st, err := q.Join("bob")
	require.NoError(t, err)
	require.Equal(t, StateMatched, st.State)

	// While the match lives, both users keep seeing the pairing.
	assert.Equal(t, StateMatched, q.Status("alice").State)

	// Once the match dies, the record is dropped and the user can requeue.
	live = false
	assert.Equal(t, StateIdle, q.Status("alice").State)
	rejoined, err := q.Join("bob")
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, rejoined.State)
}

func TestReapExpiresStaleState(t *testing.T) {
	q := newTestQueue(&recordingCreator{})
	base := time.Now()
	q.now = func() time.Time { return base }

	_, err := q.Join("alice")
	require.NoError(t, err)
	_, err = q.Join("bob")
	require.NoError(t, err)
	_, err = q.Join("carol")
	require.NoError(t, err)

	expired, cleared := q.Reap(base.Add(time.Minute))
	assert.Zero(t, expired)
	assert.Zero(t, cleared)

	expired, cleared = q.Reap(base.Add(config.Default().QueueMaxAge() + time.Second))
	assert.Equal(t, 1, expired) // carol's waiting entry
	assert.Equal(t, 2, cleared) // alice and bob's pairing records
	assert.Equal(t, StateIdle, q.Status("carol").State)
	assert.Equal(t, StateIdle, q.Status("alice").State)
}
