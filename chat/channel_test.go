package chat

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelJoinLeave(t *testing.T) {
	ch := newChannel("room")

	require.NoError(t, ch.Join("alice"))
	assert.ErrorIs(t, ch.Join("alice"), ErrAlreadyMember)

	require.NoError(t, ch.Leave("alice"))
	assert.ErrorIs(t, ch.Leave("alice"), ErrNotMember)

	require.NoError(t, ch.Join("alice"))
	assert.Equal(t, []string{"alice"}, ch.Members())
}

func TestChannelRequiresMembership(t *testing.T) {
	ch := newChannel("room")

	_, err := ch.Post("bob", "hello")
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = ch.Snapshot("bob")
	assert.ErrorIs(t, err, ErrNotMember)

	require.NoError(t, ch.Join("bob"))
	require.NoError(t, ch.Leave("bob"))
	_, err = ch.Post("bob", "hello")
	assert.ErrorIs(t, err, ErrNotMember)
	assert.Equal(t, 0, ch.Len())
}

func TestChannelRejectsEmptyMessage(t *testing.T) {
	ch := newChannel("room")
	require.NoError(t, ch.Join("alice"))

	for _, text := range []string{"", "   ", "\t"} {
		_, err := ch.Post("alice", text)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
	assert.Equal(t, 0, ch.Len())
}

func TestChannelHistoryIsBounded(t *testing.T) {
	ch := newChannel("room")
	require.NoError(t, ch.Join("alice"))

	for i := 0; i <= MaxHistory; i++ {
		_, err := ch.Post("alice", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
		assert.LessOrEqual(t, ch.Len(), MaxHistory)
	}

	msgs, err := ch.Snapshot("alice")
	require.NoError(t, err)
	require.Len(t, msgs, MaxHistory)
	assert.Equal(t, "msg 1", msgs[0].Text)
	for i, msg := range msgs {
		assert.Equal(t, fmt.Sprintf("msg %d", i+1), msg.Text)
	}
}

func TestChannelTruncatesLongMessages(t *testing.T) {
	ch := newChannel("room")
	require.NoError(t, ch.Join("alice"))

	msg, err := ch.Post("alice", strings.Repeat("x", 300))
	require.NoError(t, err)
	assert.Len(t, msg.Text, MaxTextLength)

	msgs, err := ch.Snapshot("alice")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Len(t, msgs[0].Text, MaxTextLength)
}

func TestChannelSnapshotIsACopy(t *testing.T) {
	ch := newChannel("room")
	require.NoError(t, ch.Join("alice"))
	_, err := ch.Post("alice", "first")
	require.NoError(t, err)

	snap, err := ch.Snapshot("alice")
	require.NoError(t, err)
	snap[0].Text = "changed"

	_, err = ch.Post("alice", "second")
	require.NoError(t, err)

	again, err := ch.Snapshot("alice")
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, "first", again[0].Text)
	assert.Equal(t, "second", again[1].Text)
	assert.Len(t, snap, 1)
}

func TestChannelConcurrentJoins(t *testing.T) {
	ch := newChannel("room")

	const n = 64
	want := make([]string, 0, n)
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		nick := fmt.Sprintf("user%02d", i)
		want = append(want, nick)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ch.Join(nick)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	got := ch.Members()
	sort.Strings(got)
	assert.Equal(t, want, got)
}

func TestChannelConcurrentPostsStayBounded(t *testing.T) {
	ch := newChannel("room")
	require.NoError(t, ch.Join("alice"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = ch.Post("alice", fmt.Sprintf("%d-%d", worker, j))
				_, _ = ch.Snapshot("alice")
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, MaxHistory, ch.Len())
}
