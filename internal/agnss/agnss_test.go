package agnss

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHappyPathTwoFrames(t *testing.T) {
	var sent [][]byte
	powered := false
	inj := NewInjector(Deps{
		PowerOn: func() { powered = true },
		Send:    func(f []byte) { sent = append(sent, f) },
	})

	now := time.Unix(1000, 0)
	f1, f2 := []byte{0x01}, []byte{0x02}
	require.NoError(t, inj.Start([][]byte{f1, f2}, now))
	require.True(t, powered)
	require.True(t, inj.Running())
	require.Equal(t, [][]byte{f1}, sent)

	out := inj.OnAck(now.Add(time.Second))
	require.Equal(t, Pending, out)
	require.Equal(t, [][]byte{f1, f2}, sent)

	out = inj.OnAck(now.Add(2 * time.Second))
	require.Equal(t, Success, out)
	require.False(t, inj.Running())
}

func TestNackRetriesThenAborts(t *testing.T) {
	sendCount := 0
	inj := NewInjector(Deps{
		Send:     func([]byte) { sendCount++ },
		MaxRetry: 3,
	})

	now := time.Unix(2000, 0)
	require.NoError(t, inj.Start([][]byte{{0xAA}}, now))
	require.Equal(t, 1, sendCount)

	out := inj.OnNack(now)
	require.Equal(t, Pending, out)
	require.Equal(t, 2, sendCount)

	out = inj.OnNack(now)
	require.Equal(t, Pending, out)
	require.Equal(t, 3, sendCount)

	// Third NACK hits MaxRetry=3: abort as if T_total had elapsed.
	out = inj.OnNack(now)
	require.Equal(t, Aborted, out)
	require.False(t, inj.Running())
}

func TestMsgTimeoutBehavesLikeNack(t *testing.T) {
	sendCount := 0
	inj := NewInjector(Deps{
		Send:       func([]byte) { sendCount++ },
		MsgTimeout: time.Second,
		MaxRetry:   2,
	})

	start := time.Unix(3000, 0)
	require.NoError(t, inj.Start([][]byte{{0x01}}, start))
	require.Equal(t, 1, sendCount)

	// Tick before the deadline: no retry.
	out := inj.Tick(start.Add(500 * time.Millisecond))
	require.Equal(t, Pending, out)
	require.Equal(t, 1, sendCount)

	// Tick past the per-message deadline: retransmit.
	out = inj.Tick(start.Add(2 * time.Second))
	require.Equal(t, Pending, out)
	require.Equal(t, 2, sendCount)
}

func TestTotalDeadlineAborts(t *testing.T) {
	inj := NewInjector(Deps{
		Send:         func([]byte) {},
		TotalTimeout: 5 * time.Second,
		MsgTimeout:   time.Hour,
	})

	start := time.Unix(4000, 0)
	require.NoError(t, inj.Start([][]byte{{0x01}, {0x02}}, start))

	out := inj.Tick(start.Add(10 * time.Second))
	require.Equal(t, Aborted, out)
	require.False(t, inj.Running())
}

func TestStartRejectsEmptyQueue(t *testing.T) {
	inj := NewInjector(Deps{Send: func([]byte) {}})
	err := inj.Start(nil, time.Unix(0, 0))
	require.ErrorIs(t, err, ErrNoQueue)
	require.False(t, inj.Running())
}
