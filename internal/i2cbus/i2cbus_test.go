package i2cbus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"periph.io/x/conn/v3/physic"
)

// fakeBus is a minimal i2c.Bus double recording transactions.
type fakeBus struct {
	mu    sync.Mutex
	txs   [][]byte
	speed physic.Frequency
}

func (f *fakeBus) String() string { return "fakeBus" }
func (f *fakeBus) Close() error   { return nil }

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, append([]byte{byte(addr)}, w...))
	for i := range r {
		r[i] = 0xAB
	}
	return nil
}

func (f *fakeBus) SetSpeed(freq physic.Frequency) error {
	f.speed = freq
	return nil
}

func TestTxSerializesWrites(t *testing.T) {
	fb := &fakeBus{}
	bus := New(fb)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r := make([]byte, 2)
			require.NoError(t, bus.Tx(0x42, []byte{byte(n)}, r))
			require.Equal(t, byte(0xAB), r[0])
		}(i)
	}
	wg.Wait()

	require.Len(t, fb.txs, 20)
}

func TestSetSpeed(t *testing.T) {
	fb := &fakeBus{}
	bus := New(fb)
	require.NoError(t, bus.SetSpeed(400*physic.KiloHertz))
	require.Equal(t, 400*physic.KiloHertz, fb.speed)
}
