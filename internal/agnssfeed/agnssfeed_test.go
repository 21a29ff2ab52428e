package agnssfeed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckFrameShapeOnGarbageReturnsZero(t *testing.T) {
	require.Equal(t, 0, CheckFrameShape([]byte{0x00, 0x01, 0x02, 0x03}))
}

func TestCheckFrameShapeOnEmptyReturnsZero(t *testing.T) {
	require.Equal(t, 0, CheckFrameShape(nil))
}
