package stride_test

import (
	"testing"

	"github.com/peter-x/zfec-fs/internal/stride"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyNthElement(t *testing.T) {
	in := []byte("123456")
	out := make([]byte, 2)
	n := stride.CopyNthElement(out, in[0:], 3)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("14"), out)

	out2 := make([]byte, 2)
	n2 := stride.CopyNthElement(out2, in[1:], 3)
	assert.Equal(t, 2, n2)
	assert.Equal(t, []byte("25"), out2)
}

func TestDistributeRoundTrip(t *testing.T) {
	// required=3 blocks of 4 interleaved bytes each: positions
	// 0,3,6,9 / 1,4,7,10 / 2,5,8,11
	in := []byte("0123456789AB")
	out := make([]byte, len(in))
	stride.Distribute(out, in, 3)
	assert.Equal(t, []byte("0369"), out[0:4])
	assert.Equal(t, []byte("147A"), out[4:8])
	assert.Equal(t, []byte("258B"), out[8:12])
}

func TestDistributePanicsOnMisalignedInput(t *testing.T) {
	assert.Panics(t, func() {
		stride.Distribute(make([]byte, 10), make([]byte, 10), 3)
	})
}

func TestCopyToNthElement(t *testing.T) {
	out := make([]byte, 6)
	stride.CopyToNthElement(out, 0, []byte("ace"), 2)
	require.Equal(t, []byte("a\x00c\x00e\x00"), out)

	out2 := make([]byte, 6)
	stride.CopyToNthElement(out2, 1, []byte("bdf"), 2)
	require.Equal(t, []byte("\x00b\x00d\x00f"), out2)
}
