package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/pipeline"
)

func TestApproximateCount(t *testing.T) {
	assert.Zero(t, Approximate{}.Count(""))
	assert.Equal(t, 1, Approximate{}.Count("hi"))
	assert.Equal(t, 3, Approximate{}.Count("twelve chars"))
}

func TestForNameApproximate(t *testing.T) {
	c, err := ForName(CounterApproximate)
	require.NoError(t, err)
	assert.Equal(t, Approximate{}, c)
}

func TestForNameUnknownIsPermanent(t *testing.T) {
	_, err := ForName("gpt9-super-encoding")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrInvalidInput)
	assert.False(t, pipeline.Retryable(err))
}
