package shapeinference

import (
	"testing"

	"github.com/gomlx/hlo2llvm/dtypes"
	"github.com/gomlx/hlo2llvm/hlo/optypes"
	"github.com/gomlx/hlo2llvm/hlo/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Aliases
var (
	MS  = shapes.Make
	F32 = dtypes.Float32
	S32 = dtypes.Int32
)

func TestBinaryOp(t *testing.T) {
	output, err := BinaryOp(optypes.Add, MS(F32, 2, 3), MS(F32, 2, 3))
	require.NoError(t, err)
	assert.True(t, output.Equal(MS(F32, 2, 3)))

	_, err = BinaryOp(optypes.Add, MS(F32, 2, 3), MS(F32, 3, 2))
	require.Error(t, err)
	_, err = BinaryOp(optypes.Multiply, MS(F32, 2), MS(S32, 2))
	require.Error(t, err)
	_, err = BinaryOp(optypes.And, MS(F32, 2), MS(F32, 2))
	require.Error(t, err, "bitwise ops don't accept floats")
	_, err = BinaryOp(optypes.Exp, MS(F32, 2), MS(F32, 2))
	require.Error(t, err, "exponential is not binary")
}

func TestUnaryAndCompare(t *testing.T) {
	_, err := UnaryOp(optypes.Exp, MS(S32, 2))
	require.Error(t, err)
	output, err := UnaryOp(optypes.Negate, MS(S32, 2))
	require.NoError(t, err)
	assert.True(t, output.Equal(MS(S32, 2)))

	output, err = ComparisonOp(optypes.Compare, MS(F32, 4), MS(F32, 4))
	require.NoError(t, err)
	assert.True(t, output.Equal(MS(dtypes.Bool, 4)))
}

func TestSelectClamp(t *testing.T) {
	_, err := Select(MS(dtypes.Bool), MS(F32, 3), MS(F32, 3))
	require.NoError(t, err)
	_, err = Select(MS(dtypes.Bool, 2), MS(F32, 3), MS(F32, 3))
	require.Error(t, err)
	_, err = Select(MS(S32, 3), MS(F32, 3), MS(F32, 3))
	require.Error(t, err)

	_, err = Clamp(MS(F32), MS(F32, 5), MS(F32))
	require.NoError(t, err)
	_, err = Clamp(MS(S32), MS(F32, 5), MS(F32))
	require.Error(t, err)
}

func TestDataMovement(t *testing.T) {
	require.NoError(t, Broadcast(MS(F32, 3), MS(F32, 2, 3), []int{1}))
	require.Error(t, Broadcast(MS(F32, 3), MS(F32, 2, 3), []int{0}))
	require.Error(t, Broadcast(MS(F32, 3), MS(F32, 2, 3), nil))

	require.NoError(t, Reshape(MS(F32, 2, 3), MS(F32, 6)))
	require.Error(t, Reshape(MS(F32, 2, 3), MS(F32, 5)))

	output, err := Transpose(MS(F32, 2, 3, 4), []int{2, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2, 3}, output.Dimensions)
	_, err = Transpose(MS(F32, 2, 3), []int{0, 0})
	require.Error(t, err)

	output, err = Slice(MS(F32, 10, 4), []SliceSpec{{Start: 1, Limit: 8, Stride: 3}, {Start: 0, Limit: 4, Stride: 1}})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, output.Dimensions)
	_, err = Slice(MS(F32, 10), []SliceSpec{{Start: 0, Limit: 11, Stride: 1}})
	require.Error(t, err)

	output, err = Reduce(MS(F32, 2, 3, 4), MS(F32), []int{0, 2})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, output.Dimensions)
	_, err = Reduce(MS(F32, 2, 3), MS(F32), []int{1, 1})
	require.Error(t, err)
	_, err = Reduce(MS(F32, 2, 3), MS(S32), []int{1})
	require.Error(t, err)
}
