package core

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

func TestErrorIsComparesCode(t *testing.T) {
	err := NewError(CodeConfig, "stack overlaps heap")
	assert.True(t, errors.Is(err, ErrConfig))
	assert.False(t, errors.Is(err, ErrLoad))

	wrapped := errors.Wrap(err, "configure platform")
	assert.True(t, errors.Is(wrapped, ErrConfig))
	assert.Equal(t, CodeConfig, CodeOf(wrapped))

	doubly := fmt.Errorf("setup: %w", wrapped)
	assert.True(t, errors.Is(doubly, ErrConfig))
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(CodeLoad, nil, "ignored"))

	cause := fmt.Errorf("short read")
	err := WrapError(CodeLoad, cause, "decode header")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoad))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "short read")
	assert.Contains(t, err.Error(), "decode header")
}

func TestCodeOfUnclassified(t *testing.T) {
	assert.Equal(t, CodeUnknown, CodeOf(fmt.Errorf("plain")))
	assert.Equal(t, "public io mismatch", CodePublicIOMismatch.String())
	assert.Equal(t, "code(99)", ErrorCode(99).String())
}

func TestMerkleProofs(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 13} {
		t.Run(fmt.Sprintf("leaves=%d", n), func(t *testing.T) {
			data := make([][]byte, n)
			for i := range data {
				data[i] = []byte(fmt.Sprintf("row-%d", i))
			}
			tree, err := NewMerkleTree(data)
			require.NoError(t, err)
			assert.Equal(t, n, tree.Len())

			for i := range data {
				path, err := tree.Proof(i)
				require.NoError(t, err)
				assert.True(t, VerifyProof(tree.Root(), data[i], path, i), "leaf %d", i)
				assert.False(t, VerifyProof(tree.Root(), []byte("forged"), path, i))
				if n > 1 {
					assert.False(t, VerifyProof(tree.Root(), data[i], path, (i+1)%n), "wrong index %d", i)
				}
			}
		})
	}
}

func TestMerkleEmptyAndOutOfRange(t *testing.T) {
	tree, err := NewMerkleTree(nil)
	require.NoError(t, err)
	assert.Len(t, tree.Root(), 32)

	_, err = tree.Proof(0)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestMerkleRootChangesWithData(t *testing.T) {
	a, err := MerkleRoot([][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	b, err := MerkleRoot([][]byte{[]byte("a"), []byte("c")})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashElementsDeterministic(t *testing.T) {
	elems := []field.Element{field.New(1), field.New(2), field.New(3)}
	d1 := HashElements("test", elems)
	d2 := HashElements("test", elems)
	assert.Equal(t, d1, d2)
	assert.False(t, d1.IsZero())

	assert.NotEqual(t, d1, HashElements("other", elems))
	assert.NotEqual(t, d1, HashElements("test", elems[:2]))
}

func TestHashBytesFramesParts(t *testing.T) {
	assert.NotEqual(t,
		HashBytes("d", []byte("ab"), []byte("c")),
		HashBytes("d", []byte("a"), []byte("bc")))
}

func TestDigestFromBytes(t *testing.T) {
	d := HashBytes("x")
	back, err := DigestFromBytes(d.Bytes())
	require.NoError(t, err)
	assert.Equal(t, d, back)
	assert.Len(t, d.String(), 64)
	assert.Len(t, d.Short(), 8)

	_, err = DigestFromBytes([]byte{1, 2})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
