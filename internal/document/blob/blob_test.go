package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexflow/pkg/platform/sentinel"
)

func TestDigestIsStable(t *testing.T) {
	a := Digest([]byte("contract"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Digest([]byte("contract")))
	assert.NotEqual(t, a, Digest([]byte("contract v2")))
	assert.Equal(t, "versions/"+a[:2]+"/"+a, Key(a))
}

func TestInMemoryPutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	require.NoError(t, s.Put(ctx, "k", "text/plain", []byte("first")))
	require.NoError(t, s.Put(ctx, "k", "text/plain", []byte("second")))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
