package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutOpenDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "files/2024/notes.pdf", strings.NewReader("payload"), 7, "application/pdf"))

	rc, obj, err := store.Open(ctx, "/files/2024/notes.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, int64(7), obj.Size)
	assert.Equal(t, "files/2024/notes.pdf", obj.Key)
	assert.Equal(t, "application/pdf", obj.ContentType)

	require.NoError(t, store.Delete(ctx, "files/2024/notes.pdf"))
	_, _, err = store.Open(ctx, "files/2024/notes.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "files/2024/notes.pdf"))
}

func TestLocalStore_List(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"b.zip", "a.zip", "other/c.txt"} {
		require.NoError(t, store.Put(ctx, key, strings.NewReader(key), int64(len(key)), ""))
	}

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a.zip", all[0].Key)

	nested, err := store.List(ctx, "other/")
	require.NoError(t, err)
	require.Len(t, nested, 1)
	assert.Equal(t, "other/c.txt", nested[0].Key)
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "a/b.pdf", want: "a/b.pdf"},
		{in: `\a\b.pdf`, want: "a/b.pdf"},
		{in: "a//b.pdf", want: "a/b.pdf"},
		{in: "../etc/passwd", wantErr: true},
		{in: "a/../../b", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanKey(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
