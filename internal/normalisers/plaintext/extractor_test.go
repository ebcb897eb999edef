package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

func TestMIMETypes(t *testing.T) {
	types := New().MIMETypes()

	assert.Contains(t, types, "text/plain")
	assert.Contains(t, types, "text/csv")
}

func TestExtract(t *testing.T) {
	out, err := New().Extract(context.Background(), []byte("Youth unemployment fell to 14%."), "text/plain")

	require.NoError(t, err)
	assert.Equal(t, "Youth unemployment fell to 14%.", out.Text)
	assert.Zero(t, out.PageCount)
	assert.Nil(t, out.PageStarts)
}

func TestExtract_FormFeedPages(t *testing.T) {
	out, err := New().Extract(context.Background(), []byte("page one\fpage two"), "text/plain")

	require.NoError(t, err)
	assert.Equal(t, "page one\n\npage two", out.Text)
	assert.Equal(t, 2, out.PageCount)
	assert.Equal(t, []int{0, 10}, out.PageStarts)
}

func TestExtract_Empty(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("   \n\t")} {
		out, err := New().Extract(context.Background(), data, "text/plain")
		assert.ErrorIs(t, err, domain.ErrExtraction)
		assert.Nil(t, out)
	}
}

func TestExtract_InvalidUTF8(t *testing.T) {
	out, err := New().Extract(context.Background(), []byte{'o', 'k', 0xff}, "text/plain")

	require.NoError(t, err)
	assert.Equal(t, "ok�", out.Text)
}
