package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/pipeline"
)

type opName string

func (o opName) String() string { return string(o) }

func TestParseOperation(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Operation
	}{
		{"value", Update, Update},
		{"name", "Create", Create},
		{"any case", "uPsErT", Upsert},
		{"padded", " delete ", Delete},
		{"stringer", opName("update"), Update},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseOperation(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseOperation_Unsupported(t *testing.T) {
	for _, in := range []any{"archive", Operation(42), 7, nil} {
		_, err := ParseOperation(in)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeUnsupportedOperation), "input %v", in)
	}
}

func TestParseEmailOperation(t *testing.T) {
	op, err := ParseEmailOperation("markasread")
	require.NoError(t, err)
	assert.Equal(t, MarkAsRead, op)

	op, err = ParseEmailOperation("Delete")
	require.NoError(t, err)
	assert.Equal(t, DeleteMail, op)
	assert.Equal(t, "Delete", op.String())

	_, err = ParseEmailOperation(Create)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnsupportedOperation))
}

func TestOperationString(t *testing.T) {
	assert.Equal(t, "Upsert", Upsert.String())
	assert.Equal(t, "Operation(9)", Operation(9).String())
	assert.Equal(t, "EmailOperation(0)", EmailOperation(0).String())
}

func TestWithOperation(t *testing.T) {
	pctx := WithOperation(nil, Create)
	require.NotNil(t, pctx)
	v, ok := pipeline.Read[Operation](pctx, OperationKey)
	require.True(t, ok)
	assert.Equal(t, Create, v)

	same := pipeline.NewContext()
	assert.Same(t, same, WithOperation(same, "Delete"))
}
