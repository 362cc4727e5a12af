package service

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/songlist/internal/database"
)

func TestClassify(t *testing.T) {
	boom := errors.New("disk full")
	tests := []struct {
		name string
		in   error
		kind error
		msg  string
	}{
		{name: "no rows", in: sql.ErrNoRows, kind: ErrNotFound, msg: "band not found"},
		{name: "wrapped no rows", in: fmt.Errorf("query: %w", sql.ErrNoRows), kind: ErrNotFound, msg: "band not found"},
		{name: "duplicate", in: database.ErrDuplicate, kind: ErrConflict, msg: "band already exists"},
		{name: "reference", in: database.ErrReference, kind: ErrNotFound, msg: "referenced record not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.in, "band")
			require.ErrorIs(t, err, tt.kind)
			require.EqualError(t, err, tt.msg)
		})
	}

	require.NoError(t, classify(nil, "band"))

	err := classify(boom, "band")
	require.ErrorIs(t, err, boom)
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrForbidden, ErrUnauthenticated, ErrConflict} {
		require.NotErrorIs(t, err, kind)
	}
}

func TestErrorUnwrapsToKindOnly(t *testing.T) {
	err := newError(ErrForbidden, "not a member of band %d", 7)
	require.ErrorIs(t, err, ErrForbidden)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Equal(t, "not a member of band 7", err.Error())

	var se *Error
	require.ErrorAs(t, err, &se)
}

func TestNewTokenIsHex128(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		tok, err := newToken()
		require.NoError(t, err)
		require.Regexp(t, `^[0-9a-f]{32}$`, tok)
		require.False(t, seen[tok], "duplicate token %s", tok)
		seen[tok] = true
	}
}
