package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestTranslateWriteError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, translateWriteError("some:key", nil))
	})

	t.Run("duplicate key is translated", func(t *testing.T) {
		raw := mongo.WriteException{
			WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}},
		}

		err := translateWriteError("operator_concentration:Overall Market", raw)
		require.Error(t, err)
		assert.True(t, IsDuplicateKeyError(err))

		var dup *DuplicateKeyError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "operator_concentration:Overall Market", dup.Key)
	})

	t.Run("other driver errors pass through untranslated", func(t *testing.T) {
		raw := errors.New("connection reset")
		err := translateWriteError("some:key", raw)
		assert.Equal(t, raw, err)
		assert.False(t, IsDuplicateKeyError(err))
	})
}
