package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformerRepositoryFindAll(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransformerRepository(db)

	insertTransformer(t, db, "tr-berlin-02", `{"lat":52.52,"lng":13.41}`)
	insertTransformer(t, db, "tr-magdeburg-01", `{"lat":52.13,"lng":11.62}`)
	insertTransformer(t, db, "tr-unplaced-03", nil)
	insertTransformer(t, db, "tr-partial-04", `{"lat":48.21}`)

	transformers, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, transformers, 4)

	assert.Equal(t, "tr-berlin-02", transformers[0].ID)
	require.NotNil(t, transformers[0].Location)
	require.NotNil(t, transformers[0].Location.Lat)
	assert.InDelta(t, 52.52, *transformers[0].Location.Lat, 0.001)
	assert.True(t, transformers[0].HasLocation())

	assert.Equal(t, "tr-magdeburg-01", transformers[1].ID)
	assert.True(t, transformers[1].HasLocation())

	assert.Equal(t, "tr-partial-04", transformers[2].ID)
	assert.False(t, transformers[2].HasLocation())

	assert.Equal(t, "tr-unplaced-03", transformers[3].ID)
	assert.Nil(t, transformers[3].Location)
	assert.False(t, transformers[3].HasLocation())
}

func TestTransformerRepositoryFindAllEmpty(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransformerRepository(db)

	transformers, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, transformers)
}
