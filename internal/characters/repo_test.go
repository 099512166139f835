package characters

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lumora-ai/companion-backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:characters_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS characters (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  name TEXT NOT NULL,
  persona TEXT NOT NULL,
  memory_level INTEGER NOT NULL DEFAULT 1,
  is_archived BOOLEAN NOT NULL DEFAULT FALSE,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func newCharacter(ownerID uuid.UUID, name string) *models.Character {
	return &models.Character{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        name,
		Persona:     "persona for " + name,
		MemoryLevel: 1,
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	ownerID := uuid.New()

	character := newCharacter(ownerID, "Mira")
	require.NoError(t, repo.Create(ctx, character))

	got, err := repo.GetByID(ctx, character.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Mira", got.Name)
	assert.Equal(t, ownerID, got.OwnerID)
}

func TestRepository_GetMissingReturnsNil(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)

	got, err := repo.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_ListByOwnerSkipsArchivedAndOthers(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	ownerID := uuid.New()

	active := newCharacter(ownerID, "Mira")
	require.NoError(t, repo.Create(ctx, active))

	archived := newCharacter(ownerID, "Noa")
	archived.IsArchived = true
	require.NoError(t, repo.Create(ctx, archived))

	other := newCharacter(uuid.New(), "Stranger")
	require.NoError(t, repo.Create(ctx, other))

	list, err := repo.ListByOwner(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)
}

func TestRepository_UpdatePersists(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	character := newCharacter(uuid.New(), "Mira")
	require.NoError(t, repo.Create(ctx, character))

	character.Persona = "rewritten persona"
	character.MemoryLevel = 3
	require.NoError(t, repo.Update(ctx, character))

	got, err := repo.GetByID(ctx, character.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "rewritten persona", got.Persona)
	assert.Equal(t, 3, got.MemoryLevel)
}
