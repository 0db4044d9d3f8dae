package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"github.com/smallbiznis/premium/internal/reference"
	dbpkg "github.com/smallbiznis/premium/pkg/db"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()
	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Assignment{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return db, node
}

func newAssignment(t *testing.T, node *snowflake.Node, feature string, owner reference.Ref, rating int) *domain.Assignment {
	t.Helper()
	ownerIDs, err := owner.CanonicalIdentifiers()
	require.NoError(t, err)
	source := reference.NewRef("user", node.Generate())
	sourceIDs, err := source.CanonicalIdentifiers()
	require.NoError(t, err)
	return &domain.Assignment{
		ID:                node.Generate(),
		Feature:           feature,
		OwnerType:         owner.Type,
		OwnerIdentifiers:  ownerIDs,
		SourceType:        source.Type,
		SourceIdentifiers: sourceIDs,
		Params:            map[string]any{"limit": rating},
		Rating:            rating,
		CreatedAt:         time.Now().UTC(),
	}
}

func TestFindTopForOwnerPicksHighestRating(t *testing.T) {
	db, node := setup(t)
	repo := Provide()
	ctx := context.Background()

	owner := reference.NewRef("user", node.Generate())
	other := reference.NewRef("user", node.Generate())
	for _, a := range []*domain.Assignment{
		newAssignment(t, node, "storageQuota", owner, 3),
		newAssignment(t, node, "storageQuota", owner, 9),
		newAssignment(t, node, "storageQuota", owner, 5),
		newAssignment(t, node, "storageQuota", other, 50),
		newAssignment(t, node, "exportInterval", owner, 99),
	} {
		require.NoError(t, repo.Create(ctx, db, a))
	}

	top, err := repo.FindTopForOwner(ctx, db, owner, "storageQuota")
	require.NoError(t, err)
	require.NotNil(t, top)
	require.Equal(t, 9, top.Rating)

	none, err := repo.FindTopForOwner(ctx, db, owner, "adFree")
	require.NoError(t, err)
	require.Nil(t, none)

	all, err := repo.ListByOwner(ctx, db, owner, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, 99, all[0].Rating)

	quota, err := repo.ListByOwner(ctx, db, owner, "storageQuota")
	require.NoError(t, err)
	require.Len(t, quota, 3)
}

func TestDeleteAndFindByID(t *testing.T) {
	db, node := setup(t)
	repo := Provide()
	ctx := context.Background()

	a := newAssignment(t, node, "storageQuota", reference.NewRef("user", node.Generate()), 1)
	require.NoError(t, repo.Create(ctx, db, a))

	found, err := repo.FindByID(ctx, db, a.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.EqualValues(t, 1, found.Parameters()["limit"])

	require.NoError(t, repo.Delete(ctx, db, a.ID))
	found, err = repo.FindByID(ctx, db, a.ID)
	require.NoError(t, err)
	require.Nil(t, found)
}
