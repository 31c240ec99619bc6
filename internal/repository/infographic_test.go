// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"sync"
	"testing"

	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"codeberg.org/oliverandrich/infographic-api/internal/repository"
	"codeberg.org/oliverandrich/infographic-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInfographic_Defaults(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	owner := testutil.NewTestUser(t, repo, "ada@example.com")

	ig := &models.Infographic{
		UserID:      owner.ID,
		Title:       "Bare",
		DesignState: models.Document(`{"layers":[1]}`),
	}
	require.NoError(t, repo.CreateInfographic(context.Background(), ig))

	stored, err := repo.GetInfographicWithOwner(context.Background(), ig.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultThumbnail, stored.Thumbnail)
	assert.Equal(t, models.DefaultCategory, stored.Category)
	assert.Equal(t, models.DefaultTemplate, stored.Template)
	assert.Equal(t, models.StringList{}, stored.Tags)
	assert.False(t, stored.IsPublic)
	assert.JSONEq(t, `{}`, string(stored.Style))
	assert.JSONEq(t, `{"layers":[1]}`, string(stored.DesignState))
	require.NotNil(t, stored.Owner)
	assert.Equal(t, owner.ID, stored.Owner.ID)
	assert.Equal(t, owner.Email, stored.Owner.Email)
}

func TestGetInfographicWithOwner_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetInfographicWithOwner(context.Background(), "00000000-0000-0000-0000-000000000000")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListInfographics(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	ada := testutil.NewTestUser(t, repo, "ada@example.com")
	grace := testutil.NewTestUser(t, repo, "grace@example.com")

	sales := testutil.NewTestInfographic(t, repo, ada.ID, "Sales funnel", true)
	testutil.NewTestInfographic(t, repo, ada.ID, "Draft", false)
	health := testutil.NewTestInfographic(t, repo, grace.ID, "Sleep stats", true)
	health.Category = "health"
	health.Tags = models.StringList{"sleep", "charts"}
	require.NoError(t, repo.UpdateInfographic(ctx, health))

	tests := []struct {
		name   string
		filter models.InfographicFilter
		titles []string
		total  int
	}{
		{"public only", models.InfographicFilter{OnlyPublic: true, Sort: "title"}, []string{"Sales funnel", "Sleep stats"}, 2},
		{"owner with private", models.InfographicFilter{OwnerID: ada.ID, Sort: "title"}, []string{"Draft", "Sales funnel"}, 2},
		{"category", models.InfographicFilter{Category: "health"}, []string{"Sleep stats"}, 1},
		{"tag", models.InfographicFilter{OnlyPublic: true, Tags: []string{"sleep"}}, []string{"Sleep stats"}, 1},
		{"all tags must match", models.InfographicFilter{Tags: []string{"sleep", "business"}}, nil, 0},
		{"search is case insensitive", models.InfographicFilter{Query: "FUNNEL"}, []string{"Sales funnel"}, 1},
		{"wildcards are literal", models.InfographicFilter{Query: "%"}, nil, 0},
		{"descending sort", models.InfographicFilter{OnlyPublic: true, Sort: "-title"}, []string{"Sleep stats", "Sales funnel"}, 2},
		{"paging", models.InfographicFilter{Sort: "title", Limit: 1, Offset: 1}, []string{"Sales funnel"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := repo.ListInfographics(ctx, tt.filter)
			require.NoError(t, err)

			var titles []string
			for _, ig := range items {
				titles = append(titles, ig.Title)
			}
			assert.Equal(t, tt.titles, titles)
			assert.Equal(t, tt.total, total)
		})
	}

	items, _, err := repo.ListInfographics(ctx, models.InfographicFilter{OwnerID: ada.ID, OnlyPublic: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, sales.ID, items[0].ID)
	require.NotNil(t, items[0].Owner)
	assert.Equal(t, "ada", items[0].Owner.Name)
}

func TestListInfographics_TagWithAmpersand(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	ada := testutil.NewTestUser(t, repo, "ada@example.com")
	ig := testutil.NewTestInfographic(t, repo, ada.ID, "Lab budget", true)
	ig.Tags = models.StringList{"r&d", "a<b"}
	require.NoError(t, repo.UpdateInfographic(ctx, ig))

	for _, filter := range []models.InfographicFilter{
		{Tags: []string{"r&d"}},
		{Tags: []string{"a<b"}},
		{Query: "r&d"},
	} {
		items, total, err := repo.ListInfographics(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, 1, total, "%+v", filter)
		require.Len(t, items, 1)
		assert.Equal(t, models.StringList{"r&d", "a<b"}, items[0].Tags)
	}
}

func TestIsValidInfographicSort(t *testing.T) {
	assert.True(t, repository.IsValidInfographicSort("createdAt"))
	assert.True(t, repository.IsValidInfographicSort("-likesCount"))
	assert.False(t, repository.IsValidInfographicSort("password_hash"))
	assert.False(t, repository.IsValidInfographicSort("title; DROP TABLE users"))
}

func TestUpdateInfographic_LeavesCounters(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	owner := testutil.NewTestUser(t, repo, "ada@example.com")
	ig := testutil.NewTestInfographic(t, repo, owner.ID, "Chart", true)
	require.NoError(t, repo.IncrementViews(ctx, ig.ID))

	ig.Title = "Renamed"
	ig.Views = 1000
	ig.ExportCount = 5
	require.NoError(t, repo.UpdateInfographic(ctx, ig))

	stored, err := repo.GetInfographicWithOwner(ctx, ig.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Title)
	assert.Equal(t, int64(1), stored.Views)
	assert.Equal(t, 0, stored.ExportCount)
}

func TestIncrementExportCount_StopsAtQuota(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	owner := testutil.NewTestUser(t, repo, "ada@example.com")
	ig := testutil.NewTestInfographic(t, repo, owner.ID, "Chart", false)

	for i := 0; i < models.ExportQuota; i++ {
		ok, err := repo.IncrementExportCount(ctx, ig.ID)
		require.NoError(t, err)
		require.True(t, ok, "export %d", i+1)
	}

	ok, err := repo.IncrementExportCount(ctx, ig.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.GetInfographicWithOwner(ctx, ig.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportQuota, stored.ExportCount)
	assert.Equal(t, int64(models.ExportQuota), stored.Downloads)
}

func TestIncrementExportCount_Concurrent(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	owner := testutil.NewTestUser(t, repo, "ada@example.com")
	ig := testutil.NewTestInfographic(t, repo, owner.ID, "Chart", false)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		recorded int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.IncrementExportCount(ctx, ig.ID)
			if assert.NoError(t, err) && ok {
				mu.Lock()
				recorded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, models.ExportQuota, recorded)
}

func TestLikes(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	owner := testutil.NewTestUser(t, repo, "ada@example.com")
	fan := testutil.NewTestUser(t, repo, "grace@example.com")
	ig := testutil.NewTestInfographic(t, repo, owner.ID, "Chart", true)

	require.NoError(t, repo.AddLike(ctx, ig.ID, fan.ID))
	require.NoError(t, repo.AddLike(ctx, ig.ID, fan.ID))
	require.NoError(t, repo.AddLike(ctx, ig.ID, owner.ID))

	stored, err := repo.GetInfographicWithOwner(ctx, ig.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.LikesCount)

	require.NoError(t, repo.RemoveLike(ctx, ig.ID, fan.ID))
	require.NoError(t, repo.RemoveLike(ctx, ig.ID, fan.ID))

	stored, err = repo.GetInfographicWithOwner(ctx, ig.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.LikesCount)

	items, _, err := repo.ListInfographics(ctx, models.InfographicFilter{Sort: "-likesCount"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].LikesCount)
}

func TestDeleteInfographic(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	owner := testutil.NewTestUser(t, repo, "ada@example.com")
	ig := testutil.NewTestInfographic(t, repo, owner.ID, "Chart", true)
	require.NoError(t, repo.AddLike(ctx, ig.ID, owner.ID))

	require.NoError(t, repo.DeleteInfographic(ctx, ig.ID))

	_, err := repo.GetInfographicWithOwner(ctx, ig.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteInfographic(ctx, ig.ID), repository.ErrNotFound)
	assert.ErrorIs(t, repo.IncrementViews(ctx, ig.ID), repository.ErrNotFound)
}
