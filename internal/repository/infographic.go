// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"strings"

	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"github.com/google/uuid"
)

const infographicSelect = `
	SELECT i.id, i.user_id, i.title, i.description, i.design_state, i.thumbnail, i.is_public,
		i.tags, i.category, i.template, i.style, i.views, i.downloads, i.export_count,
		i.created_at, i.updated_at,
		u.id AS "owner.id", u.name AS "owner.name", u.email AS "owner.email", u.photo AS "owner.photo",
		(SELECT count(*) FROM infographic_likes l WHERE l.infographic_id = i.id) AS likes_count
	FROM infographics i
	JOIN users u ON u.id = i.user_id`

var infographicSorts = map[string]string{
	"createdAt":   "i.created_at",
	"updatedAt":   "i.updated_at",
	"title":       "i.title",
	"views":       "i.views",
	"downloads":   "i.downloads",
	"likesCount":  "likes_count",
	"exportCount": "i.export_count",
}

// IsValidInfographicSort reports whether sort names a sortable field.
func IsValidInfographicSort(sort string) bool {
	_, ok := infographicSorts[strings.TrimPrefix(sort, "-")]
	return ok
}

// CreateInfographic inserts a new infographic. ID, timestamps and defaults are filled in.
func (r *Repository) CreateInfographic(ctx context.Context, ig *models.Infographic) error {
	now := r.now()
	if ig.ID == "" {
		ig.ID = uuid.NewString()
	}
	if ig.Thumbnail == "" {
		ig.Thumbnail = models.DefaultThumbnail
	}
	if ig.Category == "" {
		ig.Category = models.DefaultCategory
	}
	if ig.Template == "" {
		ig.Template = models.DefaultTemplate
	}
	if ig.Tags == nil {
		ig.Tags = models.StringList{}
	}
	ig.CreatedAt = now
	ig.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO infographics (id, user_id, title, description, design_state, thumbnail, is_public,
			tags, category, template, style, views, downloads, export_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		ig.ID, ig.UserID, ig.Title, ig.Description, ig.DesignState, ig.Thumbnail, ig.IsPublic,
		ig.Tags, ig.Category, ig.Template, ig.Style, ig.Views, ig.Downloads, ig.ExportCount, ig.CreatedAt, ig.UpdatedAt,
	)
	return wrapError(err)
}

// GetInfographicWithOwner retrieves an infographic with its owner and like count attached.
func (r *Repository) GetInfographicWithOwner(ctx context.Context, id string) (*models.Infographic, error) {
	var ig models.Infographic
	if err := r.db.GetContext(ctx, &ig, r.rebind(infographicSelect+` WHERE i.id = ?`), id); err != nil {
		return nil, wrapError(err)
	}
	return &ig, nil
}

// ListInfographics returns one page of infographics matching the filter and
// the total number of matches.
func (r *Repository) ListInfographics(ctx context.Context, f models.InfographicFilter) ([]models.Infographic, int, error) {
	var (
		where []string
		args  []any
	)
	if f.OwnerID != "" {
		where = append(where, "i.user_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.OnlyPublic {
		where = append(where, "i.is_public = ?")
		args = append(args, true)
	}
	if f.Category != "" {
		where = append(where, "i.category = ?")
		args = append(args, f.Category)
	}
	for _, tag := range f.Tags {
		where = append(where, `i.tags LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(`"`+tag+`"`))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, `(LOWER(i.title) LIKE ? ESCAPE '\' OR LOWER(i.description) LIKE ? ESCAPE '\' OR LOWER(i.tags) LIKE ? ESCAPE '\')`)
		p := likePattern(q)
		args = append(args, p, p, p)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.rebind(`SELECT count(*) FROM infographics i`+clause), args...); err != nil {
		return nil, 0, err
	}

	query := infographicSelect + clause + " ORDER BY " + orderBy(f.Sort)
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	items := []models.Infographic{}
	if err := r.db.SelectContext(ctx, &items, r.rebind(query), args...); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func orderBy(sort string) string {
	dir := "ASC"
	if strings.HasPrefix(sort, "-") {
		dir = "DESC"
		sort = sort[1:]
	}
	column, ok := infographicSorts[sort]
	if !ok {
		column, dir = "i.created_at", "DESC"
	}
	return column + " " + dir + ", i.id ASC"
}

// UpdateInfographic saves the editable fields of an infographic. Counters
// are left untouched.
func (r *Repository) UpdateInfographic(ctx context.Context, ig *models.Infographic) error {
	ig.UpdatedAt = r.now()
	res, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE infographics
		SET title = ?, description = ?, design_state = ?, thumbnail = ?, is_public = ?, tags = ?,
			category = ?, template = ?, style = ?, updated_at = ?
		WHERE id = ?`),
		ig.Title, ig.Description, ig.DesignState, ig.Thumbnail, ig.IsPublic, ig.Tags,
		ig.Category, ig.Template, ig.Style, ig.UpdatedAt, ig.ID,
	)
	if err != nil {
		return wrapError(err)
	}
	return affected(res)
}

// DeleteInfographic permanently removes an infographic and its likes.
func (r *Repository) DeleteInfographic(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM infographics WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return affected(res)
}

// IncrementViews bumps the view counter.
func (r *Repository) IncrementViews(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`UPDATE infographics SET views = views + 1 WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return affected(res)
}

// IncrementExportCount records one export if the quota still has room. The
// check and the increment happen in a single statement, so concurrent
// exports can never push the counter past the quota. It reports whether
// the export was recorded.
func (r *Repository) IncrementExportCount(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE infographics
		SET export_count = export_count + 1, downloads = downloads + 1, updated_at = ?
		WHERE id = ? AND export_count < ?`),
		r.now(), id, models.ExportQuota,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AddLike records that a user likes an infographic. Repeated likes are ignored.
func (r *Repository) AddLike(ctx context.Context, infographicID, userID string) error {
	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO infographic_likes (infographic_id, user_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (infographic_id, user_id) DO NOTHING`),
		infographicID, userID, r.now(),
	)
	return wrapError(err)
}

// RemoveLike withdraws a like. Removing a missing like is not an error.
func (r *Repository) RemoveLike(ctx context.Context, infographicID, userID string) error {
	_, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM infographic_likes WHERE infographic_id = ? AND user_id = ?`),
		infographicID, userID)
	return err
}
