// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/infographic-api/internal/apierror"
	"codeberg.org/oliverandrich/infographic-api/internal/auth"
	"codeberg.org/oliverandrich/infographic-api/internal/middleware"
	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"codeberg.org/oliverandrich/infographic-api/internal/repository"
	"codeberg.org/oliverandrich/infographic-api/internal/services/storage"
	"github.com/labstack/echo/v4"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPage         = 100_000
)

var (
	ErrInfographicNotFound = apierror.NotFound("No infographic found with that ID")
	ErrExportQuota         = apierror.Forbidden("You have reached the export limit for this infographic. " +
		"Please upgrade to a paid plan to continue exporting.")
	ErrUploadsDisabled = apierror.Unavailable("Image uploads are not configured on this server.")
)

// Uploader presigns direct image uploads to object storage.
type Uploader interface {
	PresignImageUpload(ctx context.Context, userID, contentType string) (*storage.Upload, error)
}

// InfographicHandlers contains the infographic handlers.
type InfographicHandlers struct {
	repo     *repository.Repository
	uploader Uploader
	logger   *slog.Logger
}

// NewInfographics creates a new InfographicHandlers instance. uploader
// may be nil when no object storage is configured.
func NewInfographics(repo *repository.Repository, uploader Uploader, logger *slog.Logger) *InfographicHandlers {
	return &InfographicHandlers{repo: repo, uploader: uploader, logger: logger}
}

// infographicView adds the derived fields to an infographic.
type infographicView struct {
	*models.Infographic
	RemainingExports int `json:"remainingExports"`
}

func view(ig *models.Infographic) infographicView {
	return infographicView{Infographic: ig, RemainingExports: ig.RemainingExports()}
}

func views(items []models.Infographic) []infographicView {
	out := make([]infographicView, len(items))
	for i := range items {
		out[i] = view(&items[i])
	}
	return out
}

func infographicData(ig *models.Infographic) map[string]any {
	return map[string]any{"infographic": view(ig)}
}

// load fetches the infographic named by the id path parameter.
func (h *InfographicHandlers) load(c echo.Context) (*models.Infographic, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	ig, err := h.repo.GetInfographicWithOwner(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInfographicNotFound
		}
		return nil, err
	}
	return ig, nil
}

// loadVisible is load restricted to infographics the caller may see.
// Hidden ones look missing.
func (h *InfographicHandlers) loadVisible(c echo.Context) (*models.Infographic, error) {
	ig, err := h.load(c)
	if err != nil {
		return nil, err
	}
	if !ig.VisibleTo(auth.GetUser(c.Request().Context())) {
		return nil, ErrInfographicNotFound
	}
	return ig, nil
}

// loadEditable is load restricted to the owner and admins.
func (h *InfographicHandlers) loadEditable(c echo.Context) (*models.Infographic, error) {
	ig, err := h.loadVisible(c)
	if err != nil {
		return nil, err
	}
	if !ig.EditableBy(auth.GetUser(c.Request().Context())) {
		return nil, middleware.ErrForbidden
	}
	return ig, nil
}

// listFilter reads paging, sorting and search parameters from the query.
func listFilter(c echo.Context) (models.InfographicFilter, int, error) {
	var f models.InfographicFilter

	page, err := queryInt(c, "page", 1)
	if err != nil {
		return f, 0, err
	}
	if page > maxPage {
		return f, 0, apierror.InvalidValue("page", c.QueryParam("page"))
	}
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil {
		return f, 0, err
	}
	limit = min(limit, maxPageSize)

	if sort := c.QueryParam("sort"); sort != "" {
		if !repository.IsValidInfographicSort(sort) {
			return f, 0, apierror.InvalidValue("sort", sort)
		}
		f.Sort = sort
	}

	f.Query = c.QueryParam("q")
	f.Category = strings.ToLower(strings.TrimSpace(c.QueryParam("category")))
	var tags []string
	for _, v := range c.QueryParams()["tags"] {
		tags = append(tags, strings.Split(v, ",")...)
	}
	f.Tags = models.NormalizeTags(tags)
	f.Limit = limit
	f.Offset = (page - 1) * limit
	return f, page, nil
}

func (h *InfographicHandlers) list(c echo.Context, f models.InfographicFilter, page int) error {
	items, total, err := h.repo.ListInfographics(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return respondList(c, len(items), map[string]any{
		"infographics": views(items),
		"pagination": map[string]int{
			"page":  page,
			"limit": f.Limit,
			"total": total,
		},
	})
}

// List returns public infographics.
func (h *InfographicHandlers) List(c echo.Context) error {
	f, page, err := listFilter(c)
	if err != nil {
		return err
	}
	f.OnlyPublic = true
	return h.list(c, f, page)
}

// ListByUser returns the infographics of one user. Private ones are
// included for the owner and admins.
func (h *InfographicHandlers) ListByUser(c echo.Context) error {
	ownerID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	f, page, err := listFilter(c)
	if err != nil {
		return err
	}
	f.OwnerID = ownerID

	user := auth.GetUser(c.Request().Context())
	f.OnlyPublic = user == nil || (user.ID != ownerID && !user.IsAdmin())
	return h.list(c, f, page)
}

// InfographicRequest is the request body for creating an infographic.
type InfographicRequest struct {
	Title       string          `json:"title" validate:"required,max=100"`
	Description string          `json:"description" validate:"max=500"`
	DesignState models.Document `json:"designState" validate:"document"`
	Thumbnail   string          `json:"thumbnail" validate:"max=500"`
	IsPublic    bool            `json:"isPublic"`
	Tags        []string        `json:"tags" validate:"max=20,dive,max=30"`
	Category    string          `json:"category" validate:"omitempty,oneof=business education health technology marketing other"`
	Template    string          `json:"template" validate:"max=50"`
	Style       models.Document `json:"style"`
}

// Create stores a new infographic owned by the current user.
func (h *InfographicHandlers) Create(c echo.Context) error {
	var req InfographicRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user := auth.GetUser(ctx)
	ig := &models.Infographic{
		UserID:      user.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		DesignState: req.DesignState,
		Thumbnail:   req.Thumbnail,
		IsPublic:    req.IsPublic,
		Tags:        models.NormalizeTags(req.Tags),
		Category:    req.Category,
		Template:    req.Template,
		Style:       req.Style,
	}
	if err := h.repo.CreateInfographic(ctx, ig); err != nil {
		return err
	}
	ig.Owner = &models.Owner{ID: user.ID, Name: user.Name, Email: user.Email, Photo: user.Photo}

	h.logger.Info("infographic_created", "infographic_id", ig.ID, "user_id", user.ID)
	return respond(c, http.StatusCreated, infographicData(ig))
}

// Get returns one infographic and counts the view.
func (h *InfographicHandlers) Get(c echo.Context) error {
	ig, err := h.loadVisible(c)
	if err != nil {
		return err
	}
	if err := h.repo.IncrementViews(c.Request().Context(), ig.ID); err != nil {
		return err
	}
	ig.Views++
	return respond(c, http.StatusOK, infographicData(ig))
}

// UpdateInfographicRequest is the request body for partial updates.
// Absent fields stay unchanged.
type UpdateInfographicRequest struct {
	Title       *string         `json:"title" validate:"omitempty,min=1,max=100"`
	Description *string         `json:"description" validate:"omitempty,max=500"`
	DesignState models.Document `json:"designState" validate:"omitempty,document"`
	Thumbnail   *string         `json:"thumbnail" validate:"omitempty,max=500"`
	IsPublic    *bool           `json:"isPublic"`
	Tags        []string        `json:"tags" validate:"omitempty,max=20,dive,max=30"`
	Category    *string         `json:"category" validate:"omitempty,oneof=business education health technology marketing other"`
	Template    *string         `json:"template" validate:"omitempty,max=50"`
	Style       models.Document `json:"style"`
}

// Update changes the editable fields of an infographic. Counters and
// ownership cannot be changed.
func (h *InfographicHandlers) Update(c echo.Context) error {
	var req UpdateInfographicRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ig, err := h.loadEditable(c)
	if err != nil {
		return err
	}
	if req.Title != nil {
		ig.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		ig.Description = strings.TrimSpace(*req.Description)
	}
	if req.DesignState != nil {
		ig.DesignState = req.DesignState
	}
	if req.Thumbnail != nil {
		ig.Thumbnail = *req.Thumbnail
	}
	if req.IsPublic != nil {
		ig.IsPublic = *req.IsPublic
	}
	if req.Tags != nil {
		ig.Tags = models.NormalizeTags(req.Tags)
	}
	if req.Category != nil {
		ig.Category = *req.Category
	}
	if req.Template != nil {
		ig.Template = *req.Template
	}
	if req.Style != nil {
		ig.Style = req.Style
	}

	if err := h.repo.UpdateInfographic(c.Request().Context(), ig); err != nil {
		return err
	}
	return respond(c, http.StatusOK, infographicData(ig))
}

// Delete removes an infographic for good.
func (h *InfographicHandlers) Delete(c echo.Context) error {
	ig, err := h.loadEditable(c)
	if err != nil {
		return err
	}
	if err := h.repo.DeleteInfographic(c.Request().Context(), ig.ID); err != nil {
		return err
	}
	h.logger.Info("infographic_deleted", "infographic_id", ig.ID, "user_id", auth.GetUser(c.Request().Context()).ID)
	return noContent(c)
}

// ExportCheck tells whether the export quota still has room.
func (h *InfographicHandlers) ExportCheck(c echo.Context) error {
	ig, err := h.loadEditable(c)
	if err != nil {
		return err
	}
	if !ig.CanExport() {
		return ErrExportQuota
	}
	return respondMessage(c, "You can export your infographic.", map[string]int{
		"remainingExports": ig.RemainingExports(),
	})
}

// Export records one export against the quota.
func (h *InfographicHandlers) Export(c echo.Context) error {
	ig, err := h.loadEditable(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	ok, err := h.repo.IncrementExportCount(ctx, ig.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrExportQuota
	}

	ig, err = h.repo.GetInfographicWithOwner(ctx, ig.ID)
	if err != nil {
		return err
	}
	h.logger.Info("infographic_exported", "infographic_id", ig.ID, "export_count", ig.ExportCount)
	return respondMessage(c, "Infographic exported successfully.", infographicData(ig))
}

// Like records that the current user likes an infographic.
func (h *InfographicHandlers) Like(c echo.Context) error {
	return h.setLike(c, true)
}

// Unlike withdraws the like of the current user.
func (h *InfographicHandlers) Unlike(c echo.Context) error {
	return h.setLike(c, false)
}

func (h *InfographicHandlers) setLike(c echo.Context, like bool) error {
	ig, err := h.loadVisible(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	user := auth.GetUser(ctx)
	if like {
		err = h.repo.AddLike(ctx, ig.ID, user.ID)
	} else {
		err = h.repo.RemoveLike(ctx, ig.ID, user.ID)
	}
	if err != nil {
		return err
	}

	ig, err = h.repo.GetInfographicWithOwner(ctx, ig.ID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, infographicData(ig))
}

// UploadURLRequest is the request body for presigning an image upload.
type UploadURLRequest struct {
	ContentType string `json:"contentType" validate:"required"`
}

// UploadURL hands out a presigned URL for uploading an image directly to
// object storage.
func (h *InfographicHandlers) UploadURL(c echo.Context) error {
	if h.uploader == nil {
		return ErrUploadsDisabled
	}

	var req UploadURLRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	upload, err := h.uploader.PresignImageUpload(ctx, auth.GetUser(ctx).ID, strings.ToLower(strings.TrimSpace(req.ContentType)))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]any{"upload": upload})
}
