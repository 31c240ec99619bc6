// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"strings"
	"time"
)

// ExportQuota is the number of exports allowed per infographic on the free plan.
const ExportQuota = 5

const (
	DefaultThumbnail = "default-infographic.jpg"
	DefaultTemplate  = "default"
	DefaultCategory  = "other"
)

// Categories lists the accepted infographic categories.
var Categories = []string{"business", "education", "health", "technology", "marketing", "other"}

// Owner is the subset of the owning user attached to an infographic on read.
type Owner struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
	Photo string `db:"photo" json:"photo"`
}

type Infographic struct { //nolint:govet // fieldalignment: readability over optimization
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"userId"`
	Owner       *Owner     `db:"owner" json:"user,omitempty"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	DesignState Document   `db:"design_state" json:"designState"`
	Thumbnail   string     `db:"thumbnail" json:"thumbnail"`
	IsPublic    bool       `db:"is_public" json:"isPublic"`
	Tags        StringList `db:"tags" json:"tags"`
	Category    string     `db:"category" json:"category"`
	Template    string     `db:"template" json:"template"`
	Style       Document   `db:"style" json:"style"`
	Views       int64      `db:"views" json:"views"`
	Downloads   int64      `db:"downloads" json:"downloads"`
	ExportCount int        `db:"export_count" json:"exportCount"`
	LikesCount  int        `db:"likes_count" json:"likesCount"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// CanExport reports whether the export quota still has room.
func (i *Infographic) CanExport() bool {
	return i.ExportCount < ExportQuota
}

// RemainingExports returns how many exports are left on the quota.
func (i *Infographic) RemainingExports() int {
	return max(ExportQuota-i.ExportCount, 0)
}

// VisibleTo reports whether user may read the infographic. Private
// infographics are visible to their owner and to admins.
func (i *Infographic) VisibleTo(user *User) bool {
	if i.IsPublic {
		return true
	}
	return i.EditableBy(user)
}

// EditableBy reports whether user may modify or delete the infographic.
func (i *Infographic) EditableBy(user *User) bool {
	if user == nil {
		return false
	}
	return user.ID == i.UserID || user.IsAdmin()
}

// NormalizeTags trims, lowercases and de-duplicates tags, dropping empty ones.
func NormalizeTags(tags []string) StringList {
	out := make(StringList, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// InfographicFilter selects infographics for list endpoints.
type InfographicFilter struct { //nolint:govet // fieldalignment: readability over optimization
	OwnerID    string
	OnlyPublic bool
	Query      string
	Category   string
	Tags       []string
	Sort       string // field name, "-" prefix for descending
	Limit      int
	Offset     int
}
