// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models_test

import (
	"encoding/json"
	"testing"

	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfographic_ExportQuota(t *testing.T) {
	tests := []struct {
		count     int
		canExport bool
		remaining int
	}{
		{0, true, 5},
		{4, true, 1},
		{5, false, 0},
		{7, false, 0},
	}

	for _, tt := range tests {
		ig := &models.Infographic{ExportCount: tt.count}
		assert.Equal(t, tt.canExport, ig.CanExport(), "count %d", tt.count)
		assert.Equal(t, tt.remaining, ig.RemainingExports(), "count %d", tt.count)
	}
}

func TestInfographic_Visibility(t *testing.T) {
	owner := &models.User{ID: "owner", Role: models.RoleUser}
	stranger := &models.User{ID: "stranger", Role: models.RoleUser}
	admin := &models.User{ID: "admin", Role: models.RoleAdmin}

	private := &models.Infographic{UserID: "owner"}
	public := &models.Infographic{UserID: "owner", IsPublic: true}

	assert.True(t, private.VisibleTo(owner))
	assert.True(t, private.VisibleTo(admin))
	assert.False(t, private.VisibleTo(stranger))
	assert.False(t, private.VisibleTo(nil))
	assert.True(t, public.VisibleTo(nil))

	assert.False(t, public.EditableBy(stranger))
	assert.True(t, public.EditableBy(admin))
}

func TestNormalizeTags(t *testing.T) {
	tags := models.NormalizeTags([]string{" Charts ", "charts", "", "DATA"})

	assert.Equal(t, models.StringList{"charts", "data"}, tags)
}

func TestDocument_Validate(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"object", `{"layers":[]}`, false},
		{"array", `[{"type":"text"}]`, false},
		{"empty", ``, true},
		{"null", `null`, true},
		{"empty object", `{ }`, true},
		{"empty array", `[]`, true},
		{"scalar", `"text"`, true},
		{"malformed", `{"layers":`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := models.Document(tt.doc).Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDocument_JSONRoundTrip(t *testing.T) {
	var payload struct {
		DesignState models.Document `json:"designState"`
	}

	err := json.Unmarshal([]byte(`{"designState":{"width":800,"layers":[1,2]}}`), &payload)
	require.NoError(t, err)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"designState":{"width":800,"layers":[1,2]}}`, string(out))
}

func TestStringList_Scan(t *testing.T) {
	var tags models.StringList

	require.NoError(t, tags.Scan(`["a","b"]`))
	assert.Equal(t, models.StringList{"a", "b"}, tags)

	require.NoError(t, tags.Scan(nil))
	assert.Empty(t, tags)

	value, err := models.StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	value, err = models.StringList{"r&d", "<b>"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["r&d","<b>"]`, value)
}

func TestDocument_Value(t *testing.T) {
	value, err := models.Document(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", value)

	value, err = models.Document(`{"layers":[1]}`).Value()
	require.NoError(t, err)
	assert.Equal(t, `{"layers":[1]}`, value)

	_, err = models.Document(`{"layers":`).Value()
	assert.Error(t, err)

	var doc models.Document
	require.NoError(t, doc.Scan(nil))
	assert.Equal(t, "{}", string(doc))
}
