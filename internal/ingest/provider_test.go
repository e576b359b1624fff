// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayaneru/bannerscope/internal/prediction"
)

func TestHTTPProviderFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"banners":[
			{"character_id":"hoshino","kind":"initial","track":"asia","release_date":"2025-01-01"},
			{"character_id":"hoshino","kind":"initial","track":"global","release_date":"2025-01-08"},
			{"character_id":"aru","kind":"rerun","track":"asia"}
		]}`))
	}))
	defer server.Close()

	records, err := NewHTTPProvider(server.URL, 5*time.Second).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "hoshino", records[0].CharacterID)
	assert.Equal(t, prediction.TrackAsia, records[0].Track)
	assert.Equal(t, prediction.KindInitial, records[0].Kind)
	require.NotNil(t, records[0].ReleaseDate)
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), *records[0].ReleaseDate)

	assert.Equal(t, prediction.KindRerun, records[2].Kind)
	assert.Nil(t, records[2].ReleaseDate, "an unannounced banner carries no date")
}

func TestHTTPProviderRejectsUnknownTrack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"banners":[{"character_id":"x","kind":"initial","track":"eu"}]}`))
	}))
	defer server.Close()

	_, err := NewHTTPProvider(server.URL, 5*time.Second).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown track "eu"`)
}

func TestHTTPProviderRejectsBadDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"banners":[{"character_id":"x","kind":"initial","track":"asia","release_date":"01/02/2025"}]}`))
	}))
	defer server.Close()

	_, err := NewHTTPProvider(server.URL, 5*time.Second).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad release_date")
}

func TestHTTPProviderNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPProvider(server.URL, 5*time.Second).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
}
