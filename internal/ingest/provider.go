// Bannerscope - Banner Release Prediction and Community Sentiment Dashboard
// Copyright 2026 Aya N. (ayaneru)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayaneru/bannerscope

// Package ingest pulls the banner release schedule from the upstream
// data source on a fixed cadence, runs the offset prediction engine over
// it, and publishes an immutable snapshot for the API layer.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/ayaneru/bannerscope/internal/prediction"
)

// dateLayout is the wire format for release dates.
const dateLayout = "2006-01-02"

// Provider supplies the raw banner schedule for one ingestion cycle.
type Provider interface {
	Fetch(ctx context.Context) ([]prediction.BannerRecord, error)
}

// HTTPProvider fetches the banner schedule from a JSON endpoint.
type HTTPProvider struct {
	scheduleURL string
	httpClient  *http.Client
}

// NewHTTPProvider builds a provider for the given schedule endpoint.
func NewHTTPProvider(scheduleURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		scheduleURL: scheduleURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// bannerEnvelope is the upstream wire shape for one banner run.
type bannerEnvelope struct {
	CharacterID string `json:"character_id"`
	Kind        string `json:"kind"`
	Track       string `json:"track"`
	ReleaseDate string `json:"release_date,omitempty"`
}

// Fetch downloads and decodes the schedule. Records with an unknown
// track or kind fail the whole cycle: a malformed feed is an upstream
// bug we want to surface, not silently drop.
func (p *HTTPProvider) Fetch(ctx context.Context) ([]prediction.BannerRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.scheduleURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("schedule endpoint returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var page struct {
		Banners []bannerEnvelope `json:"banners"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode schedule: %w", err)
	}

	records := make([]prediction.BannerRecord, 0, len(page.Banners))
	for i, b := range page.Banners {
		record, err := b.toRecord()
		if err != nil {
			return nil, fmt.Errorf("schedule entry %d (%s): %w", i, b.CharacterID, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (b bannerEnvelope) toRecord() (prediction.BannerRecord, error) {
	var record prediction.BannerRecord

	switch prediction.Track(b.Track) {
	case prediction.TrackAsia, prediction.TrackGlobal:
		record.Track = prediction.Track(b.Track)
	default:
		return record, fmt.Errorf("unknown track %q", b.Track)
	}

	switch prediction.ReleaseKind(b.Kind) {
	case prediction.KindInitial, prediction.KindRerun:
		record.Kind = prediction.ReleaseKind(b.Kind)
	default:
		return record, fmt.Errorf("unknown release kind %q", b.Kind)
	}

	if b.CharacterID == "" {
		return record, fmt.Errorf("missing character_id")
	}
	record.CharacterID = b.CharacterID

	if b.ReleaseDate != "" {
		date, err := time.Parse(dateLayout, b.ReleaseDate)
		if err != nil {
			return record, fmt.Errorf("bad release_date %q: %w", b.ReleaseDate, err)
		}
		record.ReleaseDate = &date
	}
	return record, nil
}
