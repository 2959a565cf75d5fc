// Google Photos Library API implementation of [Source].
//
// The Photos Library API has no maintained Go client, so this speaks the REST
// surface directly through an oauth2-authenticated HTTP client.

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/favark/favark/internal/models"
	"github.com/favark/favark/internal/retry"
)

const photosBaseURL = "https://photoslibrary.googleapis.com/v1"

// PhotosService implements [Source] over the mediaItems:search endpoint with
// the FAVORITES feature filter.
type PhotosService struct {
	httpClient *http.Client
	baseURL    string
	pageSize   int
	policy     retry.Policy
}

// PhotosOpts contains construction options for [PhotosService].
type PhotosOpts struct {
	Client   *http.Client // required: an authenticated client
	BaseURL  string       // defaults to the public API; overridden in tests
	PageSize int          // defaults to 100
	Policy   *retry.Policy
}

// NewPhotosService creates a Photos client for favorites search.
func NewPhotosService(opts PhotosOpts) *PhotosService {
	if opts.BaseURL == "" {
		opts.BaseURL = photosBaseURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	policy := retry.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	return &PhotosService{
		httpClient: client,
		baseURL:    opts.BaseURL,
		pageSize:   opts.PageSize,
		policy:     policy,
	}
}

type apiDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

func toAPIDate(t time.Time) apiDate {
	return apiDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

type searchRequest struct {
	PageSize  int     `json:"pageSize"`
	PageToken string  `json:"pageToken,omitempty"`
	Filters   filters `json:"filters"`
}

type filters struct {
	FeatureFilter featureFilter `json:"featureFilter"`
	DateFilter    dateFilter    `json:"dateFilter"`
}

type featureFilter struct {
	IncludedFeatures []string `json:"includedFeatures"`
}

type dateFilter struct {
	Ranges []dateRange `json:"ranges"`
}

type dateRange struct {
	StartDate apiDate `json:"startDate"`
	EndDate   apiDate `json:"endDate"`
}

type mediaItemJSON struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	MimeType      string `json:"mimeType"`
	BaseURL       string `json:"baseUrl"`
	ProductURL    string `json:"productUrl"`
	MediaMetadata struct {
		CreationTime string `json:"creationTime"`
	} `json:"mediaMetadata"`
}

func (j mediaItemJSON) toModel() models.MediaItem {
	return models.MediaItem{
		ID:           j.ID,
		Filename:     j.Filename,
		MimeType:     j.MimeType,
		BaseURL:      j.BaseURL,
		ProductURL:   j.ProductURL,
		CreationTime: j.MediaMetadata.CreationTime,
	}
}

type searchResponse struct {
	MediaItems    []mediaItemJSON `json:"mediaItems"`
	NextPageToken string          `json:"nextPageToken"`
}

// SearchFavorites yields every favorite captured in [start, end]. Page
// fetches are retried against transport/HTTP-class errors only; a malformed
// response body is fatal for the page and aborts the sequence.
func (p *PhotosService) SearchFavorites(ctx context.Context, start, end time.Time) iter.Seq2[models.MediaItem, error] {
	return func(yield func(models.MediaItem, error) bool) {
		pageToken := ""
		for {
			page, err := retry.Do(ctx, func() (*searchResponse, error) {
				return p.searchOnce(ctx, start, end, pageToken)
			}, IsTransient, p.policy)
			if err != nil {
				yield(models.MediaItem{}, err)
				return
			}

			for _, item := range page.MediaItems {
				if !yield(item.toModel(), nil) {
					return
				}
			}

			if page.NextPageToken == "" {
				return
			}
			pageToken = page.NextPageToken
		}
	}
}

func (p *PhotosService) searchOnce(ctx context.Context, start, end time.Time, pageToken string) (*searchResponse, error) {
	body := searchRequest{
		PageSize:  p.pageSize,
		PageToken: pageToken,
		Filters: filters{
			FeatureFilter: featureFilter{IncludedFeatures: []string{"FAVORITES"}},
			DateFilter:    dateFilter{Ranges: []dateRange{{StartDate: toAPIDate(start), EndDate: toAPIDate(end)}}},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/mediaItems:search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError("photos search", resp.StatusCode, raw)
	}

	var page searchResponse
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("malformed search response: %w", err)
	}
	return &page, nil
}
