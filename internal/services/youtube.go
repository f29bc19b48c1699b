package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/tapedeck/internal/metrics"
	"github.com/desertthunder/tapedeck/internal/shared"
)

const (
	youtubeBaseURL  = "https://www.googleapis.com/youtube/v3"
	defaultPageSize = 25
	maxPageSize     = 50
	maxErrorBody    = 64 << 10
)

// YouTubeGateway implements [ProviderGateway] for the YouTube Data API v3.
//
// Each call fetches exactly one page. An optional [rate.Limiter] spaces outbound requests.
type YouTubeGateway struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
}

// GatewayOption customizes a [YouTubeGateway].
type GatewayOption func(*YouTubeGateway)

// WithHTTPClient replaces the default client, e.g. with an httptest server's client.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *YouTubeGateway) { g.httpClient = c }
}

// WithGatewayMetrics records each listing call's outcome.
func WithGatewayMetrics(m *metrics.Metrics) GatewayOption {
	return func(g *YouTubeGateway) { g.metrics = m }
}

// NewYouTubeGateway creates a gateway from the youtube config section.
func NewYouTubeGateway(cfg shared.YouTubeConfig, opts ...GatewayOption) *YouTubeGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	g := &YouTubeGateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		pageSize:   cfg.PageSize,
		httpClient: &http.Client{Timeout: timeout},
	}

	if g.baseURL == "" {
		g.baseURL = youtubeBaseURL
	}
	if g.pageSize <= 0 {
		g.pageSize = defaultPageSize
	}
	if g.pageSize > maxPageSize {
		g.pageSize = maxPageSize
	}
	if cfg.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	for _, opt := range opts {
		opt(g)
	}
	return g
}

type youtubeThumbnail struct {
	URL string `json:"url"`
}

type youtubeSnippet struct {
	PublishedAt            string                      `json:"publishedAt"`
	Title                  string                      `json:"title"`
	Description            string                      `json:"description"`
	ChannelTitle           string                      `json:"channelTitle"`
	VideoOwnerChannelTitle string                      `json:"videoOwnerChannelTitle"`
	Position               *int                        `json:"position"`
	Thumbnails             map[string]youtubeThumbnail `json:"thumbnails"`
	ResourceID             struct {
		VideoID string `json:"videoId"`
	} `json:"resourceId"`
}

type youtubeListResponse struct {
	NextPageToken string `json:"nextPageToken"`
	PageInfo      struct {
		TotalResults int `json:"totalResults"`
	} `json:"pageInfo"`
	Items []struct {
		ID             string         `json:"id"`
		Snippet        youtubeSnippet `json:"snippet"`
		ContentDetails struct {
			ItemCount *int   `json:"itemCount"`
			VideoID   string `json:"videoId"`
		} `json:"contentDetails"`
		Status struct {
			PrivacyStatus string `json:"privacyStatus"`
		} `json:"status"`
	} `json:"items"`
}

// ListPlaylists returns one page of the authenticated user's playlists.
func (g *YouTubeGateway) ListPlaylists(ctx context.Context, accessToken, cursor string) (*PlaylistPage, error) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails,status")
	params.Set("mine", "true")

	var resp youtubeListResponse
	if err := g.get(ctx, "list_playlists", "/playlists", accessToken, cursor, params, &resp); err != nil {
		return nil, err
	}

	page := &PlaylistPage{
		Playlists:    make([]Item, 0, len(resp.Items)),
		NextCursor:   resp.NextPageToken,
		TotalResults: resp.PageInfo.TotalResults,
	}

	for _, it := range resp.Items {
		extra := map[string]any{}
		if it.ContentDetails.ItemCount != nil {
			extra["itemCount"] = *it.ContentDetails.ItemCount
		}
		if it.Status.PrivacyStatus != "" {
			extra["privacyStatus"] = it.Status.PrivacyStatus
		}
		if it.Snippet.ChannelTitle != "" {
			extra["channelTitle"] = it.Snippet.ChannelTitle
		}

		page.Playlists = append(page.Playlists, Item{
			ID:           it.ID,
			Title:        it.Snippet.Title,
			Description:  it.Snippet.Description,
			ThumbnailURL: bestThumbnail(it.Snippet.Thumbnails),
			PublishedAt:  it.Snippet.PublishedAt,
			Extra:        extra,
		})
	}

	return page, nil
}

// ListPlaylistItems returns one page of the videos in playlistID.
func (g *YouTubeGateway) ListPlaylistItems(ctx context.Context, accessToken, playlistID, cursor string) (*ItemPage, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, fmt.Errorf("%w: playlist id is required", shared.ErrValidation)
	}

	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("playlistId", playlistID)

	var resp youtubeListResponse
	if err := g.get(ctx, "list_playlist_items", "/playlistItems", accessToken, cursor, params, &resp); err != nil {
		return nil, err
	}

	page := &ItemPage{
		Items:        make([]Item, 0, len(resp.Items)),
		NextCursor:   resp.NextPageToken,
		TotalResults: resp.PageInfo.TotalResults,
	}

	for _, it := range resp.Items {
		videoID := it.ContentDetails.VideoID
		if videoID == "" {
			videoID = it.Snippet.ResourceID.VideoID
		}

		extra := map[string]any{"videoId": videoID}
		if it.Snippet.Position != nil {
			extra["position"] = *it.Snippet.Position
		}
		channel := it.Snippet.VideoOwnerChannelTitle
		if channel == "" {
			channel = it.Snippet.ChannelTitle
		}
		if channel != "" {
			extra["channelTitle"] = channel
		}

		page.Items = append(page.Items, Item{
			ID:           it.ID,
			Title:        it.Snippet.Title,
			Description:  it.Snippet.Description,
			ThumbnailURL: bestThumbnail(it.Snippet.Thumbnails),
			PublishedAt:  it.Snippet.PublishedAt,
			Extra:        extra,
		})
	}

	return page, nil
}

// get performs one authenticated GET and decodes the JSON body into result.
//
// Every failure is a [*GatewayError].
func (g *YouTubeGateway) get(ctx context.Context, op, path, accessToken, cursor string, params url.Values, result any) error {
	params.Set("maxResults", strconv.Itoa(g.pageSize))
	if cursor != "" {
		params.Set("pageToken", cursor)
	}
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return g.fail(op, &GatewayError{Kind: KindUnknown, Err: err})
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return g.fail(op, &GatewayError{Kind: KindUnknown, Err: fmt.Errorf("failed to create request: %w", err)})
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return g.fail(op, &GatewayError{Kind: KindUnknown, Err: fmt.Errorf("request failed: %w", err)})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return g.fail(op, &GatewayError{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		})
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return g.fail(op, &GatewayError{
			Kind:       KindUnknown,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to decode response: %w", err),
		})
	}

	g.metrics.RecordProviderCall(op, "ok")
	return nil
}

func (g *YouTubeGateway) fail(op string, err *GatewayError) error {
	g.metrics.RecordProviderCall(op, string(err.Kind))
	return err
}

// bestThumbnail picks the largest available thumbnail.
func bestThumbnail(thumbs map[string]youtubeThumbnail) string {
	for _, size := range []string{"maxres", "standard", "high", "medium", "default"} {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}
