package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const (
	tatBreakingNewsAPI = "https://api.tourismthailand.org/api/home/get_breaking_news?Language=en"
	tatAnnouncementAPI = "https://api.tourismthailand.org/api/home/get_news_announcement?Language=en"
	tatArticleBase     = "https://www.tourismthailand.org/Articles/"
)

var tatHeaders = map[string]string{
	"User-Agent":      firefoxUA,
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "en-US,en;q=0.5",
	"Language":        "en",
	"Origin":          "https://www.tourismthailand.org",
	"Referer":         "https://www.tourismthailand.org/",
	"Sec-Fetch-Dest":  "empty",
	"Sec-Fetch-Mode":  "cors",
	"Sec-Fetch-Site":  "same-site",
	"Cache-Control":   "no-cache",
}

type tatResponse struct {
	Result []struct {
		URL  string `json:"url"`
		Slug string `json:"slug"`
	} `json:"result"`
}

var tourismThailand = Site{
	Name:     "tourismthailand",
	Domains:  []string{"tourismthailand.org"},
	LinkBase: "https://www.tourismthailand.org/",
	Discover: discoverTourismThailand(time.Now),
}

// discoverTourismThailand reads both JSON endpoints. A failing endpoint is
// tolerated as long as the other one answers.
func discoverTourismThailand(now func() time.Time) func(context.Context, Getter, string) ([]string, error) {
	return func(ctx context.Context, g Getter, _ string) ([]string, error) {
		breaking, errBreaking := fetchTAT(ctx, g, tatBreakingNewsAPI, now)
		announcements, errAnn := fetchTAT(ctx, g, tatAnnouncementAPI, now)
		if errBreaking != nil && errAnn != nil {
			return nil, errors.Join(errBreaking, errAnn)
		}
		if err := errors.Join(errBreaking, errAnn); err != nil {
			slog.Warn("tourismthailand endpoint failed", "error", err)
		}

		var links []string
		for _, r := range breaking.Result {
			if r.URL != "" {
				links = append(links, r.URL)
			}
		}
		for _, r := range announcements.Result {
			if r.Slug != "" {
				links = append(links, tatArticleBase+strings.TrimPrefix(r.Slug, "/"))
			}
		}
		return links, nil
	}
}

func fetchTAT(ctx context.Context, g Getter, endpoint string, now func() time.Time) (tatResponse, error) {
	var resp tatResponse
	u := endpoint + "&timestamp=" + strconv.FormatInt(now().UnixMilli(), 10)
	body, err := g.FetchBytes(ctx, u, tatHeaders)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return resp, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return resp, nil
}
