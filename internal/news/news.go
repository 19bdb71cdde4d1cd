package news

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Article is a single extracted news page. ID stays empty until the article
// store assigns one.
type Article struct {
	ID             string   `json:"id,omitempty"`
	Title          string   `json:"title"`
	Author         string   `json:"author"`
	Hostname       string   `json:"hostname"`
	Date           string   `json:"date"`
	Categories     string   `json:"categories"`
	Tags           string   `json:"tags"`
	Fingerprint    string   `json:"fingerprint"`
	RawText        string   `json:"raw_text"`
	Text           string   `json:"text"`
	Excerpt        string   `json:"excerpt"`
	Language       string   `json:"language"`
	Source         string   `json:"source"`
	SourceHostname string   `json:"source_hostname"`
	License        string   `json:"license"`
	Comments       string   `json:"comments"`
	ImagesURL      []string `json:"images_url"`
	Posts          []Post   `json:"posts"`
}

// Post is one LLM-generated social post derived from an article.
type Post struct {
	SocialPost   string   `json:"social_post"`
	ImagesSearch string   `json:"images_search"`
	ImagesID     []string `json:"images_id"`
	ImagesURL    []string `json:"images_url"`
}

// Source is a crawl target. Link is the job identity inside the scheduler.
type Source struct {
	ID       int64  `json:"id" db:"id"`
	Link     string `json:"link" db:"link"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

// Admin receives "new article" notifications.
type Admin struct {
	ID       int64  `json:"id" db:"id"`
	UserID   string `json:"user_id" db:"user_id"`
	Name     string `json:"name" db:"name"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

// Valid reports whether the article carries a usable title.
func (a *Article) Valid() bool {
	return strings.TrimSpace(a.Title) != ""
}

// AppendPost adds p and returns its index. Posts are never rewritten.
func (a *Article) AppendPost(p Post) int {
	a.Posts = append(a.Posts, p)
	return len(a.Posts) - 1
}

// AddImage appends url unless it is empty or already present.
func (a *Article) AddImage(url string) {
	url = strings.TrimSpace(url)
	if url == "" {
		return
	}
	for _, u := range a.ImagesURL {
		if u == url {
			return
		}
	}
	a.ImagesURL = append(a.ImagesURL, url)
}

// MainImage returns the first image or "".
func (a *Article) MainImage() string {
	if len(a.ImagesURL) == 0 {
		return ""
	}
	return a.ImagesURL[0]
}

// Fingerprint hashes normalized text so reposted copies of a story collide.
func Fingerprint(text string) string {
	text = strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if text == "" {
		return ""
	}
	h := sha1.New()
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
