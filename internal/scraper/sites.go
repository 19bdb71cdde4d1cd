package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const firefoxUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:109.0) Gecko/20100101 Firefox/118.0"

var liveNews = Deny("/live-news/")

var bangkokPost = Site{
	Name:     "bangkokpost",
	Domains:  []string{"bangkokpost.com"},
	ListURLs: []string{"https://www.bangkokpost.com/v3/list_content/life/travel?page=1"},
	LinkBase: "https://www.bangkokpost.com/",
	Headers: map[string]string{
		"User-Agent":       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:109.0) Gecko/20100101 Firefox/117.0",
		"Accept":           "*/*",
		"Accept-Language":  "en-US,en;q=0.5",
		"X-Requested-With": "XMLHttpRequest",
		"Referer":          "https://www.bangkokpost.com/life/travel",
		"Cookie":           "is_pdpa=1; bkp_survey=1; is_gdpr=1",
		"Sec-Fetch-Dest":   "empty",
		"Sec-Fetch-Mode":   "cors",
		"Sec-Fetch-Site":   "same-origin",
		"Cache-Control":    "no-cache",
	},
	Links: func(doc *goquery.Document, _ string) []string {
		var out []string
		doc.Find("div.news--list.boxnews-horizon").Each(func(_ int, s *goquery.Selection) {
			if href, ok := s.Find("figure a[href]").First().Attr("href"); ok {
				out = append(out, href)
			}
		})
		return out
	},
}

var clubbingThailand = Site{
	Name:     "clubbingthailand",
	Domains:  []string{"clubbingthailand.com"},
	ListURLs: []string{"https://clubbingthailand.com/"},
	Links: func(doc *goquery.Document, _ string) []string {
		var out []string
		doc.Find(".pt-cv-content-item").Each(func(_ int, s *goquery.Selection) {
			if href, ok := s.Find("a.pt-cv-href-thumbnail").First().Attr("href"); ok {
				out = append(out, href)
			}
		})
		return out
	},
	Image: func(doc *goquery.Document) string {
		return firstAttr(doc, "div.wp-block-image figure.aligncenter a", "href")
	},
}

var cnnTravel = Site{
	Name:     "cnn",
	Domains:  []string{"edition.cnn.com", "cnn.com"},
	ListURLs: []string{"https://edition.cnn.com/travel/news"},
	LinkBase: "https://edition.cnn.com/",
	Links: func(doc *goquery.Document, _ string) []string {
		return attrs(doc, "a.container__link.container__link--type-article.container_vertical-strip__link", "href")
	},
	Image: func(doc *goquery.Document) string {
		if u := firstAttr(doc, "div.image[data-url]", "data-url"); u != "" {
			return u
		}
		return firstAttr(doc, "img.image__dam-img", "src")
	},
}

var euronews = Site{
	Name:     "euronews",
	Domains:  []string{"euronews.com"},
	LinkBase: "https://www.euronews.com/",
	Filters:  []LinkFilter{liveNews},
	Links: func(doc *goquery.Document, _ string) []string {
		return attrs(doc, "div.o-block-listing__articles article a.media__img__link", "href")
	},
	Image: func(doc *goquery.Document) string {
		return firstAttr(doc, ".c-article-image-video .js-poster-img.c-article-media__img", "src")
	},
}

const pattayaPeopleBase = "https://pattayapeople.ru/news"

var pattayaPeople = Site{
	Name:     "pattayapeople",
	Domains:  []string{"pattayapeople.ru"},
	ListURLs: []string{pattayaPeopleBase},
	Links: func(doc *goquery.Document, _ string) []string {
		base := strings.TrimRight(pattayaPeopleBase, "/") + "/"
		var out []string
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href := strings.TrimSpace(s.AttrOr("href", ""))
			n := strings.TrimRight(href, "/") + "/"
			if !strings.HasPrefix(n, base) || n == base {
				return
			}
			// Pagination links are listings, not articles.
			if strings.HasPrefix(n[len(base):], "page/") {
				return
			}
			out = append(out, href)
		})
		return out
	},
	Image: func(doc *goquery.Document) string {
		return firstAttr(doc, "div.entry-image.post-card.post-card__thumbnail img", "src")
	},
}

var ria = Site{
	Name:    "ria",
	Domains: []string{"ria.ru"},
	Links: func(doc *goquery.Document, _ string) []string {
		return attrs(doc, "a.list-item__title", "href")
	},
	Image: func(doc *goquery.Document) string {
		return firstAttr(doc, "div.photoview__open img", "src")
	},
}

var tatNews = Site{
	Name:     "tatnews",
	Domains:  []string{"tatnews.org"},
	ListURLs: []string{"https://www.tatnews.org/category/thailand-tourism-news/"},
	Links: func(doc *goquery.Document, _ string) []string {
		return attrs(doc, "h2.post-title a", "href")
	},
}

var thePattayaNews = Site{
	Name:     "thepattayanews",
	Domains:  []string{"thepattayanews.com"},
	ListURLs: []string{"https://thepattayanews.com/"},
	Links: func(doc *goquery.Document, _ string) []string {
		return attrs(doc, "h3[class*=td-module-title] a[href]", "href")
	},
}

var thePhuketNews = Site{
	Name:     "thephuketnews",
	Domains:  []string{"thephuketnews.com"},
	ListURLs: []string{"https://www.thephuketnews.com/sport-thailand.php"},
	LinkBase: "https://www.thephuketnews.com/",
	Filters:  []LinkFilter{liveNews},
	Headers: map[string]string{
		"User-Agent":                firefoxUA,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"Upgrade-Insecure-Requests": "1",
		"Cache-Control":             "no-cache",
	},
	Links: func(doc *goquery.Document, _ string) []string {
		var out []string
		doc.Find(".row.p-2.border-bottom").Each(func(_ int, s *goquery.Selection) {
			if href, ok := s.Find("h5 a").First().Attr("href"); ok {
				out = append(out, href)
			}
		})
		return out
	},
	Image: func(doc *goquery.Document) string {
		return firstAttr(doc, "img.img-fluid", "src")
	},
}

var theThaiger = Site{
	Name:     "thethaiger",
	Domains:  []string{"thethaiger.com"},
	ListURLs: []string{"https://thethaiger.com/news"},
	Filters:  []LinkFilter{liveNews},
	Links: func(doc *goquery.Document, _ string) []string {
		var out []string
		doc.Find(".post-item").Each(func(_ int, s *goquery.Selection) {
			if href, ok := s.Find("a").First().Attr("href"); ok {
				out = append(out, href)
			}
		})
		return out
	},
	Image: func(doc *goquery.Document) string {
		return firstAttr(doc, ".featured-area .featured-area-inner .single-featured-image img", "src")
	},
}

var tourprom = Site{
	Name:     "tourprom",
	Domains:  []string{"tourprom.ru"},
	LinkBase: "https://www.tourprom.ru",
	Links: func(doc *goquery.Document, _ string) []string {
		return attrs(doc, "a.news-block__text.link-more", "href")
	},
	Image: func(doc *goquery.Document) string {
		return firstAttr(doc, "div.photo-wrap img", "src")
	},
}
