package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/Invictus108/NFT-Gift-Bot/models"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// ItemPageScraper is the metadata fallback for NFTs whose API payload carries
// neither a name nor a description. It scrapes the public marketplace item
// page and reads the OpenGraph meta tags, which are rendered server-side.
type ItemPageScraper struct {
	baseURL     string
	rateLimiter *colly.LimitRule
}

func NewItemPageScraper() *ItemPageScraper {
	return &ItemPageScraper{
		baseURL: "https://opensea.io",
		rateLimiter: &colly.LimitRule{
			DomainGlob:  "*opensea.io*",
			Delay:       2 * time.Second,
			RandomDelay: 1 * time.Second,
		},
	}
}

// ScrapeItemPage fetches the item page for one NFT and extracts OpenGraph
// metadata. Returns an error when the page yields nothing usable.
func (s *ItemPageScraper) ScrapeItemPage(chain, contractAddress, tokenID string) (models.Metadata, error) {
	pageURL := fmt.Sprintf("%s/assets/%s/%s/%s", s.baseURL, chain, contractAddress, tokenID)

	collector := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if err := collector.Limit(s.rateLimiter); err != nil {
		return models.Metadata{}, err
	}

	var metadata models.Metadata
	var scrapeErr error

	collector.OnHTML("html", func(e *colly.HTMLElement) {
		metadata.Name = metaProperty(e.DOM, "og:title")
		metadata.Description = metaProperty(e.DOM, "og:description")
		metadata.ImageURL = metaProperty(e.DOM, "og:image")
	})

	collector.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("item page request failed with status %d: %w", r.StatusCode, err)
	})

	if err := collector.Visit(pageURL); err != nil {
		return models.Metadata{}, err
	}
	collector.Wait()

	if scrapeErr != nil {
		return models.Metadata{}, scrapeErr
	}
	if metadata.Name == "" && metadata.Description == "" {
		return models.Metadata{}, fmt.Errorf("item page carried no OpenGraph metadata")
	}

	logrus.WithFields(logrus.Fields{
		"contract_address": contractAddress,
		"token_id":         tokenID,
	}).Debug("Recovered metadata from marketplace item page")

	return metadata, nil
}

// metaProperty reads the content attribute of a meta tag selected by its
// property name.
func metaProperty(doc *goquery.Selection, property string) string {
	selector := fmt.Sprintf(`meta[property=%q]`, property)
	content, _ := doc.Find(selector).Attr("content")
	return strings.TrimSpace(content)
}
