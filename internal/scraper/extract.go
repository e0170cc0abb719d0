package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/geography"
)

var (
	reStarLabel    = regexp.MustCompile(`^\s*([\d.]+)\s*つ星`)
	reReviewLabel  = regexp.MustCompile(`^\s*([\d,]+)\s*件のクチコミ`)
	reStarAttr     = regexp.MustCompile(`aria-label="([\d.]+)\s+つ星`)
	reReviewAttr   = regexp.MustCompile(`aria-label="([\d,]+)\s+件のクチコミ`)
	reMultiple     = regexp.MustCompile(`件の結果`)
	reBusinessInfo = regexp.MustCompile(`営業中|営業時間|定休日|電話番号`)
	reNoResult     = regexp.MustCompile(`一致する情報は見つかりませんでした|地図に情報が見つかりません`)
)

// HTMLExtractor reads listing facts from a map search page. Rating and
// review count come from aria-label attributes; flags come from visible text
// and coordinates from the @lat,lng segment of the final URL.
type HTMLExtractor struct{}

func (HTMLExtractor) Extract(s Snapshot) ListingFacts {
	var facts ListingFacts
	text := s.Text

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.HTML))
	if err == nil {
		doc.Find("[aria-label]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			label, _ := sel.Attr("aria-label")
			if facts.Rating == nil {
				if m := reStarLabel.FindStringSubmatch(label); m != nil {
					facts.Rating = parseRating(m[1])
				}
			}
			if facts.Reviews == nil {
				if m := reReviewLabel.FindStringSubmatch(label); m != nil {
					facts.Reviews = parseCount(m[1])
				}
			}
			return facts.Rating == nil || facts.Reviews == nil
		})
		if text == "" {
			doc.Find("script, style, noscript").Remove()
			text = doc.Text()
		}
	} else {
		if m := reStarAttr.FindStringSubmatch(s.HTML); m != nil {
			facts.Rating = parseRating(m[1])
		}
		if m := reReviewAttr.FindStringSubmatch(s.HTML); m != nil {
			facts.Reviews = parseCount(m[1])
		}
		if text == "" {
			text = s.HTML
		}
	}

	facts.Ambiguous = reMultiple.MatchString(text)
	facts.HasBusinessInfo = reBusinessInfo.MatchString(text)
	facts.NotFound = reNoResult.MatchString(text)

	if c, ok := geography.ParseURLCoordinates(s.URL); ok {
		facts.Coordinates = &c
	}
	return facts
}

// parseRating returns nil for values outside 1.0-5.0.
func parseRating(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 1 || v > 5 {
		return nil
	}
	return floatPtr(v)
}

func parseCount(s string) *int {
	v, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil || v < 0 {
		return nil
	}
	return intPtr(v)
}
