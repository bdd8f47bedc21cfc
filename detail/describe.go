package detail

import (
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// minDescriptionChars is the smallest readability extraction worth
// keeping; below it the algorithm almost certainly grabbed navigation
// chrome instead of the product copy.
const minDescriptionChars = 40

// maxDescriptionChars caps the stored description.
const maxDescriptionChars = 4000

// mdConverter is goroutine-safe and shared by all workers. The base
// plugin strips script/style/head noise, commonmark renders the usual
// markdown constructs, and the table plugin keeps nutrition and spec
// tables readable.
var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(
			table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
		),
	),
)

// Describe runs readability over a detail page and converts the main
// content to markdown. Returns "" whenever extraction or conversion
// fails or yields too little text; the caller keeps whatever
// description it already had.
func Describe(rawHTML, pageURL string) string {
	parsed, err := nurl.Parse(pageURL)
	if err != nil {
		slog.Debug("describe: invalid page URL", "url", pageURL, "error", err)
		return ""
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsed)
	if err != nil {
		slog.Debug("describe: readability failed", "url", pageURL, "error", err)
		return ""
	}
	if len(strings.TrimSpace(article.TextContent)) < minDescriptionChars {
		return ""
	}

	md, err := mdConverter.ConvertString(article.Content, converter.WithDomain(parsed.Host))
	if err != nil {
		slog.Debug("describe: markdown conversion failed", "url", pageURL, "error", err)
		return ""
	}

	md = strings.TrimSpace(md)
	if len(md) > maxDescriptionChars {
		md = truncateRunes(md, maxDescriptionChars)
	}
	return md
}

// PageFacts are the card-level fields a detail page can backfill.
type PageFacts struct {
	Image string
	Brand string
}

// Facts reads image and brand fallbacks from the page's metadata:
// og:image for the image, product:brand / itemprop=brand for the brand.
func Facts(rawHTML string) PageFacts {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return PageFacts{}
	}

	var facts PageFacts
	if v, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		facts.Image = strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`meta[property="product:brand"]`).First().Attr("content"); ok {
		facts.Brand = strings.TrimSpace(v)
	}
	if facts.Brand == "" {
		facts.Brand = strings.TrimSpace(doc.Find(`[itemprop="brand"]`).First().Text())
	}
	return facts
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max]))
}
