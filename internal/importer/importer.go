// Package importer turns a recipe web page into a submission for the
// household review queue.
package importer

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"dinner-planner/internal/api"
	"dinner-planner/internal/llm"

	"github.com/PuerkitoBio/goquery"
)

//go:embed prompt.md
var normalizePrompt string

var promptTmpl = template.Must(template.New("normalize").Parse(normalizePrompt))

// Pages longer than this are cut before they are sent to the model.
const maxPromptText = 12000

// Page is what could be scraped from a recipe page without any model.
type Page struct {
	SourceURL    string
	Title        string
	ImageURL     string
	Ingredients  []string
	Instructions []string
	Text         string
}

// Submitter sends a recipe to the review queue.
type Submitter interface {
	SubmitRecipe(ctx context.Context, sub api.RecipeSubmission) (*api.Recipe, error)
}

// UsageRecorder stores token usage of model calls.
type UsageRecorder interface {
	RecordUsage(operation string, usage llm.TokenUsage, latency time.Duration) error
}

// Importer fetches, cleans and submits recipes.
type Importer struct {
	httpClient *http.Client
	textGen    llm.TextGenerator
	usage      UsageRecorder
	submitter  Submitter
}

// New creates an Importer. textGen and usage may be nil, in which case
// scraped data is submitted as is.
func New(submitter Submitter, textGen llm.TextGenerator, usage UsageRecorder) *Importer {
	return &Importer{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		textGen:    textGen,
		usage:      usage,
		submitter:  submitter,
	}
}

// Import fetches url, tidies it and submits it for review.
func (im *Importer) Import(ctx context.Context, url string) (*api.Recipe, error) {
	sub, err := im.Preview(ctx, url)
	if err != nil {
		return nil, err
	}

	recipe, err := im.submitter.SubmitRecipe(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to submit recipe: %w", err)
	}
	return recipe, nil
}

// Preview builds the submission for url without sending it.
func (im *Importer) Preview(ctx context.Context, url string) (api.RecipeSubmission, error) {
	page, err := im.Fetch(ctx, url)
	if err != nil {
		return api.RecipeSubmission{}, fmt.Errorf("failed to fetch content: %w", err)
	}

	sub := api.RecipeSubmission{
		Title:        page.Title,
		ImageURL:     page.ImageURL,
		SourceURL:    page.SourceURL,
		Ingredients:  page.Ingredients,
		Instructions: page.Instructions,
	}

	if im.textGen != nil {
		normalized, err := im.normalize(ctx, page)
		if err != nil {
			log.Printf("Recipe normalization failed for %s, using scraped data: %v", url, err)
		} else {
			sub = merge(sub, normalized)
		}
	}

	if sub.Title == "" {
		return api.RecipeSubmission{}, fmt.Errorf("no recipe title found at %s", url)
	}
	return sub, nil
}

// Fetch downloads url and scrapes it.
func (im *Importer) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "dinner-planner-importer/1.0")

	resp, err := im.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}
	return Scrape(doc, url), nil
}

// Scrape reads the OpenGraph tags and ingredient lists of a parsed page.
func Scrape(doc *goquery.Document, sourceURL string) *Page {
	page := &Page{SourceURL: sourceURL}

	page.Title = meta(doc, "og:title")
	if page.Title == "" {
		page.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if page.Title == "" {
		page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	page.ImageURL = meta(doc, "og:image")

	// Remove noise to save LLM tokens
	doc.Find("script, style, nav, footer, iframe, header, form, .ads, #ads").Remove()

	page.Ingredients = listItems(doc, `[class*="ingredient"] li, li[class*="ingredient"]`)
	if len(page.Ingredients) == 0 {
		page.Ingredients = listItems(doc, "ul li")
	}
	page.Instructions = listItems(doc, `[class*="instruction"] li, [class*="direction"] li, ol li`)

	page.Text = collapse(doc.Find("body").Text())
	return page
}

func meta(doc *goquery.Document, property string) string {
	sel := doc.Find(fmt.Sprintf(`meta[property="%s"], meta[name="%s"]`, property, property)).First()
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}

func listItems(doc *goquery.Document, selector string) []string {
	var items []string
	seen := make(map[string]bool)
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		text := collapse(s.Text())
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		items = append(items, text)
	})
	return items
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type normalizedRecipe struct {
	Title        string   `json:"title"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	IsVegetarian bool     `json:"is_vegetarian"`
	Complexity   string   `json:"complexity"`
}

func (im *Importer) normalize(ctx context.Context, page *Page) (normalizedRecipe, error) {
	data := *page
	data.Text = truncate(data.Text, maxPromptText)

	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return normalizedRecipe{}, err
	}

	start := time.Now()
	resp, err := im.textGen.GenerateContent(ctx, buf.String())
	if err != nil {
		return normalizedRecipe{}, fmt.Errorf("ai extraction failed: %w", err)
	}
	if im.usage != nil {
		if err := im.usage.RecordUsage("import", resp.Usage, time.Since(start)); err != nil {
			log.Printf("Failed to record import usage: %v", err)
		}
	}

	var out normalizedRecipe
	if err := json.Unmarshal([]byte(resp.Content), &out); err != nil {
		return normalizedRecipe{}, fmt.Errorf("failed to parse AI response: %w", err)
	}
	return out, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func merge(sub api.RecipeSubmission, n normalizedRecipe) api.RecipeSubmission {
	if n.Title != "" {
		sub.Title = n.Title
	}
	if len(n.Ingredients) > 0 {
		sub.Ingredients = n.Ingredients
	}
	if len(n.Instructions) > 0 {
		sub.Instructions = n.Instructions
	}
	sub.IsVegetarian = n.IsVegetarian
	switch c := strings.ToLower(strings.TrimSpace(n.Complexity)); c {
	case "simple", "medium", "complex":
		sub.Complexity = c
	}
	return sub
}
