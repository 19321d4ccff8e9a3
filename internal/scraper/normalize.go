package scraper

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobmate/jobhunt/internal/model"
)

// Normalizer cleans up the batch of any producer before it reaches the
// pipeline: derived external ids, plain-text descriptions, excluded titles
// and in-batch duplicates (first sighting kept) are all handled here.
type Normalizer struct {
	inner    Producer
	excluded []string
	logger   *slog.Logger
}

var _ Producer = (*Normalizer)(nil)

// NewNormalizer wraps inner.
func NewNormalizer(inner Producer, excluded []string, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{inner: inner, excluded: excluded, logger: logger}
}

func (n *Normalizer) Fetch(ctx context.Context) ([]model.RawPosting, error) {
	raws, err := n.inner.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	out, dropped, dupes := Normalize(raws, n.excluded)
	n.logger.Info("scrape batch normalised",
		"received", len(raws), "kept", len(out), "excluded", dropped, "duplicates", dupes)
	return out, nil
}

// Normalize applies the producer-side cleanup to raws, preserving order.
func Normalize(raws []model.RawPosting, excluded []string) (out []model.RawPosting, dropped, dupes int) {
	out = make([]model.RawPosting, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))

	for _, r := range raws {
		r.Title = strings.TrimSpace(r.Title)
		r.Company = strings.TrimSpace(r.Company)
		r.Location = strings.TrimSpace(r.Location)
		r.Description = StripHTML(r.Description)
		if r.ExternalID == "" {
			r.ExternalID = DeriveExternalID(r)
		}

		if _, ok := seen[r.ExternalID]; ok {
			dupes++
			continue
		}
		if TitleExcluded(r.Title, excluded) {
			dropped++
			continue
		}
		seen[r.ExternalID] = struct{}{}
		out = append(out, r)
	}
	return out, dropped, dupes
}

// DeriveExternalID hashes the identifying fields of a posting whose source
// supplied no id of its own.
func DeriveExternalID(r model.RawPosting) string {
	sum := md5.Sum([]byte(r.Title + r.Company + r.Location + r.URL))
	return hex.EncodeToString(sum[:])
}

// StripHTML turns an HTML fragment into plain text, one line per block
// element. Text without markup is only trimmed.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, h1, h2, h3, h4, tr").AppendHtml("\n")

	lines := strings.Split(doc.Text(), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
