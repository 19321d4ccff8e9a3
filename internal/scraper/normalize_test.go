package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobhunt/internal/config"
	"jobmate/jobhunt/internal/logging"
	"jobmate/jobhunt/internal/model"
)

func TestTitleExcluded_DefaultProfile(t *testing.T) {
	t.Parallel()
	excluded := config.DefaultSearchProfile().ExcludedTitles

	cases := map[string]bool{
		"Psychiatrist - Outpatient":             false,
		"Child & Adolescent Psychiatrist":       false,
		"Inpatient Psychiatry Medical Director": false,
		"Psychiatric Nurse Practitioner":        true,
		"PSYCHIATRIC NURSE":                     true,
		"Licensed Clinical Social Worker":       true,
		"Mental Health Counselor":               true,
		"Clinical Psychologist":                 true,
		"":                                      false,
	}
	for title, want := range cases {
		assert.Equal(t, want, TitleExcluded(title, excluded), "TitleExcluded(%q)", title)
	}
}

func TestTitleExcluded_EmptyTermsIgnored(t *testing.T) {
	t.Parallel()
	assert.False(t, TitleExcluded("Psychiatrist", []string{""}))
	assert.False(t, TitleExcluded("Psychiatrist", nil))
}

func TestStripHTML(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"plain text  ": "plain text",
		"<p>Great <b>job</b></p><p>Apply now</p>":      "Great job\nApply now",
		"Line one<br>Line two":                         "Line one\nLine two",
		"Tom &amp; Jerry":                              "Tom & Jerry",
		"<ul><li>401k</li><li>CME</li></ul>":           "401k\nCME",
		"<div>Pay<script>alert(1)</script> well</div>": "Pay well",
		"": "",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripHTML(in), "StripHTML(%q)", in)
	}
}

func TestDeriveExternalID_Stable(t *testing.T) {
	t.Parallel()

	r := model.RawPosting{Title: "Psychiatrist", Company: "Acme", Location: "Durham, NC", URL: "https://x/1"}
	a := DeriveExternalID(r)
	assert.Len(t, a, 32)
	assert.Equal(t, a, DeriveExternalID(r))

	r.URL = "https://x/2"
	assert.NotEqual(t, a, DeriveExternalID(r))
}

func TestNormalize_FirstSightingWinsAndExclusions(t *testing.T) {
	t.Parallel()

	raws := []model.RawPosting{
		{ExternalID: "a", Title: "Psychiatrist", SearchLocation: "Madison, WI"},
		{ExternalID: "b", Title: "Psychiatric Nurse Practitioner"},
		{ExternalID: "a", Title: "Psychiatrist (repost)", SearchLocation: "Boulder, CO"},
		{Title: "  Staff Psychiatrist ", Company: "Acme", Description: "<p>Hi</p>"},
	}
	out, dropped, dupes := Normalize(raws, []string{"nurse"})

	require.Len(t, out, 2)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, dupes)

	assert.Equal(t, "a", out[0].ExternalID)
	assert.Equal(t, "Madison, WI", out[0].SearchLocation)

	assert.Equal(t, "Staff Psychiatrist", out[1].Title)
	assert.Equal(t, "Hi", out[1].Description)
	assert.Len(t, out[1].ExternalID, 32)
}

func TestNormalizer_PassesErrorsThrough(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	n := NewNormalizer(ProducerFunc(func(context.Context) ([]model.RawPosting, error) {
		return nil, boom
	}), nil, logging.Discard())

	_, err := n.Fetch(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	d := parseDate("2024-03-01T12:30:00Z")
	require.NotNil(t, d)
	assert.Equal(t, "2024-03-01", d.Format("2006-01-02"))

	assert.NotNil(t, parseDate("2024-03-01"))
	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("None"))
	assert.Nil(t, parseDate("yesterday at 5"))
}

func TestNew_SelectsProducer(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Producer: config.ProducerRemote, ScraperURL: "http://scraper:5001", Search: config.DefaultSearchProfile()}
	p, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	n, ok := p.(*Normalizer)
	require.True(t, ok)
	assert.IsType(t, &RemoteProducer{}, n.inner)

	cfg.Producer = config.ProducerAdzuna
	p, err = New(cfg, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &AdzunaFetcher{}, p.(*Normalizer).inner)

	cfg.Producer = "carrier-pigeon"
	_, err = New(cfg, logging.Discard())
	assert.Error(t, err)
}
