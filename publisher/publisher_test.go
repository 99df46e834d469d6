package publisher

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"top_criteria_generator/catalog"
	"top_criteria_generator/schema"
)

func fixture(t *testing.T) *schema.Snapshot {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "schema", "testdata", "snapshot.json"))
	require.NoError(t, err)
	snap, err := schema.NewRegistry().Validate(raw)
	require.NoError(t, err)
	return snap
}

func brands(t *testing.T) Brands {
	t.Helper()
	store, err := catalog.Default()
	require.NoError(t, err)
	return BrandsOf(store.Casinos())
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown(fixture(t), brands(t))

	assert.True(t, strings.HasPrefix(out, "## Top Casinos by Ranking Criteria\n"))
	assert.Contains(t, out, "*Updated on ")
	assert.Contains(t, out, "### 1. Most Trusted: Most Trusted Casino")
	assert.Contains(t, out, "### 6. Fast Payout: Fastest Payout Casino")
	assert.Contains(t, out, "**Winner:** VikingFortune (Rank #3)")
	assert.Contains(t, out, "**Winner:** SolarisBet (Rank #6)")
	assert.Contains(t, out, "**Trust factors:** MGA licence since 2016 · Quarterly eCOGRA audits")
	assert.Contains(t, out, "- 100% match up to 500\n")
	assert.Contains(t, out, "By **Sarah Mitchell**, Senior iGaming Analyst at Top Casino Guide")
	assert.Contains(t, out, "Methodology v1.3.0")
}

func TestRenderMarkdownUnknownWinnerAndHiddenDate(t *testing.T) {
	snap := fixture(t)
	snap.Items[0].Card.Common().WinnerCasinoID = "ghost_casino"
	hide := false
	snap.Header.ShowUpdatedOn = &hide

	out := RenderMarkdown(snap, nil)
	assert.Contains(t, out, `**Winner:** ghost\_casino`)
	assert.NotContains(t, out, "Updated on")
}

func TestRenderMarkdownCapsHighlights(t *testing.T) {
	snap := fixture(t)
	card := snap.Items[1].Card.(*schema.BestBonusCard)
	card.BonusHighlights = []string{"first highlight", "second highlight", "third highlight"}

	out := RenderMarkdown(snap, nil)
	assert.Contains(t, out, "- second highlight\n")
	assert.NotContains(t, out, "third highlight")
}

func TestRenderHTMLEscapesGeneratedText(t *testing.T) {
	snap := fixture(t)
	snap.Header.Description = "<script>alert(1)</script> winners are chosen from verified data"

	out, err := RenderHTML(snap, brands(t), RenderOptions{})
	require.NoError(t, err)
	assert.Contains(t, out, "<h2>Top Casinos by Ranking Criteria</h2>")
	assert.Contains(t, out, "<strong>Winner:</strong> VikingFortune")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestRenderLinksKeepAwkwardURLs(t *testing.T) {
	snap := fixture(t)
	link := &snap.Items[0].Card.Common().ReviewLink
	link.URL = "https://example.com/reviews/viking (2025) fortune"
	link.Label = "Read review"

	md := RenderMarkdown(snap, brands(t))
	assert.Contains(t, md, "[Read review](<https://example.com/reviews/viking (2025) fortune>)")

	out, err := RenderHTML(snap, brands(t), RenderOptions{})
	require.NoError(t, err)
	assert.Contains(t, out, `href="https://example.com/reviews/viking%20(2025)%20fortune"`)
	assert.Contains(t, out, ">Read review</a>")
}

func TestRenderHTMLEmbed(t *testing.T) {
	out, err := RenderHTML(fixture(t), brands(t), RenderOptions{Embed: true})
	require.NoError(t, err)
	assert.NotContains(t, out, "<h2>")
	assert.NotContains(t, out, "<ul>")
	assert.Contains(t, out, `font-size:22px`)
	assert.Contains(t, out, "<p>• ")
}

func TestPublishWritesArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	p := New(brands(t), nil, RenderOptions{}, nil)

	snap := fixture(t)
	arts, err := p.Publish(context.Background(), snap, dir)
	require.NoError(t, err)

	raw, err := os.ReadFile(arts.JSON)
	require.NoError(t, err)
	again, err := schema.NewRegistry().Validate(raw)
	require.NoError(t, err, "published JSON must validate")
	assert.Equal(t, snap.UpdatedAt, again.UpdatedAt)

	html, err := os.ReadFile(arts.HTML)
	require.NoError(t, err)
	assert.Contains(t, string(html), "VikingFortune")

	mdBytes, err := os.ReadFile(arts.Markdown)
	require.NoError(t, err)
	assert.Equal(t, RenderMarkdown(snap, brands(t)), string(mdBytes))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temp files left behind")
}

func TestPublishRejectsInvalidSnapshot(t *testing.T) {
	snap := fixture(t)
	snap.Items = snap.Items[:5]
	dir := t.TempDir()

	_, err := New(nil, nil, RenderOptions{}, nil).Publish(context.Background(), snap, dir)
	require.Error(t, err)
	var ve schema.ValidationErrors
	assert.ErrorAs(t, err, &ve)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPublishHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil, nil, RenderOptions{}, nil).Publish(ctx, fixture(t), t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublishedJSONKeepsDiscriminator(t *testing.T) {
	arts, err := New(nil, nil, RenderOptions{}, nil).Publish(context.Background(), fixture(t), t.TempDir())
	require.NoError(t, err)

	raw, err := os.ReadFile(arts.JSON)
	require.NoError(t, err)
	var doc struct {
		Items []struct {
			Criterion string `json:"criterion"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc.Items, 6)
	for i, c := range schema.Criteria {
		assert.Equal(t, string(c), doc.Items[i].Criterion)
	}
}
