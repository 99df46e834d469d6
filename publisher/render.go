package publisher

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"top_criteria_generator/catalog"
	"top_criteria_generator/schema"
)

// Brands resolves winner ids to catalog entries for display.
type Brands map[string]catalog.Casino

// BrandsOf indexes casinos by id.
func BrandsOf(casinos []catalog.Casino) Brands {
	b := make(Brands, len(casinos))
	for _, c := range casinos {
		b[c.ID] = c
	}
	return b
}

var criterionLabels = map[schema.Criterion]string{
	schema.MostTrusted: "Most Trusted",
	schema.BestBonus:   "Best Bonus",
	schema.BestPayout:  "Best Payout",
	schema.RisingStar:  "Rising Star",
	schema.BestGames:   "Best Games",
	schema.FastPayout:  "Fast Payout",
}

// highlight caps match what the section shows on a card
const (
	maxTrustFactors = 3
	maxHighlights   = 2
)

// RenderMarkdown renders a validated snapshot as a Markdown section. Winner ids
// missing from brands are shown as-is.
func RenderMarkdown(snap *schema.Snapshot, brands Brands) string {
	var b strings.Builder
	h := snap.Header

	fmt.Fprintf(&b, "## %s\n\n", esc(h.Title))
	if h.Subtitle != "" {
		fmt.Fprintf(&b, "### %s\n\n", esc(h.Subtitle))
	}
	fmt.Fprintf(&b, "%s\n\n", esc(h.Description))
	if h.ShowUpdatedOn == nil || *h.ShowUpdatedOn {
		fmt.Fprintf(&b, "*Updated on %s*\n\n", formatDate(snap.UpdatedAt))
	}

	for i, it := range snap.Items {
		if it.Card == nil {
			continue
		}
		writeCard(&b, i+1, it.Card, brands)
	}

	writeByline(&b, snap)
	return b.String()
}

func writeCard(b *strings.Builder, n int, card schema.Card, brands Brands) {
	base := card.Common()
	fmt.Fprintf(b, "### %d. %s: %s\n\n", n, criterionLabels[card.Criterion()], esc(base.Title))
	if base.Subtitle != "" {
		fmt.Fprintf(b, "*%s*\n\n", esc(base.Subtitle))
	}
	if c, ok := brands[base.WinnerCasinoID]; ok {
		fmt.Fprintf(b, "**Winner:** %s (Rank #%d)\n\n", esc(c.Brand), c.Rank)
	} else {
		fmt.Fprintf(b, "**Winner:** %s\n\n", esc(base.WinnerCasinoID))
	}
	fmt.Fprintf(b, "%s\n\n", esc(base.ProofText))

	for _, s := range base.KeyStats {
		v := s.Value
		if s.Unit != "" {
			v += " " + s.Unit
		}
		fmt.Fprintf(b, "- **%s:** %s\n", esc(s.Label), esc(v))
	}
	b.WriteString("\n")

	switch c := card.(type) {
	case *schema.MostTrustedCard:
		fmt.Fprintf(b, "**Trust factors:** %s\n\n", joinEsc(head(c.TrustFactors, maxTrustFactors), " · "))
		if l := c.Licensing; l != nil {
			fmt.Fprintf(b, "Licensed by %s (%s)\n\n", esc(l.Authority), esc(l.LicenseID))
		}
	case *schema.BestBonusCard:
		writeHighlights(b, "Bonus highlights", c.BonusHighlights)
		if d := c.BonusDetail; d != nil {
			fmt.Fprintf(b, "%s bonus, %sx wagering\n\n", esc(d.BonusType), fnum(d.WageringMultiplier))
		}
	case *schema.BestPayoutCard:
		writeHighlights(b, "Payout highlights", c.PayoutHighlights)
		writePayout(b, c.PayoutDetail)
	case *schema.RisingStarCard:
		writeHighlights(b, "Growth factors", c.GrowthFactors)
	case *schema.BestGamesCard:
		writeHighlights(b, "Game highlights", c.GameHighlights)
		if g := c.GameLibrary; g != nil {
			fmt.Fprintf(b, "%d games, %d live tables, top providers: %s\n\n", deref(g.TotalGames), deref(g.LiveDealerGames), joinEsc(g.TopProviders, ", "))
		}
	case *schema.FastPayoutCard:
		writeHighlights(b, "Speed highlights", c.SpeedHighlights)
		writePayout(b, c.PayoutDetail)
	}

	fmt.Fprintf(b, "[%s](%s) | [Methodology](%s)\n\n", esc(base.ReviewLink.Label), dest(base.ReviewLink.URL), dest(base.MethodologyLink.URL))
}

func writeHighlights(b *strings.Builder, label string, items []string) {
	fmt.Fprintf(b, "**%s:**\n\n", label)
	for _, s := range head(items, maxHighlights) {
		fmt.Fprintf(b, "- %s\n", esc(s))
	}
	b.WriteString("\n")
}

func writePayout(b *strings.Builder, p *schema.PayoutDetail) {
	if p == nil {
		return
	}
	fmt.Fprintf(b, "Payouts in %s-%s hours via %s\n\n",
		fnum(p.MinHours),
		fnum(p.MaxHours),
		joinEsc(p.Methods, ", "))
}

func writeByline(b *strings.Builder, snap *schema.Snapshot) {
	a := snap.Authoring
	b.WriteString("---\n\n")
	fmt.Fprintf(b, "By **%s**, %s at %s\n\n", esc(a.Author.Name), esc(a.Author.Role), esc(a.Organization.Name))
	fmt.Fprintf(b, "%s\n\n", esc(a.Author.BioLine))
	if r := snap.EEAT.ReviewedBy; r != nil {
		fmt.Fprintf(b, "Fact-checked by %s, %s\n\n", esc(r.Name), esc(r.Role))
	}
	m := snap.EEAT.Methodology
	fmt.Fprintf(b, "[Methodology v%s](%s) | [Editorial policy](%s)\n\n", esc(m.Version), dest(m.HubURL), dest(m.EditorialPolicyURL))
	p := snap.EEAT.DataProvenance
	fmt.Fprintf(b, "Data cutoff %s, %s, %d observations.\n\n", p.DataCutoffDate, esc(p.CoveragePeriod), deref(p.SampleSize))
	fmt.Fprintf(b, "*%s*\n", esc(m.ConflictOfInterest))
}

// RenderOptions controls HTML output.
type RenderOptions struct {
	// Embed rewrites headings and lists into styled paragraphs for CMS
	// editors that strip structural tags on paste.
	Embed bool
}

// RenderHTML converts the Markdown rendering to HTML. Raw HTML in model text is
// never passed through.
func RenderHTML(snap *schema.Snapshot, brands Brands, opts RenderOptions) (string, error) {
	out, err := mdToHTML(RenderMarkdown(snap, brands))
	if err != nil {
		return "", err
	}
	if opts.Embed {
		out = normalizeForEmbed(out)
	}
	return out, nil
}

var md = goldmark.New(goldmark.WithExtensions(extension.Typographer))

func mdToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

var (
	olRe = regexp.MustCompile(`(?s)<ol[^>]*>(.*?)</ol>`)
	ulRe = regexp.MustCompile(`(?s)<ul[^>]*>(.*?)</ul>`)
	liRe = regexp.MustCompile(`(?s)<li[^>]*>(.*?)</li>`)
	hRe  = regexp.MustCompile(`(?s)<h([1-6])[^>]*>(.*?)</h[1-6]>`)
)

var headingSizes = map[string]string{"1": "24px", "2": "22px", "3": "20px", "4": "18px", "5": "16px", "6": "15px"}

func flattenLists(html string) string {
	html = olRe.ReplaceAllStringFunc(html, func(block string) string {
		items := liRe.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for i, item := range items {
			fmt.Fprintf(&b, "<p>%d. %s</p>", i+1, strings.TrimSpace(item[1]))
		}
		return b.String()
	})
	return ulRe.ReplaceAllStringFunc(html, func(block string) string {
		items := liRe.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for _, item := range items {
			fmt.Fprintf(&b, "<p>• %s</p>", strings.TrimSpace(item[1]))
		}
		return b.String()
	})
}

func convertHeadings(html string) string {
	return hRe.ReplaceAllStringFunc(html, func(block string) string {
		parts := hRe.FindStringSubmatch(block)
		if len(parts) != 3 {
			return block
		}
		size := headingSizes[parts[1]]
		return fmt.Sprintf(`<p style="font-size:%s;font-weight:700;margin:1em 0 0.6em;">%s</p>`, size, strings.TrimSpace(parts[2]))
	})
}

func normalizeForEmbed(html string) string {
	return flattenLists(convertHeadings(html))
}

var mdSpecial = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`",
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`, "#", `\#`, "|", `\|`,
)

// esc neutralises Markdown syntax in generated text.
func esc(s string) string { return mdSpecial.Replace(s) }

var destSpecial = strings.NewReplacer("<", `\<`, ">", `\>`, "\n", "", "\r", "")

// dest wraps a link destination in angle brackets so spaces and parentheses
// stay inside the URL.
func dest(u string) string { return "<" + destSpecial.Replace(u) + ">" }

func joinEsc(ss []string, sep string) string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = esc(s)
	}
	return strings.Join(out, sep)
}

func fnum(f *float64) string {
	if f == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func deref(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

func head(ss []string, n int) []string {
	if len(ss) > n {
		return ss[:n]
	}
	return ss
}

func formatDate(ts string) string {
	t, err := time.Parse(schema.TimestampLayout, ts)
	if err != nil {
		return ts
	}
	return t.UTC().Format("January 2, 2006 15:04 UTC")
}
