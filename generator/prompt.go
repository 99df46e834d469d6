package generator

import (
	"fmt"
	"strconv"
	"strings"

	"top_criteria_generator/catalog"
	"top_criteria_generator/schema"
)

// DefaultEntityLimit caps how many casinos are rendered in full detail. It
// bounds prompt size, and casinos past the cap are not eligible to win.
const DefaultEntityLimit = 6

// SystemInstruction is sent with every generation request.
const SystemInstruction = "You are an expert iGaming analyst. Generate comprehensive casino criteria content based on the provided context. " +
	"Follow the schema exactly and ensure all required fields are populated with accurate, engaging content."

const na = "N/A"

// Prompt is the message pair sent to the model.
type Prompt struct {
	System string
	User   string
}

// Category describes how one criterion is judged.
type Category struct {
	Criterion schema.Criterion
	Label     string
	Rubric    string
	// Score ranks casinos for the criterion; higher wins.
	Score func(catalog.Casino) float64
}

// Categories lists the six categories in output order.
var Categories = []Category{
	{schema.MostTrusted, "Most Trusted", "trust score, licensing, audit history and 90-day complaint rate",
		func(c catalog.Casino) float64 { return c.Metrics.TrustScore }},
	{schema.BestBonus, "Best Bonus", "bonus score, bonus value and wagering terms",
		func(c catalog.Casino) float64 { return c.Metrics.BonusScore }},
	{schema.BestPayout, "Best Payout", "payout score, withdrawal limits, fees and overall payout reliability",
		func(c catalog.Casino) float64 { return c.Metrics.PayoutSpeedScore }},
	{schema.RisingStar, "Rising Star", "rising star score, recent establishment and momentum",
		func(c catalog.Casino) float64 { return c.Metrics.RisingStarScore }},
	{schema.BestGames, "Best Game Selection", "game selection score, library size, providers and live dealer depth",
		func(c catalog.Casino) float64 { return c.Metrics.GameSelectionScore }},
	{schema.FastPayout, "Fast Payout", "shortest maximum payout window in hours, then instant withdrawal support",
		func(c catalog.Casino) float64 { return -c.Payments.PayoutSpeedHours.Max }},
}

// PromptBuilder renders a GenerationContext into the user prompt. It is pure:
// equal contexts produce byte-identical prompts.
type PromptBuilder struct {
	// EntityLimit overrides DefaultEntityLimit when positive.
	EntityLimit int
	// Constraints are the schema bounds restated in prose.
	Constraints []string
}

// NewPromptBuilder returns a builder using the registry's constraint digest.
func NewPromptBuilder(limit int, reg *schema.Registry) PromptBuilder {
	return PromptBuilder{EntityLimit: limit, Constraints: reg.Constraints()}
}

// BuildPrompt renders gc with the default entity limit.
func BuildPrompt(gc GenerationContext) string {
	return PromptBuilder{Constraints: schema.Constraints()}.Build(gc)
}

func (b PromptBuilder) limit() int {
	if b.EntityLimit > 0 {
		return b.EntityLimit
	}
	return DefaultEntityLimit
}

// Eligible returns the casinos rendered in full detail.
func (b PromptBuilder) Eligible(casinos []catalog.Casino) []catalog.Casino {
	if len(casinos) > b.limit() {
		return casinos[:b.limit()]
	}
	return casinos
}

// Prompt pairs the built user prompt with SystemInstruction.
func (b PromptBuilder) Prompt(gc GenerationContext) Prompt {
	return Prompt{System: SystemInstruction, User: b.Build(gc)}
}

func (b PromptBuilder) Build(gc GenerationContext) string {
	var sb strings.Builder
	eligible := b.Eligible(gc.Casinos)

	sb.WriteString("# iGaming Affiliate Content Generation Task\n\n")
	sb.WriteString("## Context Overview\n")
	sb.WriteString("You are generating structured content for an affiliate website. Analyze the casino data below and produce a \"Top Casinos by Ranking Criteria\" section.\n\n")

	sb.WriteString("## Page Information\n")
	line(&sb, "Page Type", gc.Page.Slug)
	line(&sb, "Title", gc.Page.Title)
	line(&sb, "Description", gc.Page.Description)
	line(&sb, "Focus Criteria", gc.Criteria)
	line(&sb, "Language", fmt.Sprintf("%s (%s)", orNA(gc.Language.Name), orNA(gc.Language.Code)))
	line(&sb, "Target Geography", fmt.Sprintf("%s (%s)", orNA(gc.Geo.Country), orNA(gc.Geo.CountryCode)))
	line(&sb, "Currency", gc.Geo.Currency)
	sb.WriteString("\n")

	sb.WriteString("## Author Information\n")
	line(&sb, "Name", gc.Author.Name)
	line(&sb, "Role", gc.Author.Role)
	line(&sb, "Experience", gc.Author.Experience)
	line(&sb, "Credentials", list(gc.Author.Credentials))
	line(&sb, "Specialties", list(gc.Author.Specialties))
	line(&sb, "Bio", gc.Author.Bio)
	sb.WriteString("\n")

	sb.WriteString("## Regulatory Context\n")
	line(&sb, "Jurisdiction", gc.Geo.Country)
	line(&sb, "Regulations", list(gc.Geo.Regulations))
	fmt.Fprintf(&sb, "- **Compliance Requirements**: Must adhere to %s gaming regulations\n\n", orNA(gc.Geo.Country))

	sb.WriteString("## Casino Data\n")
	fmt.Fprintf(&sb, "%d casinos were supplied. Only the first %d in ranking order are detailed below (entity limit %d); only these casinos are eligible to win.\n",
		len(gc.Casinos), len(eligible), b.limit())
	ids := make([]string, len(eligible))
	for i, c := range eligible {
		ids[i] = c.ID
	}
	fmt.Fprintf(&sb, "Eligible casino IDs: %s\n", list(ids))
	for i, c := range eligible {
		writeCasino(&sb, i+1, c)
	}
	sb.WriteString("\n")

	sb.WriteString("## Task Requirements\n")
	fmt.Fprintf(&sb, "Select winners for exactly %d categories:\n", len(Categories))
	for i, cat := range Categories {
		fmt.Fprintf(&sb, "%d. **%s** (`%s`) - based on %s\n", i+1, cat.Label, cat.Criterion, cat.Rubric)
	}
	sb.WriteString("\n")

	sb.WriteString("## Selection Methodology\n")
	sb.WriteString("- Use ONLY the casino data above; do not invent figures, licences or offers.\n")
	sb.WriteString("- Rank each category by its metric. When scores are tied or within 1 point, prefer the higher category score, then the higher trust score, then the lower rank number.\n")
	sb.WriteString("- Prefer a different winner for each category; repeat a casino only when no eligible alternative exists.\n")
	sb.WriteString("- Every winnerCasinoId must be one of the eligible casino IDs.\n")
	sb.WriteString("- Justify each winner with specific data points from its record.\n")
	fmt.Fprintf(&sb, "- Consider %s regulations and player preferences.\n", orNA(gc.Geo.Country))
	fmt.Fprintf(&sb, "- Factor in the page focus on %q when relevant.\n\n", gc.Criteria)

	sb.WriteString("## Content Guidelines\n")
	fmt.Fprintf(&sb, "- Write in %s.\n", orNA(gc.Language.Name))
	fmt.Fprintf(&sb, "- Use %s for monetary values.\n", orNA(gc.Geo.Currency))
	fmt.Fprintf(&sb, "- Reference %s's expertise in the attribution.\n", orNA(gc.Author.Name))
	sb.WriteString("- Keep a professional, trustworthy tone and cite concrete numbers as evidence.\n\n")

	sb.WriteString("## Output Format\n")
	sb.WriteString("Return one JSON object matching the supplied schema. Every bound below is enforced and a violation rejects the whole result:\n")
	for _, c := range b.Constraints {
		fmt.Fprintf(&sb, "- %s\n", c)
	}
	sb.WriteString("\nGenerate the analysis now.\n")
	return sb.String()
}

func writeCasino(sb *strings.Builder, n int, c catalog.Casino) {
	fmt.Fprintf(sb, "\n### %d. %s (ID: %s)\n", n, orNA(c.Brand), orNA(c.ID))
	field(sb, "Rank", strconv.Itoa(c.Rank))
	field(sb, "Slug", c.Slug)
	field(sb, "URLs", fmt.Sprintf("homepage %s; review %s; signup %s", orNA(c.URLs.Homepage), orNA(c.URLs.Review), orNA(c.URLs.Signup)))
	field(sb, "Allowed Countries", list(c.Geo.AllowedCountries))
	field(sb, "Restricted Countries", list(c.Geo.RestrictedCountries))

	licenses := make([]string, len(c.Licenses))
	for i, l := range c.Licenses {
		licenses[i] = fmt.Sprintf("%s %s (valid %s to %s)", orNA(l.Authority), orNA(l.LicenseID), orNA(l.ValidFrom), orNA(l.ValidTo))
	}
	field(sb, "Licenses", list(licenses))

	audits := make([]string, len(c.Trust.Audits))
	for i, a := range c.Trust.Audits {
		audits[i] = fmt.Sprintf("%s (last %s)", orNA(a.Provider), orNA(a.LastAudit))
	}
	field(sb, "Trust", fmt.Sprintf("rating %s/5; audits %s; ownership %s; established %s; complaint rate (90d) %s%%; RTP transparency %s",
		num(c.Trust.Rating), list(audits), orNA(c.Trust.Ownership), orNA(c.Trust.Established),
		num(c.Trust.ComplaintRate90d), orNA(c.Trust.RTPTransparency)))
	field(sb, "Responsible Gaming Tools", list(c.Trust.RGTools))

	if len(c.Bonuses) == 0 {
		field(sb, "Bonuses", na)
	}
	for _, bonus := range c.Bonuses {
		v := bonus.Value
		field(sb, "Bonus", fmt.Sprintf("%s [%s]; match %s%%; max %s %s; spins %s; cashback %s%%; wagering %sx on %s, max bet %s, excluded %s, expires in %d days; min deposit %s; code %s; verified %s",
			orNA(bonus.Title), orNA(bonus.Type), optNum(v.MatchPercent), optNum(v.MaxAmount), orNA(v.Currency),
			optInt(v.Spins), optNum(v.CashbackPercent), num(bonus.Wagering.X), orNA(bonus.Wagering.AppliesTo),
			num(bonus.Wagering.MaxBet), list(bonus.Wagering.ExcludedGames), bonus.Wagering.ExpiryDays,
			num(bonus.MinDeposit), orNA(bonus.BonusCode), orNA(bonus.VerifiedOn)))
	}

	p := c.Payments
	field(sb, "Payments", fmt.Sprintf("deposit %s; withdrawal %s; min deposit %s; min withdrawal %s; max withdrawal/day %s; payout %s-%sh; instant %s; fees deposits %s, withdrawals %s; currencies %s",
		list(p.DepositMethods), list(p.WithdrawalMethods), num(p.MinDeposit), num(p.MinWithdrawal),
		num(p.MaxWithdrawalPerDay), num(p.PayoutSpeedHours.Min), num(p.PayoutSpeedHours.Max),
		yesNo(p.SupportsInstant), orNA(p.Fees.Deposits), orNA(p.Fees.Withdrawals), list(p.Currencies)))
	field(sb, "Games", fmt.Sprintf("%d total; %d live dealer; providers %s; top titles %s",
		c.Games.Total, c.Games.LiveDealer, list(c.Games.Providers), list(c.Games.TopTitles)))
	field(sb, "Support", fmt.Sprintf("live chat %s; email %s; phone %s; languages %s",
		orNA(c.Support.LiveChat), orNA(c.Support.Email), orNA(c.Support.Phone), list(c.Support.Languages)))
	field(sb, "Features", fmt.Sprintf("sportsbook %s; casino %s; live casino %s; crypto %s; mobile apps %s",
		yesNo(c.Features.HasSportsbook), yesNo(c.Features.HasCasino), yesNo(c.Features.HasLiveCasino),
		yesNo(c.Features.CryptoAccepted), list(c.Features.MobileApps)))
	m := c.Metrics
	field(sb, "Scores", fmt.Sprintf("trust %s/100; bonus %s/100; payout speed %s/100; game selection %s/100; rising star %s/100",
		num(m.TrustScore), num(m.BonusScore), num(m.PayoutSpeedScore), num(m.GameSelectionScore), num(m.RisingStarScore)))
	r := c.Review
	field(sb, "Review", fmt.Sprintf("%s/10 by %s (updated %s): %s Pros: %s. Cons: %s. Verdict: %s",
		num(r.OverallRating), orNA(r.Author.Name), orNA(r.LastUpdated), orNA(r.Summary),
		list(r.Pros), list(r.Cons), orNA(r.Verdict)))

	if len(c.Facts) == 0 {
		field(sb, "Facts", na)
	}
	for _, f := range c.Facts {
		field(sb, "Fact", fmt.Sprintf("%s = %s %s (period %s; source %s; verified %s)",
			orNA(f.Key), orNA(f.Value), orNA(f.Unit), orNA(f.Period), orNA(f.SourceNote), orNA(f.VerifiedOn)))
	}
}

func line(sb *strings.Builder, label, value string) {
	fmt.Fprintf(sb, "- **%s**: %s\n", label, orNA(value))
}

func field(sb *strings.Builder, label, value string) {
	fmt.Fprintf(sb, "   - %s: %s\n", label, orNA(value))
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return na
	}
	return s
}

func list(ss []string) string {
	if len(ss) == 0 {
		return na
	}
	return strings.Join(ss, ", ")
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func optNum(f *float64) string {
	if f == nil {
		return na
	}
	return num(*f)
}

func optInt(n *int) string {
	if n == nil {
		return na
	}
	return strconv.Itoa(*n)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
