package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"top_criteria_generator/catalog"
	"top_criteria_generator/schema"
)

// MockLLM delegates to Fn and counts calls. A nil Fn yields an empty response.
type MockLLM struct {
	Fn    func(ctx context.Context, req Request) (Response, error)
	calls atomic.Int64
}

func (m *MockLLM) Provider() string { return "mock" }

func (m *MockLLM) Complete(ctx context.Context, req Request) (Response, error) {
	m.calls.Add(1)
	if m.Fn == nil {
		return Response{}, &ModelInvocationError{Kind: KindEmptyResponse, Provider: "mock", Err: errors.New("mock: no responder")}
	}
	return m.Fn(ctx, req)
}

// Calls reports how many times Complete ran.
func (m *MockLLM) Calls() int64 { return m.calls.Load() }

// MockSiteURL is the base of every link the scoreboard writes.
const MockSiteURL = "https://topcasinos.example"

// ScoreboardLLM answers without calling a model. It picks winners from the
// request's subject by the category scores, applying the documented
// tie-breaks and preferring unique winners, and returns a schema-valid
// snapshot. Useful for local runs and end-to-end tests.
type ScoreboardLLM struct {
	now func() time.Time
}

// NewScoreboardLLM returns a scoreboard using now as its clock; nil means
// time.Now.
func NewScoreboardLLM(now func() time.Time) *ScoreboardLLM {
	if now == nil {
		now = time.Now
	}
	return &ScoreboardLLM{now: now}
}

func (s *ScoreboardLLM) Provider() string { return "mock" }

func (s *ScoreboardLLM) Complete(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		kind, _ := classifyContext(err)
		return Response{}, &ModelInvocationError{Kind: kind, Provider: "mock", Err: err}
	}
	gc := req.Subject
	if len(gc.Casinos) == 0 {
		return Response{}, &ModelInvocationError{Kind: KindEmptyResponse, Provider: "mock", Err: errors.New("mock: no casinos to rank")}
	}
	snap := s.snapshot(gc, PickWinners(gc.Casinos))
	raw, err := json.Marshal(snap)
	if err != nil {
		return Response{}, &ModelInvocationError{Kind: KindSchemaDecode, Provider: "mock", Err: err}
	}
	return Response{
		Raw:         raw,
		TotalTokens: int64(len(req.System)+len(req.Prompt)+len(raw)) / 4,
		Model:       "scoreboard",
	}, nil
}

// pickOrder assigns the narrowest categories first so the broad ones can
// fall back to the remaining casinos.
var pickOrder = []schema.Criterion{
	schema.MostTrusted, schema.FastPayout, schema.BestBonus,
	schema.BestPayout, schema.RisingStar, schema.BestGames,
}

// PickWinners ranks casinos per category by score, then trust score, then
// rank, and prefers a casino that has not already won.
func PickWinners(casinos []catalog.Casino) map[schema.Criterion]catalog.Casino {
	cats := make(map[schema.Criterion]Category, len(Categories))
	for _, c := range Categories {
		cats[c.Criterion] = c
	}
	used := map[string]bool{}
	out := make(map[schema.Criterion]catalog.Casino, len(Categories))
	for _, crit := range pickOrder {
		score := cats[crit].Score
		ranked := slices.Clone(casinos)
		slices.SortStableFunc(ranked, func(a, b catalog.Casino) int {
			switch {
			case score(a) != score(b):
				return cmpDesc(score(a), score(b))
			case a.Metrics.TrustScore != b.Metrics.TrustScore:
				return cmpDesc(a.Metrics.TrustScore, b.Metrics.TrustScore)
			default:
				return a.Rank - b.Rank
			}
		})
		winner := ranked[0]
		for _, c := range ranked {
			if !used[c.ID] {
				winner = c
				break
			}
		}
		used[winner.ID] = true
		out[crit] = winner
	}
	return out
}

func cmpDesc(a, b float64) int {
	if a > b {
		return -1
	}
	return 1
}

func (s *ScoreboardLLM) snapshot(gc GenerationContext, winners map[schema.Criterion]catalog.Casino) *schema.Snapshot {
	now := s.now().UTC()
	ts := now.Format(schema.TimestampLayout)
	org := schema.Organization{Name: "Top Casino Guide", URL: MockSiteURL}
	author := mockPerson(gc.Author)

	snap := &schema.Snapshot{
		UpdatedAt: ts,
		Header: schema.SectionHeader{
			Title: "Top Casinos by Ranking Criteria",
			Description: clip(fmt.Sprintf("Winners in six categories are selected from verified data on %d casinos for players in %s.",
				len(gc.Casinos), orNA(gc.Geo.Country)), 240),
		},
		Authoring: schema.Authoring{Author: author, Organization: org},
		EEAT: schema.EEAT{
			Organization: org,
			Author:       author,
			ReviewProcess: schema.ReviewProcess{
				ReviewedAt:     ts,
				ProcessSummary: "Each ranking is recalculated from the casino data and checked by an editor.",
			},
			Methodology: schema.Methodology{
				HubURL:             MockSiteURL + "/methodology",
				Version:            "1.0.0",
				UpdatedAt:          ts,
				EditorialPolicyURL: MockSiteURL + "/editorial-policy",
				ConflictOfInterest: "We may earn a commission from casinos listed on this page.",
			},
			DataProvenance: schema.DataProvenance{
				DataCutoffDate: now.Format(schema.DateLayout),
				CoveragePeriod: now.Format("Jan 2006"),
				SampleSize:     intPtr(len(gc.Casinos)),
				SourceTypes:    []string{schema.SourceFirstPartyLogs, schema.SourceManualVerification},
				Sources:        []schema.Source{},
			},
			TrustSignals: schema.TrustSignals{
				AuditBadges:          []string{},
				ComplaintsWindowDays: intPtr(90),
			},
			Locale:            "en",
			JurisdictionFocus: []string{},
		},
		ChangeLog: []schema.ChangeLogEntry{{
			At:          ts,
			Reason:      "Scheduled ranking refresh",
			DiffSummary: fmt.Sprintf("Winners recalculated for %d criteria from %d casinos.", len(schema.Criteria), len(gc.Casinos)),
		}},
	}
	if t := strings.TrimSpace(gc.Page.Title); runeLen(t) >= 8 {
		snap.Header.Subtitle = clip(t, 80)
	}
	if code := gc.Language.Code; len(code) >= 2 && len(code) <= 10 {
		snap.EEAT.Locale = code
	}
	if cc := gc.Geo.CountryCode; len(cc) == 2 {
		snap.EEAT.JurisdictionFocus = []string{cc}
	}

	seen := map[string]bool{}
	for _, crit := range schema.Criteria {
		c := winners[crit]
		snap.Items = append(snap.Items, schema.Item{Card: mockCard(crit, c, len(gc.Casinos))})
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		snap.EEAT.DataProvenance.Sources = append(snap.EEAT.DataProvenance.Sources,
			schema.Source{Label: clip(orNA(c.Brand)+" review", 80), URL: reviewURL(c)})
		for _, a := range c.Trust.Audits {
			badge := clip(a.Provider, 20)
			if runeLen(badge) >= 2 && len(snap.EEAT.TrustSignals.AuditBadges) < 5 && !slices.Contains(snap.EEAT.TrustSignals.AuditBadges, badge) {
				snap.EEAT.TrustSignals.AuditBadges = append(snap.EEAT.TrustSignals.AuditBadges, badge)
			}
		}
	}
	return snap
}

func mockPerson(a catalog.Author) schema.Person {
	p := schema.Person{
		Name:       clip(a.Name, 60),
		Role:       clip(a.Role, 60),
		BioLine:    clip(a.Bio, 160),
		ProfileURL: MockSiteURL + "/authors/" + url.PathEscape(a.ID),
	}
	if runeLen(p.Name) < 2 {
		p.Name = "Editorial Team"
	}
	if runeLen(p.Role) < 2 {
		p.Role = "Casino Analyst"
	}
	if runeLen(p.BioLine) < 16 {
		p.BioLine = p.Name + " reviews online casinos."
	}
	if a.ID == "" {
		p.ProfileURL = MockSiteURL + "/authors/team"
	}
	for _, c := range a.Credentials {
		if c = clip(c, 80); runeLen(c) >= 2 && len(p.Credentials) < 5 {
			p.Credentials = append(p.Credentials, c)
		}
	}
	if len(p.Credentials) == 0 {
		p.Credentials = []string{"Independent casino reviewer"}
	}
	if a.Avatar != "" {
		src := a.Avatar
		if strings.HasPrefix(src, "/") {
			src = MockSiteURL + src
		}
		if isAbsURL(src) {
			p.Image = &schema.Image{URL: src, Alt: clip("Portrait of "+p.Name, 120)}
		}
	}
	return p
}

var licenceAuthorities = []string{"MGA", "UKGC", "Gibraltar", "Curacao", "IsleOfMan", "Kahnawake"}

var bonusTypes = []string{"WELCOME", "NO_DEPOSIT", "FREE_SPINS", "CASHBACK"}

func mockCard(crit schema.Criterion, c catalog.Casino, total int) schema.Card {
	m := c.Metrics
	hours := c.Payments.PayoutSpeedHours
	base := schema.CardBase{
		WinnerCasinoID: c.ID,
		MethodologyLink: schema.Link{
			URL:   MockSiteURL + "/methodology#" + string(crit),
			Label: "How we score",
		},
		ReviewLink: schema.Link{URL: reviewURL(c), Label: "Read the review"},
	}
	brand := clip(orNA(c.Brand), 40)
	proof := func(what string) string {
		return clip(fmt.Sprintf("%s wins with %s, the strongest result among %d eligible casinos.", brand, what, total), 200)
	}
	stat := func(label, value, unit string) schema.StatPair {
		return schema.StatPair{Label: label, Value: clip(value, 20), Unit: unit}
	}

	switch crit {
	case schema.MostTrusted:
		base.Title = "Most Trusted Casino"
		base.ProofText = proof(fmt.Sprintf("a trust score of %s/100", num(m.TrustScore)))
		base.KeyStats = []schema.StatPair{
			stat("Trust Score", num(m.TrustScore), "/100"),
			stat("Complaint Rate", num(c.Trust.ComplaintRate90d), "%"),
		}
		card := &schema.MostTrustedCard{CardBase: base, TrustFactors: []string{
			fmt.Sprintf("Trust score %s/100", num(m.TrustScore)),
			fmt.Sprintf("Complaint rate %s%% over 90 days", num(c.Trust.ComplaintRate90d)),
		}}
		for _, l := range c.Licenses {
			if !slices.Contains(licenceAuthorities, l.Authority) || runeLen(l.LicenseID) < 2 {
				continue
			}
			card.TrustFactors = append(card.TrustFactors, clip("Licensed by "+l.Authority, 80))
			card.Licensing = &schema.LicensingDetail{
				Authority:        l.Authority,
				LicenseID:        clip(l.LicenseID, 40),
				ComplaintRate90d: floatPtr(clamp(c.Trust.ComplaintRate90d, 0, 100)),
			}
			if len(c.Trust.Audits) > 0 {
				if p := clip(c.Trust.Audits[0].Provider, 40); runeLen(p) >= 2 {
					card.Licensing.AuditProvider = p
				}
			}
			break
		}
		return card

	case schema.BestBonus:
		base.Title = "Best Casino Bonus"
		base.ProofText = proof(fmt.Sprintf("a bonus score of %s/100", num(m.BonusScore)))
		base.KeyStats = []schema.StatPair{stat("Bonus Score", num(m.BonusScore), "/100")}
		card := &schema.BestBonusCard{BonusHighlights: []string{fmt.Sprintf("Bonus score %s/100", num(m.BonusScore))}}
		if len(c.Bonuses) > 0 {
			b := c.Bonuses[0]
			base.KeyStats = append(base.KeyStats, stat("Wagering", num(b.Wagering.X)+"x", ""))
			card.BonusHighlights = append(card.BonusHighlights, clip(fmt.Sprintf("Wagering %sx on %s", num(b.Wagering.X), orNA(b.Wagering.AppliesTo)), 80))
			if t := clip(b.Title, 80); runeLen(t) >= 5 {
				card.BonusHighlights = append(card.BonusHighlights, t)
			}
			card.BonusDetail = mockBonusDetail(b)
		} else {
			base.KeyStats = append(base.KeyStats, stat("Bonus Offers", "0", ""))
			card.BonusHighlights = append(card.BonusHighlights, "No active bonus offers")
		}
		card.CardBase = base
		return card

	case schema.BestPayout:
		base.Title = "Best Overall Payouts"
		base.ProofText = proof(fmt.Sprintf("a payout score of %s/100", num(m.PayoutSpeedScore)))
		base.KeyStats = []schema.StatPair{
			stat("Payout Score", num(m.PayoutSpeedScore), "/100"),
			stat("Payout Window", num(hours.Min)+"-"+num(hours.Max), "hours"),
		}
		return &schema.BestPayoutCard{CardBase: base, PayoutHighlights: []string{
			fmt.Sprintf("Payout score %s/100", num(m.PayoutSpeedScore)),
			clip(fmt.Sprintf("Withdrawal fees: %s", orNA(c.Payments.Fees.Withdrawals)), 80),
		}, PayoutDetail: mockPayoutDetail(c.Payments)}

	case schema.RisingStar:
		base.Title = "Rising Star Casino"
		base.ProofText = proof(fmt.Sprintf("a rising star score of %s/100", num(m.RisingStarScore)))
		base.KeyStats = []schema.StatPair{
			stat("Rising Star", num(m.RisingStarScore), "/100"),
			stat("Established", orNA(c.Trust.Established), ""),
		}
		card := &schema.RisingStarCard{CardBase: base, GrowthFactors: []string{
			fmt.Sprintf("Rising star score %s/100", num(m.RisingStarScore)),
			clip("Established "+orNA(c.Trust.Established), 80),
		}, Momentum: &schema.Momentum{RisingStarScore: floatPtr(clamp(m.RisingStarScore, 0, 100))}}
		if _, err := time.Parse(schema.DateLayout, c.Trust.Established); err == nil {
			card.Momentum.Established = c.Trust.Established
		}
		return card

	case schema.BestGames:
		base.Title = "Best Game Selection"
		base.ProofText = proof(fmt.Sprintf("a game selection score of %s/100", num(m.GameSelectionScore)))
		base.KeyStats = []schema.StatPair{
			stat("Games", fmt.Sprint(c.Games.Total), ""),
			stat("Selection Score", num(m.GameSelectionScore), "/100"),
		}
		card := &schema.BestGamesCard{CardBase: base, GameHighlights: []string{
			fmt.Sprintf("%d games in the library", c.Games.Total),
			fmt.Sprintf("%d live dealer tables", c.Games.LiveDealer),
		}}
		if providers := clipAll(c.Games.Providers, 6, 40); c.Games.Total >= 1 && len(providers) > 0 {
			card.GameLibrary = &schema.GameLibrary{
				TotalGames:      intPtr(c.Games.Total),
				LiveDealerGames: intPtr(max(c.Games.LiveDealer, 0)),
				TopProviders:    providers,
			}
		}
		return card

	default:
		base.Title = "Fastest Payout Casino"
		base.ProofText = proof(fmt.Sprintf("payouts in %s-%s hours", num(hours.Min), num(hours.Max)))
		base.KeyStats = []schema.StatPair{
			stat("Fastest Payout", num(hours.Min), "hours"),
			stat("Slowest Payout", num(hours.Max), "hours"),
		}
		instant := fmt.Sprintf("Most requests paid within %s hours", num(hours.Max))
		if c.Payments.SupportsInstant {
			instant = "Instant withdrawals supported"
		}
		return &schema.FastPayoutCard{CardBase: base, SpeedHighlights: []string{
			fmt.Sprintf("Payouts from %s hours", num(hours.Min)),
			instant,
		}, PayoutDetail: mockPayoutDetail(c.Payments)}
	}
}

func mockBonusDetail(b catalog.Bonus) *schema.BonusDetail {
	if !slices.Contains(bonusTypes, b.Type) || b.Wagering.X < 0 || b.Wagering.X > 100 {
		return nil
	}
	d := &schema.BonusDetail{
		BonusType:          b.Type,
		MaxAmount:          b.Value.MaxAmount,
		FreeSpins:          b.Value.Spins,
		WageringMultiplier: floatPtr(b.Wagering.X),
	}
	if mp := b.Value.MatchPercent; mp != nil && *mp >= 0 && *mp <= 1000 {
		d.MatchPercent = mp
	}
	if e := b.Wagering.ExpiryDays; e >= 1 && e <= 365 {
		d.ExpiryDays = intPtr(e)
	}
	return d
}

func mockPayoutDetail(p catalog.Payments) *schema.PayoutDetail {
	methods := clipAll(p.WithdrawalMethods, 6, 40)
	if len(methods) == 0 || p.PayoutSpeedHours.Min < 0 || p.PayoutSpeedHours.Max < 0 {
		return nil
	}
	return &schema.PayoutDetail{
		MinHours:        floatPtr(p.PayoutSpeedHours.Min),
		MaxHours:        floatPtr(p.PayoutSpeedHours.Max),
		Methods:         methods,
		SupportsInstant: &p.SupportsInstant,
	}
}

func reviewURL(c catalog.Casino) string {
	if isAbsURL(c.URLs.Review) {
		return c.URLs.Review
	}
	return MockSiteURL + "/reviews/" + url.PathEscape(c.Slug)
}

func isAbsURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// clip truncates s to n bytes on a rune boundary.
func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return strings.TrimSpace(s[:cut])
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func clipAll(ss []string, limit, n int) []string {
	var out []string
	for _, s := range ss {
		if s = clip(s, n); runeLen(s) >= 2 && len(out) < limit {
			out = append(out, s)
		}
	}
	return out
}

func clamp(f, lo, hi float64) float64 {
	return min(max(f, lo), hi)
}

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }
