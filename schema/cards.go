package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Criterion discriminates the six card variants.
type Criterion string

const (
	MostTrusted Criterion = "most_trusted"
	BestBonus   Criterion = "best_bonus"
	BestPayout  Criterion = "best_payout"
	RisingStar  Criterion = "rising_star"
	BestGames   Criterion = "best_games"
	FastPayout  Criterion = "fast_payout"
)

// Criteria lists every criterion in display order.
var Criteria = []Criterion{MostTrusted, BestBonus, BestPayout, RisingStar, BestGames, FastPayout}

// Valid reports whether c is one of the known criteria.
func (c Criterion) Valid() bool {
	_, ok := variants[c]
	return ok
}

// CardBase is the spine shared by every card variant.
type CardBase struct {
	WinnerCasinoID  string     `json:"winnerCasinoId" validate:"required" desc:"ID of the winning casino"`
	Title           string     `json:"title" validate:"required,min=8,max=60" desc:"Card title"`
	Subtitle        string     `json:"subtitle,omitempty" validate:"omitempty,min=8,max=80" desc:"Optional subtitle"`
	ProofText       string     `json:"proofText" validate:"required,min=40,max=200" desc:"Evidence-based explanation of why this casino won"`
	KeyStats        []StatPair `json:"keyStats" validate:"required,min=2,max=4,dive" desc:"Key metrics backing the win"`
	MethodologyLink Link       `json:"methodologyLink" desc:"Link to the methodology page for this criterion"`
	ReviewLink      Link       `json:"reviewLink" desc:"Link to the full casino review"`
}

// Card is one of the six criterion variants. The set is closed.
type Card interface {
	Criterion() Criterion
	Common() *CardBase
	isCard()
}

// LicensingDetail backs a most_trusted win.
type LicensingDetail struct {
	Authority        string   `json:"authority" validate:"required,oneof=MGA UKGC Gibraltar Curacao IsleOfMan Kahnawake" desc:"Licensing authority"`
	LicenseID        string   `json:"licenseId" validate:"required,min=2,max=40" desc:"Licence identifier"`
	ComplaintRate90d *float64 `json:"complaintRate90d,omitempty" validate:"omitempty,min=0,max=100" desc:"Percent of tracked interactions resulting in a complaint over 90 days"`
	AuditProvider    string   `json:"auditProvider,omitempty" validate:"omitempty,min=2,max=40" desc:"Most recent independent auditor"`
}

// BonusDetail backs a best_bonus win.
type BonusDetail struct {
	BonusType          string   `json:"bonusType" validate:"required,oneof=WELCOME NO_DEPOSIT FREE_SPINS CASHBACK" desc:"Bonus type"`
	MatchPercent       *float64 `json:"matchPercent,omitempty" validate:"omitempty,min=0,max=1000" desc:"Deposit match percent"`
	MaxAmount          *float64 `json:"maxAmount,omitempty" validate:"omitempty,min=0" desc:"Maximum bonus amount"`
	FreeSpins          *int     `json:"freeSpins,omitempty" validate:"omitempty,min=0" desc:"Number of free spins"`
	WageringMultiplier *float64 `json:"wageringMultiplier" validate:"required,min=0,max=100" desc:"Wagering requirement multiplier, e.g. 35 for 35x"`
	ExpiryDays         *int     `json:"expiryDays,omitempty" validate:"omitempty,min=1,max=365" desc:"Days to meet wagering"`
}

// PayoutDetail backs best_payout and fast_payout wins.
type PayoutDetail struct {
	MinHours        *float64 `json:"minHours" validate:"required,min=0" desc:"Fastest observed payout in hours"`
	MaxHours        *float64 `json:"maxHours" validate:"required,min=0" desc:"Slowest typical payout in hours"`
	Methods         []string `json:"methods" validate:"required,min=1,max=6,dive,min=2,max=40" desc:"Withdrawal methods behind the speed"`
	SupportsInstant *bool    `json:"supportsInstant" validate:"required" desc:"Whether instant withdrawals are offered"`
}

// Momentum backs a rising_star win.
type Momentum struct {
	RisingStarScore *float64 `json:"risingStarScore" validate:"required,min=0,max=100" desc:"Rising star score from the supplied metrics"`
	Established     string   `json:"established,omitempty" validate:"omitempty,datetime=2006-01-02" desc:"Establishment date (YYYY-MM-DD)"`
}

// GameLibrary backs a best_games win.
type GameLibrary struct {
	TotalGames      *int     `json:"totalGames" validate:"required,min=1" desc:"Total number of games"`
	LiveDealerGames *int     `json:"liveDealerGames" validate:"required,min=0" desc:"Number of live dealer tables"`
	TopProviders    []string `json:"topProviders" validate:"required,min=1,max=6,dive,min=2,max=40" desc:"Leading game providers"`
}

type MostTrustedCard struct {
	CardBase
	TrustFactors []string         `json:"trustFactors" validate:"required,min=2,max=5,dive,min=5,max=80" desc:"Trust indicators"`
	Licensing    *LicensingDetail `json:"licensing,omitempty" desc:"Licensing detail of the winner"`
}

type BestBonusCard struct {
	CardBase
	BonusHighlights []string     `json:"bonusHighlights" validate:"required,min=2,max=4,dive,min=5,max=80" desc:"Key bonus features"`
	BonusDetail     *BonusDetail `json:"bonusDetail,omitempty" desc:"Value and wagering detail of the winning bonus"`
}

type BestPayoutCard struct {
	CardBase
	PayoutHighlights []string      `json:"payoutHighlights" validate:"required,min=2,max=4,dive,min=5,max=80" desc:"Payout advantages"`
	PayoutDetail     *PayoutDetail `json:"payoutDetail,omitempty" desc:"Payout speed and method detail"`
}

type RisingStarCard struct {
	CardBase
	GrowthFactors []string  `json:"growthFactors" validate:"required,min=2,max=4,dive,min=5,max=80" desc:"Growth indicators"`
	Momentum      *Momentum `json:"momentum,omitempty" desc:"Momentum detail"`
}

type BestGamesCard struct {
	CardBase
	GameHighlights []string     `json:"gameHighlights" validate:"required,min=2,max=4,dive,min=5,max=80" desc:"Game selection advantages"`
	GameLibrary    *GameLibrary `json:"gameLibrary,omitempty" desc:"Game library detail"`
}

type FastPayoutCard struct {
	CardBase
	SpeedHighlights []string      `json:"speedHighlights" validate:"required,min=2,max=4,dive,min=5,max=80" desc:"Speed advantages"`
	PayoutDetail    *PayoutDetail `json:"payoutDetail,omitempty" desc:"Payout speed and method detail"`
}

func (*MostTrustedCard) Criterion() Criterion { return MostTrusted }
func (*BestBonusCard) Criterion() Criterion   { return BestBonus }
func (*BestPayoutCard) Criterion() Criterion  { return BestPayout }
func (*RisingStarCard) Criterion() Criterion  { return RisingStar }
func (*BestGamesCard) Criterion() Criterion   { return BestGames }
func (*FastPayoutCard) Criterion() Criterion  { return FastPayout }

func (c *MostTrustedCard) Common() *CardBase { return &c.CardBase }
func (c *BestBonusCard) Common() *CardBase   { return &c.CardBase }
func (c *BestPayoutCard) Common() *CardBase  { return &c.CardBase }
func (c *RisingStarCard) Common() *CardBase  { return &c.CardBase }
func (c *BestGamesCard) Common() *CardBase   { return &c.CardBase }
func (c *FastPayoutCard) Common() *CardBase  { return &c.CardBase }

func (*MostTrustedCard) isCard() {}
func (*BestBonusCard) isCard()   {}
func (*BestPayoutCard) isCard()  {}
func (*RisingStarCard) isCard()  {}
func (*BestGamesCard) isCard()   {}
func (*FastPayoutCard) isCard()  {}

// variants maps each discriminator to a constructor of its concrete card.
var variants = map[Criterion]func() Card{
	MostTrusted: func() Card { return &MostTrustedCard{} },
	BestBonus:   func() Card { return &BestBonusCard{} },
	BestPayout:  func() Card { return &BestPayoutCard{} },
	RisingStar:  func() Card { return &RisingStarCard{} },
	BestGames:   func() Card { return &BestGamesCard{} },
	FastPayout:  func() Card { return &FastPayoutCard{} },
}

// NewCard returns an empty card for c, or false for an unknown criterion.
func NewCard(c Criterion) (Card, bool) {
	mk, ok := variants[c]
	if !ok {
		return nil, false
	}
	return mk(), true
}

// Item is the wire form of a card: the variant fields plus a "criterion" key.
type Item struct {
	Card Card
}

// UnknownCriterionError is returned when an item's discriminator does not name
// a known variant. Missing is set when the key is absent altogether.
type UnknownCriterionError struct {
	Value   string
	Missing bool
}

func (e *UnknownCriterionError) Error() string {
	if e.Missing {
		return "criterion is required"
	}
	return fmt.Sprintf("unknown criterion %q", e.Value)
}

func (it Item) MarshalJSON() ([]byte, error) {
	if it.Card == nil {
		return []byte("null"), nil
	}
	body, err := json.Marshal(it.Card)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"criterion":`)
	buf.WriteString(strconv.Quote(string(it.Card.Criterion())))
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

func (it *Item) UnmarshalJSON(data []byte) error {
	c, present, err := peekCriterion(data)
	if err != nil {
		return err
	}
	if !present {
		return &UnknownCriterionError{Missing: true}
	}
	card, ok := NewCard(c)
	if !ok {
		return &UnknownCriterionError{Value: string(c)}
	}
	if err := decodeStrict(data, card); err != nil {
		return err
	}
	it.Card = card
	return nil
}

func peekCriterion(data []byte) (c Criterion, present bool, err error) {
	var head struct {
		Criterion *string `json:"criterion"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", false, err
	}
	if head.Criterion == nil {
		return "", false, nil
	}
	return Criterion(*head.Criterion), true, nil
}

// decodeStrict decodes one JSON value into v, rejecting keys v does not declare.
// The "criterion" key is consumed by the Item wrapper and tolerated here.
func decodeStrict(data []byte, v Card) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	delete(fields, "criterion")
	stripped, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(stripped))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
