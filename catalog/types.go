package catalog

// Language is a content locale.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Flag string `json:"flag,omitempty"`
}

// Geo is a target market with its regulatory framing.
type Geo struct {
	Country     string   `json:"country"`
	CountryCode string   `json:"countryCode"`
	Regulations []string `json:"regulations"`
	Currency    string   `json:"currency"`
	Language    Language `json:"language"`
}

type SocialLinks struct {
	LinkedIn string `json:"linkedin,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
}

// Author is the editorial owner of a page.
type Author struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Role        string      `json:"role"`
	Bio         string      `json:"bio"`
	Avatar      string      `json:"avatar,omitempty"`
	Credentials []string    `json:"credentials"`
	Experience  string      `json:"experience"`
	Specialties []string    `json:"specialties"`
	SocialLinks SocialLinks `json:"socialLinks"`
}

type Hero struct {
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description string `json:"description"`
}

type PageSection struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Order   int    `json:"order"`
}

type PageBody struct {
	Hero     Hero          `json:"hero"`
	Sections []PageSection `json:"sections"`
}

// PageContent describes the page that requests a generated section.
type PageContent struct {
	ID              string   `json:"id"`
	Slug            string   `json:"slug"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	MetaTitle       string   `json:"metaTitle,omitempty"`
	MetaDescription string   `json:"metaDescription,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	Author          Author   `json:"author"`
	PublishedAt     string   `json:"publishedAt,omitempty"`
	UpdatedAt       string   `json:"updatedAt,omitempty"`
	Language        Language `json:"language"`
	Geo             Geo      `json:"geo"`
	Content         PageBody `json:"content"`
}

// License is one gaming licence held by a casino.
type License struct {
	Authority string `json:"authority"`
	LicenseID string `json:"licenseId"`
	ValidFrom string `json:"validFrom"`
	ValidTo   string `json:"validTo,omitempty"`
}

type Audit struct {
	Provider  string `json:"provider"`
	LastAudit string `json:"lastAudit"`
}

type Trust struct {
	Rating           float64  `json:"rating"` // 0-5 stars
	Audits           []Audit  `json:"audits"`
	Ownership        string   `json:"ownership"`
	Established      string   `json:"established"`
	ComplaintRate90d float64  `json:"complaintRate90d"`
	RTPTransparency  string   `json:"rtpTransparency"`
	RGTools          []string `json:"rgTools"`
}

// BonusValue components are all optional; a cashback offer has no match percent.
type BonusValue struct {
	MatchPercent    *float64 `json:"matchPercent,omitempty"`
	MaxAmount       *float64 `json:"maxAmount,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	Spins           *int     `json:"spins,omitempty"`
	CashbackPercent *float64 `json:"cashbackPercent,omitempty"`
}

type Wagering struct {
	X             float64  `json:"x"`
	AppliesTo     string   `json:"appliesTo"`
	MaxBet        float64  `json:"maxBet"`
	ExcludedGames []string `json:"excludedGames"`
	ExpiryDays    int      `json:"expiryDays"`
}

type Bonus struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	Value      BonusValue `json:"value"`
	Wagering   Wagering   `json:"wagering"`
	MinDeposit float64    `json:"minDeposit"`
	BonusCode  string     `json:"bonusCode,omitempty"`
	VerifiedOn string     `json:"verifiedOn"`
}

// HourRange is an observed min/max payout window in hours.
type HourRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Fees struct {
	Deposits    string `json:"deposits"`
	Withdrawals string `json:"withdrawals"`
}

type Payments struct {
	DepositMethods      []string  `json:"depositMethods"`
	WithdrawalMethods   []string  `json:"withdrawalMethods"`
	MinDeposit          float64   `json:"minDeposit"`
	MinWithdrawal       float64   `json:"minWithdrawal"`
	MaxWithdrawalPerDay float64   `json:"maxWithdrawalPerDay"`
	PayoutSpeedHours    HourRange `json:"payoutSpeedHours"`
	SupportsInstant     bool      `json:"supportsInstant"`
	Fees                Fees      `json:"fees"`
	Currencies          []string  `json:"currencies"`
}

type Games struct {
	Total      int      `json:"total"`
	LiveDealer int      `json:"liveDealer"`
	Providers  []string `json:"providers"`
	TopTitles  []string `json:"topTitles"`
}

type Support struct {
	LiveChat  string   `json:"liveChat"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone,omitempty"`
	Languages []string `json:"languages"`
}

type Features struct {
	HasSportsbook  bool     `json:"hasSportsbook"`
	HasCasino      bool     `json:"hasCasino"`
	HasLiveCasino  bool     `json:"hasLiveCasino"`
	CryptoAccepted bool     `json:"cryptoAccepted"`
	MobileApps     []string `json:"mobileApps"`
}

// Metrics are 0-100 scores, one per ranking criterion.
type Metrics struct {
	TrustScore         float64 `json:"trustScore"`
	BonusScore         float64 `json:"bonusScore"`
	PayoutSpeedScore   float64 `json:"payoutSpeedScore"`
	GameSelectionScore float64 `json:"gameSelectionScore"`
	RisingStarScore    float64 `json:"risingStarScore"`
}

type ReviewAuthor struct {
	Name string `json:"name"`
}

type Review struct {
	OverallRating float64      `json:"overallRating"` // 0-10
	Summary       string       `json:"summary"`
	Pros          []string     `json:"pros"`
	Cons          []string     `json:"cons"`
	Verdict       string       `json:"verdict"`
	Author        ReviewAuthor `json:"author"`
	LastUpdated   string       `json:"lastUpdated"`
}

// Fact is a verified data point used as proof in generated copy.
type Fact struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	Unit       string `json:"unit,omitempty"`
	Period     string `json:"period,omitempty"`
	SourceNote string `json:"sourceNote,omitempty"`
	VerifiedOn string `json:"verifiedOn"`
}

type URLs struct {
	Homepage string `json:"homepage"`
	Review   string `json:"review"`
	Signup   string `json:"signup"`
}

type Availability struct {
	AllowedCountries    []string `json:"allowedCountries"`
	RestrictedCountries []string `json:"restrictedCountries"`
}

// Casino is a read-only catalog entity.
type Casino struct {
	ID       string       `json:"id"`
	Rank     int          `json:"rank"`
	Slug     string       `json:"slug"`
	Brand    string       `json:"brand"`
	URLs     URLs         `json:"urls"`
	Geo      Availability `json:"geo"`
	Licenses []License    `json:"licenses"`
	Trust    Trust        `json:"trust"`
	Bonuses  []Bonus      `json:"bonuses"`
	Payments Payments     `json:"payments"`
	Games    Games        `json:"games"`
	Support  Support      `json:"support"`
	Features Features     `json:"features"`
	Metrics  Metrics      `json:"metrics"`
	Review   Review       `json:"review"`
	Facts    []Fact       `json:"facts"`
}
