// Package schema defines the structural contract of a generated "top by
// criteria" snapshot: the typed envelope, the six criterion card variants,
// their bounds, a validator and JSON Schema export for constrained decoding.
//
// Bounds live in `validate` struct tags. The same tags drive post-hoc
// validation, the JSON Schema handed to the model, and the constraint digest
// rendered into the prompt.
package schema

import "time"

// Date layouts accepted by datetime fields.
const (
	TimestampLayout = time.RFC3339
	DateLayout      = "2006-01-02"
)

// Image is an avatar or logo reference.
type Image struct {
	URL string `json:"url" validate:"required,url" desc:"Absolute URL to an image (avatar, organisation logo)"`
	Alt string `json:"alt" validate:"required,min=4,max=120" desc:"Accessible alt text describing the content"`
}

// Link points to an external page such as a methodology hub or a review.
type Link struct {
	URL          string `json:"url" validate:"required,url" desc:"Absolute URL to the external resource"`
	Label        string `json:"label" validate:"required,min=2,max=60" desc:"Link text"`
	OpenInNewTab *bool  `json:"openInNewTab,omitempty" default:"true" desc:"Whether to open in a new tab"`
}

// StatPair is one label/value/unit triple shown on a card.
type StatPair struct {
	Label string `json:"label" validate:"required,min=2,max=40" desc:"Stat label, e.g. 'Avg Payout Time'"`
	Value string `json:"value" validate:"required,min=1,max=20" desc:"Stat value, e.g. '2.1 hours'"`
	Unit  string `json:"unit,omitempty" validate:"omitempty,max=10" desc:"Optional unit, e.g. 'hours' or '%'"`
}

// SectionHeader is shown above the card grid.
type SectionHeader struct {
	Title         string `json:"title" validate:"required,min=8,max=60" desc:"Section title, e.g. 'Top Casinos by Ranking Criteria'"`
	Subtitle      string `json:"subtitle,omitempty" validate:"omitempty,min=8,max=80" desc:"Optional line framing the section"`
	Description   string `json:"description" validate:"required,min=40,max=240" desc:"1-3 short sentences explaining how winners are chosen"`
	ShowUpdatedOn *bool  `json:"showUpdatedOn,omitempty" default:"true" desc:"Surface updatedAt as 'Updated on {date}'"`
}

// Person is an author, co-author or reviewer attribution.
type Person struct {
	Name        string   `json:"name" validate:"required,min=2,max=60" desc:"Full name as displayed on site"`
	Role        string   `json:"role" validate:"required,min=2,max=60" desc:"Job title or role"`
	Credentials []string `json:"credentials" validate:"required,min=1,max=5,dive,min=2,max=80" desc:"Short credential items"`
	BioLine     string   `json:"bioLine" validate:"required,min=16,max=160" desc:"One-line bio emphasising experience"`
	ProfileURL  string   `json:"profileUrl" validate:"required,url" desc:"Public author profile URL"`
	Image       *Image   `json:"image,omitempty"`
}

// Organization is the publishing entity.
type Organization struct {
	Name string `json:"name" validate:"required,min=2,max=80" desc:"Publisher or brand name"`
	URL  string `json:"url" validate:"required,url" desc:"Organisation website URL"`
	Logo *Image `json:"logo,omitempty"`
}

// Authoring is the byline of the section.
type Authoring struct {
	Author       Person       `json:"author" desc:"Primary author"`
	Organization Organization `json:"organization" desc:"Publishing organisation shown in the byline"`
	CoAuthors    []Person     `json:"coAuthors,omitempty" validate:"omitempty,max=4,dive" desc:"Optional co-authors"`
}

type ReviewProcess struct {
	ReviewedAt     string `json:"reviewedAt,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00" desc:"Timestamp of the most recent editorial review"`
	ProcessSummary string `json:"processSummary" validate:"required,min=24,max=240" desc:"How content is reviewed"`
}

type Methodology struct {
	HubURL             string `json:"methodologyHubUrl" validate:"required,url" desc:"Landing URL explaining all criteria and scoring"`
	Version            string `json:"methodologyVersion" validate:"required,min=1,max=20" desc:"Semantic version of the methodology, e.g. '1.3.0'"`
	UpdatedAt          string `json:"methodologyUpdatedAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00" desc:"When the methodology last changed"`
	EditorialPolicyURL string `json:"editorialPolicyUrl" validate:"required,url" desc:"Public editorial policy page"`
	ConflictOfInterest string `json:"conflictOfInterest" validate:"required,min=12,max=240" desc:"Disclosure of affiliate relationships"`
}

// Source kinds accepted in dataProvenance.sourceTypes.
const (
	SourceFirstPartyLogs     = "first_party_logs"
	SourceManualVerification = "manual_verification"
	SourcePublicLicensing    = "public_licensing"
	SourceAuditorReports     = "auditor_reports"
)

type Source struct {
	Label string `json:"label" validate:"required,min=3,max=80" desc:"Short source label, e.g. 'eCOGRA audit (May 2025)'"`
	URL   string `json:"url" validate:"required,url" desc:"Public URL of the source"`
}

type DataProvenance struct {
	DataCutoffDate string   `json:"dataCutoffDate" validate:"required,datetime=2006-01-02" desc:"Latest date of included data (YYYY-MM-DD)"`
	CoveragePeriod string   `json:"coveragePeriod" validate:"required,min=4,max=40" desc:"Human-readable period, e.g. 'Jun-Aug 2025'"`
	SampleSize     *int     `json:"sampleSize" validate:"required,gt=0" desc:"Total observations powering the metrics"`
	SourceTypes    []string `json:"sourceTypes" validate:"required,min=1,max=4,dive,oneof=first_party_logs manual_verification public_licensing auditor_reports" desc:"Kinds of sources used"`
	Sources        []Source `json:"sources" validate:"required,max=12,dive" desc:"Citable public sources backing the claims"`
}

type TrustSignals struct {
	AuditBadges          []string `json:"auditBadges" validate:"required,max=5,dive,min=2,max=20" desc:"Short badges like 'eCOGRA' or 'GLI'"`
	ADRProvider          string   `json:"adrProvider,omitempty" validate:"omitempty,min=2,max=40" desc:"Alternative dispute resolution provider"`
	ComplaintsWindowDays *int     `json:"complaintsWindowDays,omitempty" validate:"omitempty,gt=0" desc:"Days covered by the complaints metric"`
}

// EEAT is the trust and transparency metadata of the section.
type EEAT struct {
	Organization      Organization   `json:"organization" desc:"Publishing entity"`
	Author            Person         `json:"author" desc:"Primary author responsible for the ranking text"`
	ReviewedBy        *Person        `json:"reviewedBy,omitempty" desc:"Independent fact-check reviewer"`
	ReviewProcess     ReviewProcess  `json:"reviewProcess" desc:"Editorial review workflow"`
	Methodology       Methodology    `json:"methodology"`
	DataProvenance    DataProvenance `json:"dataProvenance"`
	TrustSignals      TrustSignals   `json:"trustSignals"`
	Locale            string         `json:"locale,omitempty" validate:"omitempty,min=2,max=10" default:"en" desc:"BCP-47 locale used for labels"`
	JurisdictionFocus []string       `json:"jurisdictionFocus" validate:"required,max=12,dive,len=2" desc:"ISO-3166-1 alpha-2 country codes"`
}

type ChangeLogEntry struct {
	At          string `json:"at" validate:"required,datetime=2006-01-02T15:04:05Z07:00" desc:"Timestamp of the change"`
	Reason      string `json:"reason" validate:"required,min=8,max=160" desc:"Human-readable reason"`
	DiffSummary string `json:"diffSummary" validate:"required,min=8,max=240" desc:"What changed (winners, tie-breakers, scores)"`
}

// Snapshot is the validated envelope returned to callers.
type Snapshot struct {
	UpdatedAt string           `json:"updatedAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00" desc:"When winners and content were computed"`
	Header    SectionHeader    `json:"header" desc:"Header block for the section"`
	Authoring Authoring        `json:"authoring" desc:"Attribution for the section"`
	EEAT      EEAT             `json:"eeat" desc:"Trust and transparency metadata"`
	Items     []Item           `json:"items" validate:"-" desc:"Exactly six cards, one per criterion"`
	ChangeLog []ChangeLogEntry `json:"changeLog,omitempty" validate:"omitempty,max=20,dive" desc:"Chronological list of recent changes"`
}

// Card returns the item for criterion c, if present.
func (s *Snapshot) Card(c Criterion) (Card, bool) {
	for _, it := range s.Items {
		if it.Card != nil && it.Card.Criterion() == c {
			return it.Card, true
		}
	}
	return nil, false
}

// ApplyDefaults fills declared defaults for omitted optional flags.
func (s *Snapshot) ApplyDefaults() {
	if s.Header.ShowUpdatedOn == nil {
		s.Header.ShowUpdatedOn = boolPtr(true)
	}
	if s.EEAT.Locale == "" {
		s.EEAT.Locale = "en"
	}
	for _, it := range s.Items {
		if it.Card == nil {
			continue
		}
		b := it.Card.Common()
		if b.MethodologyLink.OpenInNewTab == nil {
			b.MethodologyLink.OpenInNewTab = boolPtr(true)
		}
		if b.ReviewLink.OpenInNewTab == nil {
			b.ReviewLink.OpenInNewTab = boolPtr(true)
		}
	}
}

func boolPtr(b bool) *bool { return &b }
