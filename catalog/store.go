package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"slices"
)

//go:embed data/*.json
var embeddedData embed.FS

// Provider is the read-only lookup surface consumed by the generation pipeline.
// A miss is reported with ok=false and is never an error.
type Provider interface {
	AuthorByID(id string) (Author, bool)
	LanguageByCode(code string) (Language, bool)
	GeoByCountryCode(code string) (Geo, bool)
	PageBySlug(slug string) (PageContent, bool)
	Casinos() []Casino
}

// Store is an in-memory Provider. It is immutable after construction and safe
// for concurrent use.
type Store struct {
	authors   map[string]Author
	languages map[string]Language
	geos      map[string]Geo
	pages     map[string]PageContent
	casinos   []Casino
}

var _ Provider = (*Store)(nil)

// NewStore indexes the given tables. Later duplicates win.
func NewStore(authors []Author, languages []Language, geos []Geo, pages []PageContent, casinos []Casino) *Store {
	s := &Store{
		authors:   make(map[string]Author, len(authors)),
		languages: make(map[string]Language, len(languages)),
		geos:      make(map[string]Geo, len(geos)),
		pages:     make(map[string]PageContent, len(pages)),
		casinos:   slices.Clone(casinos),
	}
	for _, a := range authors {
		s.authors[a.ID] = a
	}
	for _, l := range languages {
		s.languages[l.Code] = l
	}
	for _, g := range geos {
		s.geos[g.CountryCode] = g
	}
	for _, p := range pages {
		s.pages[p.Slug] = p
	}
	return s
}

func (s *Store) AuthorByID(id string) (Author, bool) {
	a, ok := s.authors[id]
	return a, ok
}

func (s *Store) LanguageByCode(code string) (Language, bool) {
	l, ok := s.languages[code]
	return l, ok
}

func (s *Store) GeoByCountryCode(code string) (Geo, bool) {
	g, ok := s.geos[code]
	return g, ok
}

func (s *Store) PageBySlug(slug string) (PageContent, bool) {
	p, ok := s.pages[slug]
	return p, ok
}

// Casinos returns the catalog in rank order. The slice is a copy; the records
// must be treated as read-only.
func (s *Store) Casinos() []Casino {
	return slices.Clone(s.casinos)
}

type referenceFile struct {
	Languages []Language `json:"languages"`
	Geos      []struct {
		Country      string   `json:"country"`
		CountryCode  string   `json:"countryCode"`
		Regulations  []string `json:"regulations"`
		Currency     string   `json:"currency"`
		LanguageCode string   `json:"languageCode"`
	} `json:"geos"`
	Authors []Author `json:"authors"`
	// Pages reference author/language/geo by key; they are hydrated on load.
	Pages []PageContent `json:"pages"`
}

// Default loads the embedded mock dataset.
func Default() (*Store, error) {
	return Load(embeddedData)
}

// Load reads data/reference.json and data/casinos.json from fsys.
func Load(fsys fs.FS) (*Store, error) {
	var ref referenceFile
	if err := readJSON(fsys, "data/reference.json", &ref); err != nil {
		return nil, err
	}
	var casinos []Casino
	if err := readJSON(fsys, "data/casinos.json", &casinos); err != nil {
		return nil, err
	}
	slices.SortStableFunc(casinos, func(a, b Casino) int { return a.Rank - b.Rank })

	langs := make(map[string]Language, len(ref.Languages))
	for _, l := range ref.Languages {
		langs[l.Code] = l
	}
	geos := make([]Geo, 0, len(ref.Geos))
	for _, g := range ref.Geos {
		lang, ok := langs[g.LanguageCode]
		if !ok {
			return nil, fmt.Errorf("catalog: geo %s references unknown language %q", g.CountryCode, g.LanguageCode)
		}
		geos = append(geos, Geo{
			Country:     g.Country,
			CountryCode: g.CountryCode,
			Regulations: g.Regulations,
			Currency:    g.Currency,
			Language:    lang,
		})
	}

	s := NewStore(ref.Authors, ref.Languages, geos, nil, casinos)
	pages := make([]PageContent, 0, len(ref.Pages))
	for _, p := range ref.Pages {
		a, ok := s.AuthorByID(p.Author.ID)
		if !ok {
			return nil, fmt.Errorf("catalog: page %s references unknown author %q", p.Slug, p.Author.ID)
		}
		p.Author = a
		if l, ok := s.LanguageByCode(p.Language.Code); ok {
			p.Language = l
		}
		if g, ok := s.GeoByCountryCode(p.Geo.CountryCode); ok {
			p.Geo = g
		}
		pages = append(pages, p)
	}
	for _, p := range pages {
		s.pages[p.Slug] = p
	}
	return s, nil
}

func readJSON(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("catalog: decode %s: %w", name, err)
	}
	return nil
}
