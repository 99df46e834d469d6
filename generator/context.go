package generator

import "top_criteria_generator/catalog"

// ResolveContext fills author, language and geo from the provider, keeping the
// copies embedded in page when a lookup misses. A miss is never an error.
func ResolveContext(p catalog.Provider, page catalog.PageContent, casinos []catalog.Casino, criteria string) GenerationContext {
	gc := GenerationContext{
		Page:     page,
		Casinos:  casinos,
		Author:   page.Author,
		Language: page.Language,
		Geo:      page.Geo,
		Criteria: criteria,
	}
	if p == nil {
		return gc
	}
	if a, ok := p.AuthorByID(page.Author.ID); ok {
		gc.Author = a
	}
	if l, ok := p.LanguageByCode(page.Language.Code); ok {
		gc.Language = l
	}
	if g, ok := p.GeoByCountryCode(page.Geo.CountryCode); ok {
		gc.Geo = g
	}
	return gc
}
