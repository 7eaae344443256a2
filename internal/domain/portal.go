package domain

import "fmt"

// Portal is the static metadata of one bids&tenders municipal portal.
type Portal struct {
	Kind       SourceKind
	BaseURL    string
	EntityName string
	City       string
	Location   string
}

// DetailURL returns the public page for a tender id.
func (p Portal) DetailURL(id string) string {
	return fmt.Sprintf("%s/Tender/Detail/%s", p.BaseURL, id)
}

// SearchPathFragment appears in the URL of the portal's internal search call.
const SearchPathFragment = "/Module/Tenders/en/Tender/Search/"

// Portals holds the built-in municipal portals keyed by source.
var Portals = map[SourceKind]Portal{
	SourceMississauga: {
		Kind:       SourceMississauga,
		BaseURL:    "https://mississauga.bidsandtenders.ca/Module/Tenders/en",
		EntityName: "City of Mississauga",
		City:       "Mississauga",
		Location:   "Mississauga, ON",
	},
	SourceBrampton: {
		Kind:       SourceBrampton,
		BaseURL:    "https://brampton.bidsandtenders.ca/Module/Tenders/en",
		EntityName: "City of Brampton",
		City:       "Brampton",
		Location:   "Brampton, ON",
	},
	SourceHamilton: {
		Kind:       SourceHamilton,
		BaseURL:    "https://hamilton.bidsandtenders.ca/Module/Tenders/en",
		EntityName: "City of Hamilton",
		City:       "Hamilton",
		Location:   "Hamilton, ON",
	},
	SourceLondon: {
		Kind:       SourceLondon,
		BaseURL:    "https://london.bidsandtenders.ca/Module/Tenders/en",
		EntityName: "City of London",
		City:       "London",
		Location:   "London, ON",
	},
}
