package models

// Page is one crawled URL together with the ids of the pages it links to.
//
// Crawled distinguishes "links recorded" from "not yet crawled": a page with
// Crawled set and no OutgoingLinks was crawled and has no recorded children.
type Page struct {
	ID            string   `bson:"_id,omitempty" json:"id"`
	URL           string   `bson:"url" json:"url"`
	NormalizedURL string   `bson:"normalized_url" json:"normalized_url"`
	OriginDepth   int      `bson:"origin_depth" json:"origin_depth"`
	Crawled       bool     `bson:"crawled" json:"crawled"`
	OutgoingLinks []string `bson:"outgoing_links" json:"outgoing_links"`
	FirstScraped  int64    `bson:"first_scraped" json:"first_scraped"`
	LastScraped   int64    `bson:"last_scraped" json:"last_scraped"`
}

// HasLinks reports whether the page is in the crawled state.
func (p *Page) HasLinks() bool {
	return p != nil && p.Crawled
}

// Result is a single descendant emitted by the cache reader.
type Result struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}
