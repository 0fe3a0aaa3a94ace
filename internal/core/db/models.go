package db

// Opinion is a published court opinion discovered on the source page.
//
// URL is the identity key: the seen set is a list of opinions but is queried
// as a set of URLs.
type Opinion struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	// DateFound is kept as ISO-8601 text so loading and saving a state file
	// never rewrites timestamps written by other tools.
	DateFound string `json:"date_found"`
}
