// Package feed defines the JSON document exchanged between the CSV ingest
// step, the object store and the dashboard services.
package feed

// UpdatedAtLayout is the layout of Document.UpdatedAt.
const UpdatedAtLayout = "02/01/2006 15:04"

// Document is the dashboard.json payload.
type Document struct {
	UpdatedAt string   `json:"updatedAt"`
	RAL       *Dataset `json:"RAL"`
	REC       *Dataset `json:"REC"`
}

// Dataset is one collection of the document. Items is a pointer so that a
// missing array can be told apart from an empty one.
type Dataset struct {
	Total    int            `json:"total"`
	Clusters map[string]int `json:"clusters,omitempty"`
	Cities   map[string]int `json:"cities,omitempty"`
	Items    *[]Item        `json:"items"`
}

// Item is one incident row as written by the exporter. Region travels under
// the historical "cidade" key and the type under "ralType".
type Item struct {
	Cluster     string `json:"cluster"`
	Cidade      string `json:"cidade,omitempty"`
	RalType     string `json:"ralType"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Num         string `json:"num,omitempty"`
}

// ItemList returns the items or nil when the array is absent.
func (d *Dataset) ItemList() []Item {
	if d == nil || d.Items == nil {
		return nil
	}
	return *d.Items
}
