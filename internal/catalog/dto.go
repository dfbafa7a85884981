package catalog

type CatalogResponse struct {
	Resources []*Resource `json:"resources"`
	Actions   []*Action   `json:"actions"`
}
