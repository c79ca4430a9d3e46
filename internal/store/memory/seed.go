package memory

import (
	"github.com/shopspring/decimal"

	"proforma/internal/core"
)

// SeedDemo loads the same demo catalog and clients as the 00002 migration so
// that STORE=memory behaves like a freshly migrated database.
func SeedDemo(catalog *Catalog, clients *Clients, company string) {
	for _, a := range []core.Article{
		{ID: "CHAIR", Label: "Folding chair", UnitPrice: decimal.RequireFromString("2.50"), Kind: core.ArticleUnit},
		{ID: "TABLE", Label: "Trestle table 180cm", UnitPrice: decimal.RequireFromString("8.00"), Kind: core.ArticleUnit},
		{ID: "TENT", Label: "Marquee 6x12m", UnitPrice: decimal.RequireFromString("450.00"), Kind: core.ArticleDay},
		{ID: "STAGE", Label: "Modular stage 4x6m", UnitPrice: decimal.RequireFromString("300.00"), Kind: core.ArticleDay},
		{ID: "TECH", Label: "Sound technician", UnitPrice: decimal.RequireFromString("45.50"), Kind: core.ArticleHour},
	} {
		catalog.Add(company, a)
	}
	clients.Add(company, core.Client{Ref: "CL-01", Name: "Salle des fêtes de Saint-Jean", Address: "1 place de la Mairie"})
	clients.Add(company, core.Client{Ref: "CL-02", Name: "Association Les Amis du Port", Address: "14 quai des Pêcheurs"})
}
