// internal/workers/collateral/verify-collateral/generator.go
package verifycollateral

import (
	"fmt"
	"math/rand"

	"creditflow-workers/internal/models"
)

var customerSegments = []string{"Retail", "SME", "Corporate"}

// GenerateSyntheticLoans builds a demo batch of loan requests with collateral
// hints. Deterministic under a fixed seed.
func GenerateSyntheticLoans(nLoans int, collateralRatio float64, seed int64) []models.Application {
	if nLoans <= 0 {
		nLoans = 80
	}
	if collateralRatio <= 0 || collateralRatio > 1 {
		collateralRatio = 0.8
	}
	rng := rand.New(rand.NewSource(seed))

	apps := make([]models.Application, 0, nLoans)
	for i := 0; i < nLoans; i++ {
		hasCollateral := rng.Float64() < collateralRatio
		amount := float64(20000 + rng.Intn(330000))
		income := float64(30000 + rng.Intn(150000))

		app := models.Application{
			ApplicationID:   fmt.Sprintf("APP-%d", 1000+i),
			RequestedAmount: amount,
			Income:          income,
			CustomerSegment: customerSegments[rng.Intn(len(customerSegments))],
			HasCollateral:   hasCollateral,
		}
		if hasCollateral {
			app.DeclaredCollateral = round2(amount * uniform(rng, 0.9, 1.6))
			app.AssetTypeHint = assetTypes[rng.Intn(len(assetTypes))]
		}
		apps = append(apps, app)
	}
	return apps
}
