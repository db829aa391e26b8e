// Package billing owns the subscription plans, the payment webhook that
// renews them, and the sweeper that suspends shops whose subscription
// lapsed.
package billing

import (
	"encoding/json"
	"net/http"
	"time"
)

// Plan ids.
const (
	PlanTrial   = "trial"
	PlanStarter = "starter"
	PlanGrowth  = "growth"
)

// Plan is one subscription tier a shop can be on.
type Plan struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	PeriodDays int    `json:"period_days"`
}

// Period is how much subscription time one payment buys.
func (p Plan) Period() time.Duration {
	return time.Duration(p.PeriodDays) * 24 * time.Hour
}

var plans = []Plan{
	{ID: PlanTrial, Name: "Trial", PriceCents: 0, PeriodDays: 14},
	{ID: PlanStarter, Name: "Starter", PriceCents: 2900, PeriodDays: 30},
	{ID: PlanGrowth, Name: "Growth", PriceCents: 7900, PeriodDays: 30},
}

// Plans returns the catalog in display order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// PlanByID looks up a plan by its id.
func PlanByID(id string) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// PlansHandler serves the plan catalog for the dashboard billing page.
func PlansHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"plans": Plans()})
}
