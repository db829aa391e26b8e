package orders

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tajirhq/tajir-ai-platform/internal/catalog"
	"github.com/tajirhq/tajir-ai-platform/internal/intent"
)

// Confirmation keywords the AI reply must contain before we treat the turn
// as an actual purchase confirmation. A customer merely saying "order" is
// not enough; the agent has to have acknowledged one.
var confirmationKeywords = []string{
	"processing",
	"order",
	"confirmed",
	"completed",
	"successfully",
}

var (
	quantityPattern = regexp.MustCompile(`(\d+)\s*(?:units?|items?|pieces?|pcs)\b`)
	namePattern     = regexp.MustCompile(`(?i)(?:my name is|name is|i'm|i am)\s+([a-zA-Z\x{0600}-\x{06FF}]+(?:\s+[a-zA-Z\x{0600}-\x{06FF}]+)?)`)
	contactPattern  = regexp.MustCompile(`(?i)(?:phone|number|contact)(?:\s+is)?[:\s]+(\+?\(?\d[\d\s()-]{4,20})`)
)

// ExtractionInput is everything the heuristic looks at for one turn.
type ExtractionInput struct {
	Intent             intent.Result
	AIReply            string
	RecentCustomerText string
	Products           []catalog.Product
	StoredCustomerName string
	ExternalCustomerID string
}

// Draft is a fully-resolved order proposal. It has not been persisted and
// no stock has been touched yet.
type Draft struct {
	Product         catalog.Product
	Quantity        int
	CustomerName    string
	CustomerContact string
	UnitPrice       float64
	UnitCost        float64
	Revenue         float64
	Profit          float64
}

// Evaluate inspects one conversation turn and either returns an order draft
// or nil with the reasons no order was extracted. It is pure: no I/O, no
// side effects, deterministic for a given input.
func Evaluate(in ExtractionInput) (*Draft, []string) {
	var reasons []string

	if in.Intent.Category != intent.CategoryOrder {
		return nil, append(reasons, fmt.Sprintf("intent is %q, not order", in.Intent.Category))
	}

	replyLower := strings.ToLower(in.AIReply)
	if !containsAny(replyLower, confirmationKeywords) {
		return nil, append(reasons, "ai reply does not contain a confirmation keyword")
	}

	recentLower := strings.ToLower(in.RecentCustomerText)
	product, ok := mentionedProduct(in.Products, recentLower, replyLower)
	if !ok {
		return nil, append(reasons, "no active catalog product is mentioned in the conversation")
	}

	quantity := parseQuantity(recentLower, strings.ToLower(strings.TrimSpace(product.Name)))
	if quantity > product.Stock {
		return nil, append(reasons,
			fmt.Sprintf("requested quantity %d exceeds stock %d for %q", quantity, product.Stock, product.Name))
	}

	if math.IsNaN(product.Price) || product.Price < 0 {
		return nil, append(reasons, fmt.Sprintf("product %q has an invalid price", product.Name))
	}
	cost := product.Cost
	if math.IsNaN(cost) || cost < 0 {
		cost = 0
	}

	name := extractCustomerName(in.RecentCustomerText)
	if name == "" {
		name = strings.TrimSpace(in.StoredCustomerName)
	}
	if name == "" {
		name = PlaceholderCustomerName
	}

	contact := extractContact(in.RecentCustomerText)
	if contact == "" {
		contact = in.ExternalCustomerID
	}

	revenue := product.Price * float64(quantity)
	profit := (product.Price - cost) * float64(quantity)

	return &Draft{
		Product:         product,
		Quantity:        quantity,
		CustomerName:    name,
		CustomerContact: contact,
		UnitPrice:       product.Price,
		UnitCost:        cost,
		Revenue:         revenue,
		Profit:          profit,
	}, nil
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// mentionedProduct returns the first active product whose name appears in
// either the recent customer text or the AI reply.
func mentionedProduct(products []catalog.Product, recentLower, replyLower string) (catalog.Product, bool) {
	for _, p := range products {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			continue
		}
		if strings.Contains(recentLower, name) || strings.Contains(replyLower, name) {
			return p, true
		}
	}
	return catalog.Product{}, false
}

// parseQuantity reads the requested amount from the customer text: either
// "<number> units/items/pieces" or a number written directly before the
// matched product's name, as in "3 widgets". Defaults to 1.
func parseQuantity(recentLower, productLower string) int {
	if qty, ok := firstQuantity(quantityPattern, recentLower); ok {
		return qty
	}
	if productLower != "" {
		pattern, err := regexp.Compile(`(\d+)\s*(?:x\s*)?` + regexp.QuoteMeta(productLower))
		if err == nil {
			if qty, ok := firstQuantity(pattern, recentLower); ok {
				return qty
			}
		}
	}
	return 1
}

func firstQuantity(pattern *regexp.Regexp, text string) (int, bool) {
	m := pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	qty, err := strconv.Atoi(m[1])
	if err != nil || qty <= 0 {
		return 0, false
	}
	return qty, true
}

func extractCustomerName(text string) string {
	m := namePattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func extractContact(text string) string {
	m := contactPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	contact := strings.TrimSpace(m[1])
	contact = strings.Trim(contact, "-( ")
	return contact
}
