package intent

import (
	"strings"
	"unicode"
)

// Category is the coarse purpose of a customer message.
type Category string

const (
	CategoryHumanRequest Category = "human_request"
	CategoryOrder        Category = "order"
	CategoryAppointment  Category = "appointment"
	CategoryGeneral      Category = "general"
)

// Result carries the classification outcome. MatchedLanguage reports which
// keyword set fired ("en" or "ar"); empty for general.
type Result struct {
	Category        Category
	MatchedLanguage string
}

type keywordSet struct {
	language string
	words    []string
}

// Keyword sets are checked in priority order: a message that asks for a human
// wins over one that also mentions ordering, and ordering wins over booking.
var categoryKeywords = []struct {
	category Category
	sets     []keywordSet
}{
	{
		category: CategoryHumanRequest,
		sets: []keywordSet{
			{language: "en", words: []string{
				"human", "real person", "someone real", "talk to a person",
				"speak to someone", "talk to someone", "customer service",
				"representative", "live agent", "real agent",
			}},
			{language: "ar", words: []string{
				"انسان", "إنسان", "شخص حقيقي", "موظف", "خدمة العملاء",
				"اتكلم مع", "أتكلم مع", "ممثل",
			}},
		},
	},
	{
		category: CategoryOrder,
		sets: []keywordSet{
			{language: "en", words: []string{
				"order", "buy", "purchase", "how much", "price", "cost",
				"in stock", "available", "deliver",
			}},
			{language: "ar", words: []string{
				"اطلب", "أطلب", "طلب", "اشتري", "أشتري", "شراء", "بكم",
				"السعر", "كم سعر", "متوفر", "توصيل",
			}},
		},
	},
	{
		category: CategoryAppointment,
		sets: []keywordSet{
			{language: "en", words: []string{
				"appointment", "book", "booking", "schedule", "reserve",
				"reservation", "slot",
			}},
			{language: "ar", words: []string{
				"موعد", "حجز", "احجز", "أحجز", "متى متاح",
			}},
		},
	},
}

// Classify maps free text to a category. Pure and deterministic: lower-cased
// substring membership against the keyword sets above, first category in
// priority order wins, no match yields general.
func Classify(text string) Result {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return Result{Category: CategoryGeneral}
	}

	for _, entry := range categoryKeywords {
		for _, set := range entry.sets {
			for _, word := range set.words {
				if strings.Contains(lowered, word) {
					return Result{Category: entry.category, MatchedLanguage: set.language}
				}
			}
		}
	}
	return Result{Category: CategoryGeneral}
}

// ContainsArabic reports whether any rune falls in an Arabic block. Used for
// response-language selection, not for classification.
func ContainsArabic(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Arabic, r) {
			return true
		}
	}
	return false
}
