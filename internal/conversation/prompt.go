package conversation

import (
	"fmt"
	"strings"

	"github.com/tajirhq/tajir-ai-platform/internal/catalog"
	"github.com/tajirhq/tajir-ai-platform/internal/shops"
)

// PromptInput carries the shop facts the system prompt is built from.
// Products and Services hold only active catalog items.
type PromptInput struct {
	ShopName     string
	BusinessMode shops.BusinessMode
	Description  string
	Products     []catalog.Product
	Services     []catalog.Service
	Arabic       bool
}

// BuildSystemPrompt renders the system prompt sections for one turn.
func BuildSystemPrompt(in PromptInput) []string {
	return []string{
		promptRole(in),
		promptCatalog(in),
		promptConduct(in),
		promptLanguage(in.Arabic),
	}
}

func promptRole(in PromptInput) string {
	var sb strings.Builder
	sb.WriteString("You are the customer-facing assistant for ")
	sb.WriteString(strings.TrimSpace(in.ShopName))
	sb.WriteString(", a small business chatting with its customers over messaging apps.")
	if in.BusinessMode == shops.ModeServices {
		sb.WriteString(" The business offers bookable services; your job is to answer questions and arrange appointments.")
	} else {
		sb.WriteString(" The business sells products; your job is to answer questions and take orders.")
	}
	if desc := strings.TrimSpace(in.Description); desc != "" {
		sb.WriteString(" About the business: ")
		sb.WriteString(desc)
	}
	return sb.String()
}

func promptCatalog(in PromptInput) string {
	var sb strings.Builder
	if in.BusinessMode == shops.ModeServices {
		if len(in.Services) == 0 {
			return "No services are listed right now. Tell customers the team will follow up with availability."
		}
		sb.WriteString("Services you can offer:\n")
		for _, s := range in.Services {
			fmt.Fprintf(&sb, "- %s - %.2f - %d min", s.Name, s.Price, s.DurationMinutes)
			if d := strings.TrimSpace(s.Description); d != "" {
				sb.WriteString(" - ")
				sb.WriteString(d)
			}
			sb.WriteString("\n")
		}
		return strings.TrimRight(sb.String(), "\n")
	}

	if len(in.Products) == 0 {
		return "No products are listed right now. Tell customers the team will follow up with what is available."
	}
	sb.WriteString("Products you can offer:\n")
	for _, p := range in.Products {
		fmt.Fprintf(&sb, "- %s - %.2f", p.Name, p.Price)
		if p.Stock > 0 {
			fmt.Fprintf(&sb, " (%d in stock)", p.Stock)
		} else {
			sb.WriteString(" (out of stock)")
		}
		if d := strings.TrimSpace(p.Description); d != "" {
			sb.WriteString(" - ")
			sb.WriteString(d)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func promptConduct(in PromptInput) string {
	var sb strings.Builder
	sb.WriteString("Rules:\n")
	sb.WriteString("- Only discuss items from the list above. Never invent products, services, prices or discounts.\n")
	if in.BusinessMode == shops.ModeServices {
		sb.WriteString("- Before confirming a booking, collect the customer's full name, phone number and preferred date.\n")
	} else {
		sb.WriteString("- Before confirming an order, collect the customer's full name, phone number and the quantity they want.\n")
	}
	sb.WriteString("- Never promise an item that is out of stock.\n")
	sb.WriteString("- If anything is unclear or missing, ask one short clarifying question.\n")
	sb.WriteString("- If the customer asks for a human, an agent or a real person, reply with exactly this sentence and nothing else: ")
	sb.WriteString(handOffReply)
	return sb.String()
}

func promptLanguage(arabic bool) string {
	if arabic {
		return "The customer writes in Arabic. Reply in Modern Standard Arabic."
	}
	return "Reply in English. If the customer switches to Arabic, switch with them and reply in Modern Standard Arabic."
}
