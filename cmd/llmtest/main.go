// llmtest exercises the configured completion backend from the
// command line. It reads the same .env the platform uses, builds the
// reply generator exactly as the API process would, and runs a short
// bilingual conversation through it so a deploy can be smoke-tested
// before any webhook traffic arrives.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	appbootstrap "github.com/tajirhq/tajir-ai-platform/internal/app/bootstrap"
	appconfig "github.com/tajirhq/tajir-ai-platform/internal/config"
	"github.com/tajirhq/tajir-ai-platform/internal/conversation"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gen, provider, err := appbootstrap.BuildGenerator(ctx, cfg, nil, logger)
	if err != nil {
		log.Fatalf("failed to build generator: %v", err)
	}

	fmt.Printf("Backend: %s\n", provider)
	if provider == "stub" {
		fmt.Println("No model credentials configured; replies below are the canned acknowledgement.")
	}

	system := []string{
		"You are the sales assistant for Noor Perfumes, an online fragrance shop in Riyadh.",
		"Answer in the customer's language. Keep replies short and helpful.",
	}

	turns := []struct {
		label string
		text  string
	}{
		{"english", "Hi! Do you have any oud perfumes under 200 riyal?"},
		{"arabic", "مرحبا، أبغى عطر عود بسعر أقل من ٢٠٠ ريال"},
	}

	history := make([]conversation.ChatMessage, 0, len(turns)*2)
	for i, turn := range turns {
		history = append(history, conversation.ChatMessage{
			Role:    conversation.ChatRoleUser,
			Content: turn.text,
		})

		start := time.Now()
		reply := gen.Generate(ctx, conversation.GenerationInput{
			ConversationID: "llmtest",
			System:         system,
			History:        history,
		})
		elapsed := time.Since(start).Round(time.Millisecond)

		fmt.Printf("\n[%d] %s turn (%v)\n", i+1, turn.label, elapsed)
		fmt.Printf("    customer: %s\n", turn.text)
		fmt.Printf("    reply:    %s\n", reply)

		history = append(history, conversation.ChatMessage{
			Role:    conversation.ChatRoleAssistant,
			Content: reply,
		})
	}

	fmt.Println("\nIf both replies match their language, the gateway is ready.")
	fmt.Println("Watch the logs above for 'primary completion backend failed, trying fallback'")
	fmt.Println("to confirm which provider actually answered.")
}
