// Seeds a demo shop against a running API: registers the shop through the
// admin endpoints, links its channel identities, then uploads the catalog
// through the dashboard endpoints. Tokens are minted locally from the same
// secrets the server reads, so this only works against deployments whose
// secrets you hold.
//
// Usage: go run ./scripts/seed scripts/seed/demo-shop.json
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type seedFile struct {
	Shop     shopSpec      `json:"shop"`
	Channels []channelLink `json:"channels"`
	Products []productSpec `json:"products"`
	Services []serviceSpec `json:"services"`
}

type shopSpec struct {
	Name         string `json:"name"`
	OwnerName    string `json:"owner_name,omitempty"`
	OwnerEmail   string `json:"owner_email"`
	OwnerPhone   string `json:"owner_phone,omitempty"`
	BusinessMode string `json:"business_mode"`
	Description  string `json:"description,omitempty"`
	PlanID       string `json:"plan_id,omitempty"`
}

type channelLink struct {
	Channel            string `json:"channel"`
	ExternalBusinessID string `json:"external_business_id"`
}

type productSpec struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Cost        float64 `json:"cost"`
	Stock       int     `json:"stock"`
}

type serviceSpec struct {
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	Price           float64 `json:"price"`
	DurationMinutes int     `json:"duration_minutes"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/seed <seed-file.json>")
		fmt.Println("Example: go run ./scripts/seed scripts/seed/demo-shop.json")
		os.Exit(1)
	}

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	adminSecret := strings.TrimSpace(os.Getenv("ADMIN_JWT_SECRET"))
	dashSecret := strings.TrimSpace(os.Getenv("DASHBOARD_JWT_SECRET"))
	if adminSecret == "" {
		fmt.Println("❌ ADMIN_JWT_SECRET is required to mint the admin token")
		os.Exit(1)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Printf("❌ Error reading file: %v\n", err)
		os.Exit(1)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		fmt.Printf("❌ Error parsing JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("🌱 Seeding Demo Shop\n")
	fmt.Printf("============================\n")
	fmt.Printf("API URL: %s\n", apiURL)
	fmt.Printf("Shop: %s (%s mode)\n\n", seed.Shop.Name, seed.Shop.BusinessMode)

	ctx := context.Background()
	client := &http.Client{Timeout: 30 * time.Second}

	adminToken, err := mintToken(adminSecret, "seed-script", "")
	if err != nil {
		fmt.Printf("❌ Error minting admin token: %v\n", err)
		os.Exit(1)
	}

	// Register the shop
	fmt.Println("🏪 Registering shop...")
	var shop struct {
		ID string `json:"id"`
	}
	status, body, err := post(ctx, client, apiURL+"/admin/shops", adminToken, seed.Shop)
	if err != nil {
		fmt.Printf("   ❌ Error: %v\n", err)
		os.Exit(1)
	}
	if status != http.StatusCreated {
		fmt.Printf("   ❌ Failed (status %d): %s\n", status, body)
		os.Exit(1)
	}
	if err := json.Unmarshal(body, &shop); err != nil || shop.ID == "" {
		fmt.Printf("   ❌ Could not read shop id from response: %s\n", body)
		os.Exit(1)
	}
	fmt.Printf("   ✅ Created shop %s\n", shop.ID)

	// Link channel identities
	for _, link := range seed.Channels {
		url := fmt.Sprintf("%s/admin/shops/%s/channels", apiURL, shop.ID)
		status, body, err := post(ctx, client, url, adminToken, link)
		if err != nil || status >= 300 {
			fmt.Printf("   ❌ Link %s failed (status %d): %v %s\n", link.Channel, status, err, body)
			continue
		}
		fmt.Printf("   ✅ Linked %s business id %s\n", link.Channel, link.ExternalBusinessID)
	}

	// Upload the catalog through the dashboard API
	if len(seed.Products) > 0 || len(seed.Services) > 0 {
		if dashSecret == "" {
			fmt.Println("\n⚠️  DASHBOARD_JWT_SECRET not set, skipping catalog upload")
		} else {
			dashToken, err := mintToken(dashSecret, "seed-script", shop.ID)
			if err != nil {
				fmt.Printf("❌ Error minting dashboard token: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("\n📦 Uploading %d products, %d services...\n", len(seed.Products), len(seed.Services))
			for _, p := range seed.Products {
				status, body, err := post(ctx, client, apiURL+"/dashboard/products", dashToken, p)
				if err != nil || status != http.StatusCreated {
					fmt.Printf("   ❌ %s failed (status %d): %v %s\n", p.Name, status, err, body)
					continue
				}
				fmt.Printf("   ✅ %s ($%.2f, stock %d)\n", p.Name, p.Price, p.Stock)
			}
			for _, s := range seed.Services {
				status, body, err := post(ctx, client, apiURL+"/dashboard/services", dashToken, s)
				if err != nil || status != http.StatusCreated {
					fmt.Printf("   ❌ %s failed (status %d): %v %s\n", s.Name, status, err, body)
					continue
				}
				fmt.Printf("   ✅ %s ($%.2f, %d min)\n", s.Name, s.Price, s.DurationMinutes)
			}
		}
	}

	fmt.Printf("\n✅ Seeding complete!\n")
	fmt.Printf("\n📝 Next steps:\n")
	fmt.Printf("  1. Open the widget demo: %s/chat/widget.js (data-shop=\"%s\")\n", apiURL, shop.ID)
	fmt.Printf("  2. Or post a test message: curl -X POST %s/chat/message -d '{\"shop_id\":\"%s\",\"text\":\"What do you sell?\"}'\n", apiURL, shop.ID)
	fmt.Printf("  3. Watch replies arrive on /realtime/ws from the dashboard\n")
}

// mintToken signs a short-lived HS256 token. A shop id produces a dashboard
// token; without one the token is for the admin surface.
func mintToken(secret, subject, shopID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(15 * time.Minute).Unix(),
	}
	if shopID != "" {
		claims["shop_id"] = shopID
		claims["role"] = "owner"
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func post(ctx context.Context, client *http.Client, url, token string, payload any) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body, nil
}
