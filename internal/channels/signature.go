package channels

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// SignatureHeader is the Meta webhook signature header.
const SignatureHeader = "X-Hub-Signature-256"

// VerifySignature checks an X-Hub-Signature-256 value ("sha256=<hex>")
// against HMAC-SHA256 of the raw body. Constant-time compare; an empty secret
// or header never verifies.
func VerifySignature(appSecret string, body []byte, signature string) bool {
	if appSecret == "" || signature == "" {
		return false
	}

	const prefix = "sha256="
	if !strings.HasPrefix(signature, prefix) || len(signature) <= len(prefix) {
		return false
	}
	sigHex := signature[len(prefix):]

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sigHex))
}

// WriteVerification answers the Meta GET verification handshake: echo the
// challenge when mode is "subscribe" and the token matches, 403 on mismatch,
// 500 when no verify token is configured server-side.
func WriteVerification(w http.ResponseWriter, r *http.Request, verifyToken string) {
	if verifyToken == "" {
		http.Error(w, "verify token not configured", http.StatusInternalServerError)
		return
	}

	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == verifyToken {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}

	http.Error(w, "Forbidden", http.StatusForbidden)
}
