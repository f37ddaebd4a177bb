// Package security provides bearer-token authentication for the query
// API: HS256-signed tokens over a secret persisted to disk, checked
// statelessly from the `Authorization: Bearer` header. This service has
// no browser-facing surface, so there is no cookie or CSRF handling.
package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	jwtSecret         []byte
	jwtSecretFromCLI  string
	jwtSecretFilePath string
)

// ConfigureJWT sets a CLI-provided secret or persistent file path for
// token secret management. If secret is non-empty it is used directly;
// otherwise the secret is loaded from file (or generated and persisted).
func ConfigureJWT(secret, file string) {
	jwtSecretFromCLI = strings.TrimSpace(secret)
	jwtSecretFilePath = strings.TrimSpace(file)
	jwtSecret = nil
}

// InitAuth initializes the token secret from CLI configuration or a
// persistent file. If neither is present, it generates a new one and
// stores it at the configured file path (./data/jwt.secret when none is
// set) so issued tokens survive restarts.
func InitAuth() {
	if len(jwtSecret) != 0 {
		return
	}
	if sec := strings.TrimSpace(jwtSecretFromCLI); sec != "" {
		jwtSecret = []byte(sec)
		return
	}
	path := strings.TrimSpace(jwtSecretFilePath)
	if path == "" {
		path = filepath.Join(".", "data", "jwt.secret")
	}
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	if b, err := os.ReadFile(path); err == nil && len(strings.TrimSpace(string(b))) > 0 {
		jwtSecret = []byte(strings.TrimSpace(string(b)))
		return
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err == nil {
		secHex := make([]byte, 64)
		const hexdigits = "0123456789abcdef"
		for i, v := range buf {
			secHex[i*2] = hexdigits[v>>4]
			secHex[i*2+1] = hexdigits[v&0x0f]
		}
		_ = os.WriteFile(path, secHex, 0o600)
		jwtSecret = secHex
		return
	}
	jwtSecret = []byte("flightbind-dev-secret")
}

func base64urlEncode(b []byte) string {
	return strings.TrimRight(base64.URLEncoding.EncodeToString(b), "=")
}

func base64urlDecode(s string) ([]byte, error) {
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return base64.URLEncoding.DecodeString(s)
}

// IssueToken signs a new HS256 bearer token for subject sub, valid for ttl.
// Intended for an operator-run CLI command, not for self-service issuance.
func IssueToken(sub string, ttl time.Duration) (string, error) {
	if len(jwtSecret) == 0 {
		InitAuth()
	}
	h := map[string]interface{}{"alg": "HS256", "typ": "JWT"}
	now := time.Now().Unix()
	exp := time.Now().Add(ttl).Unix()
	p := map[string]interface{}{"sub": sub, "iat": now, "exp": exp, "iss": "flightbind"}
	hb, _ := json.Marshal(h)
	pb, _ := json.Marshal(p)
	head := base64urlEncode(hb)
	pay := base64urlEncode(pb)
	mac := hmac.New(sha256.New, jwtSecret)
	mac.Write([]byte(head + "." + pay))
	sig := base64urlEncode(mac.Sum(nil))
	return head + "." + pay + "." + sig, nil
}

// validateToken validates an HS256 bearer token and checks exp.
func validateToken(tok string) bool {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 || len(parts[0]) == 0 || len(parts[1]) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, jwtSecret)
	mac.Write([]byte(parts[0] + "." + parts[1]))
	expected := mac.Sum(nil)
	sigBytes, err := base64urlDecode(parts[2])
	if err != nil || !hmac.Equal(expected, sigBytes) {
		return false
	}
	payloadBytes, err := base64urlDecode(parts[1])
	if err != nil {
		return false
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return false
	}
	if v, ok := payload["exp"]; ok {
		exp := int64(0)
		switch t := v.(type) {
		case float64:
			exp = int64(t)
		case string:
			if n, err := strconv.ParseInt(t, 10, 64); err == nil {
				exp = n
			}
		}
		if exp > 0 && time.Now().Unix() > exp {
			return false
		}
	}
	return true
}

// bearerToken extracts the token from an `Authorization: Bearer <token>` header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, prefix))
}

// ValidateBearerToken reports whether r carries a valid bearer token.
func ValidateBearerToken(r *http.Request) bool {
	if len(jwtSecret) == 0 {
		InitAuth()
	}
	tok := bearerToken(r)
	if tok == "" {
		return false
	}
	return validateToken(tok)
}

// RequireBearerToken enforces bearer-token auth on every request except
// /metrics, which operational tooling needs to scrape unauthenticated.
func RequireBearerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		if !ValidateBearerToken(r) {
			log.Printf("auth_denied path=%s", r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
