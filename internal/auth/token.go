// internal/auth/token.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Guest tokens identify a user to the lobby endpoints without any account
// or password; the signing key pair is generated fresh at process start.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// TokenExpireSec is the number of seconds until token expiration
	// (0 => tokens never expire).
	TokenExpireSec int
)

// Init generates a runtime ed25519 key pair and reads TOKEN_EXPIRE_TIME
// (a Go duration string, or "never"/"0"/empty for no expiry).
func Init() error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}

	duration := os.Getenv("TOKEN_EXPIRE_TIME")
	if duration == "never" || duration == "0" || duration == "" {
		TokenExpireSec = 0
		return nil
	}
	d, err := time.ParseDuration(duration)
	if err != nil {
		return fmt.Errorf("failed to parse TOKEN_EXPIRE_TIME: %w", err)
	}
	TokenExpireSec = int(d.Seconds())
	return nil
}

// CreateToken signs a JWT with "sub" = userID.
func CreateToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
	}
	if TokenExpireSec > 0 {
		claims["exp"] = time.Now().Add(time.Duration(TokenExpireSec) * time.Second).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// VerifyToken validates a JWT string and returns its "sub" claim.
func VerifyToken(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}
	userID, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("missing sub in jwt")
	}
	return userID, nil
}
