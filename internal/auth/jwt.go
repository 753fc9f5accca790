package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Validator checks bearer tokens and extracts the actor identity. Supports
// RS256 (public key file) and HS256 (shared secret).
type Validator struct {
	alg    string
	pub    *rsa.PublicKey
	secret []byte
}

func NewRS256Validator(path string) (*Validator, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("failed to decode public key")
	}
	pubIfc, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := pubIfc.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not rsa public key")
	}
	return &Validator{alg: "RS256", pub: pub}, nil
}

func NewHS256Validator(secret string) (*Validator, error) {
	if secret == "" {
		return nil, errors.New("empty hs256 secret")
	}
	return &Validator{alg: "HS256", secret: []byte(secret)}, nil
}

// New picks the validator by configured algorithm.
func New(alg, hsSecret, publicKeyPath string) (*Validator, error) {
	switch strings.ToUpper(alg) {
	case "RS256":
		return NewRS256Validator(publicKeyPath)
	case "HS256":
		return NewHS256Validator(hsSecret)
	default:
		return nil, errors.New("unsupported jwt alg")
	}
}

// Validate returns the actor id from the sub or user_id claim.
func (v *Validator) Validate(tokenStr string) (string, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if v.alg == "RS256" {
			return v.pub, nil
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{v.alg}))
	if err != nil {
		return "", err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return "", errors.New("invalid token")
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub, nil
	}
	if uid, ok := claims["user_id"].(string); ok && uid != "" {
		return uid, nil
	}
	return "", errors.New("token missing subject")
}

// Name returns the optional display-name claim for group sender snapshots.
func (v *Validator) Name(tokenStr string) string {
	tok, _, err := jwt.NewParser().ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	if claims, ok := tok.Claims.(jwt.MapClaims); ok {
		if n, ok := claims["name"].(string); ok {
			return n
		}
	}
	return ""
}
