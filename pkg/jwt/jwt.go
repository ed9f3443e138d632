package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "go-pos-ws"

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("missing authorization token")
)

// Claims identifies the cashier operating a till.
type Claims struct {
	CashierID   string   `json:"cashier_id"`
	CashierName string   `json:"cashier_name"`
	Privileges  []string `json:"privileges"`
	jwt.RegisteredClaims
}

// HasPrivilege reports whether the token grants privilege.
func (c *Claims) HasPrivilege(privilege string) bool {
	for _, p := range c.Privileges {
		if p == privilege {
			return true
		}
	}
	return false
}

// Signer issues and validates HS256 cashier tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken creates a signed token for a cashier
func (s *Signer) GenerateToken(cashierID, cashierName string, privileges []string) (string, error) {
	if cashierID == "" {
		return "", errors.New("cashier id is required")
	}
	now := s.now()
	claims := &Claims{
		CashierID:   cashierID,
		CashierName: cashierName,
		Privileges:  privileges,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cashierID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and validates a token
func (s *Signer) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.CashierID != "" {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
