package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Назначение токена в claims. Защита от подмены токенов другого типа.
const magicLinkPurpose = "magic-link"

// Ошибки валидации magic-link токена.
var (
	// ErrTokenInvalid — токен не прошёл проверку подписи или структуры.
	ErrTokenInvalid = errors.New("недействительный токен")
	// ErrTokenExpired — срок действия токена истёк.
	ErrTokenExpired = errors.New("срок действия токена истёк")
)

// MagicLinkClaims — claims magic-link токена.
type MagicLinkClaims struct {
	// Email — адрес, на который была отправлена ссылка.
	Email string `json:"email"`
	// Purpose — назначение токена, всегда "magic-link".
	Purpose string `json:"purpose"`
	// Next — путь возврата после подтверждения (например, /qr/abc12345).
	Next string `json:"next,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer — выпуск и проверка magic-link токенов (HS256).
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer создаёт issuer с заданным секретом и временем жизни токена.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue выпускает подписанный magic-link токен для email.
// next — путь возврата после подтверждения, может быть пустым.
func (ti *TokenIssuer) Issue(email, next string) (string, error) {
	now := time.Now()
	claims := &MagicLinkClaims{
		Email:   email,
		Purpose: magicLinkPurpose,
		Next:    next,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, nil
}

// Verify проверяет подпись и срок действия токена.
// Возвращает claims или ErrTokenInvalid/ErrTokenExpired.
func (ti *TokenIssuer) Verify(tokenString string) (*MagicLinkClaims, error) {
	claims := &MagicLinkClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			// Только HS256 — любой другой алгоритм отвергается
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("неожиданный метод подписи: %v", t.Header["alg"])
			}
			return ti.secret, nil
		},
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Purpose != magicLinkPurpose {
		return nil, fmt.Errorf("%w: неверное назначение токена %q", ErrTokenInvalid, claims.Purpose)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: отсутствует email", ErrTokenInvalid)
	}
	return claims, nil
}
