package credentials

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Storage keys. The names match what earlier releases of the app wrote, so
// existing installs keep their session across upgrades.
const (
	AccessTokenKey  = "auth_token"
	RefreshTokenKey = "refresh_token"
	UsernameKey     = "username"
	UserDataKey     = "user_data"
)

// Credential is the access/refresh token pair of a signed-in session.
// An empty AccessToken means unauthenticated; an empty RefreshToken means
// the backend never issued one.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

func (c Credential) IsZero() bool {
	return c.AccessToken == ""
}

// Token converts the credential to an oauth2.Token. When the access token is
// a JWT its exp claim becomes the token expiry; opaque tokens never expire
// client side.
func (c Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       accessTokenExpiry(c.AccessToken),
	}
}

// accessTokenExpiry reads exp without verifying the signature. The client has
// no key material; the backend remains the only judge of validity.
func accessTokenExpiry(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
