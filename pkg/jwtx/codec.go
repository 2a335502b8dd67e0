package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired reports a well-formed token past its expiry (or before nbf).
	ErrExpired = errors.New("jwtx: token expired")
	// ErrMalformed reports an unparseable token or an invalid signature.
	ErrMalformed = errors.New("jwtx: malformed token")
)

// MinSecretLength is the minimum accepted HMAC secret size in bytes.
const MinSecretLength = 32

// Codec signs and verifies bearer tokens with a single symmetric key (HS256).
// It performs no business-rule checks; blacklist, version, session, device
// and tab bindings are the authenticator's job.
type Codec struct {
	secret []byte
	issuer string
}

// NewCodec builds a Codec. Secrets shorter than MinSecretLength are refused
// because they undermine the HMAC.
func NewCodec(secret []byte, issuer string) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, errors.New("jwtx: signing secret must be at least 32 bytes")
	}
	return &Codec{secret: secret, issuer: issuer}, nil
}

// Issuer returns the iss value the codec signs with and requires on decode.
func (c *Codec) Issuer() string {
	return c.issuer
}

// Encode serializes claims into a signed compact JWT.
func (c *Codec) Encode(claims Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(c.secret)
}

// Decode verifies the signature and time bounds and returns the claims.
// Fails with ErrExpired for a token past its expiry and ErrMalformed for
// anything else the parser rejects.
func (c *Codec) Decode(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, jwt.ErrTokenNotValidYet) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrMalformed
	}
	return claims, nil
}
