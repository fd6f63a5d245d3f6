// Package tokencodec decodes the claims of a bearer token without verifying its signature.
//
// The decoded claims only drive client-side affordances (expiry, roles); the backend
// remains the authority on every request.
package tokencodec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/bookshelf/internal/errs"
)

// Claims is the subset of token claims the client relies on.
type Claims struct {
	Subject           string
	PreferredUsername string
	ExpiresAt         *time.Time // nil when exp is absent or not numeric
	Roles             []string   // realm_access.roles, string entries only
	Raw               jwt.MapClaims
}

// ValidAt reports whether the claims carry an expiry that lies after now.
func (c Claims) ValidAt(now time.Time) bool {
	return c.ExpiresAt != nil && now.Before(*c.ExpiresAt)
}

// HasRole reports whether role is among the realm roles.
func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode splits token into header.payload.signature and decodes the payload.
func Decode(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, fmt.Errorf("%w: expected 3 segments, got %d", errs.ErrMalformedToken, len(parts))
	}
	raw, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: payload: %v", errs.ErrMalformedToken, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var mc jwt.MapClaims
	if err := dec.Decode(&mc); err != nil {
		return Claims{}, fmt.Errorf("%w: payload is not a JSON object", errs.ErrMalformedToken)
	}
	if mc == nil {
		return Claims{}, fmt.Errorf("%w: payload is not a JSON object", errs.ErrMalformedToken)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Claims{}, fmt.Errorf("%w: trailing data after payload", errs.ErrMalformedToken)
	}

	c := Claims{Raw: mc, Roles: realmRoles(mc)}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		c.ExpiresAt = &t
	}
	if sub, err := mc.GetSubject(); err == nil {
		c.Subject = sub
	}
	if u, ok := mc["preferred_username"].(string); ok {
		c.PreferredUsername = u
	}
	return c, nil
}

func realmRoles(mc jwt.MapClaims) []string {
	ra, ok := mc["realm_access"].(map[string]any)
	if !ok {
		return []string{}
	}
	list, ok := ra["roles"].([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
