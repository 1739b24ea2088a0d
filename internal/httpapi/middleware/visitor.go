package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nuvora/concierge/internal/common"
	"github.com/nuvora/concierge/internal/logger"
)

const (
	// SessionIDKey is where the visitor's session id lands in the gin
	// context.
	SessionIDKey = "session_id"

	visitorCookie = "concierge_visitor"
	visitorTTL    = 30 * 24 * time.Hour
)

// Visitor identifies the anonymous visitor behind a request. A valid
// signed cookie carries the existing session id; otherwise a new id is
// minted and set. There is no login: the cookie is the whole identity.
func Visitor(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sid, ok := sessionFromCookie(c, secret); ok {
			c.Set(SessionIDKey, sid)
			c.Next()
			return
		}

		sid := common.NewULID()
		token, err := signVisitorToken(secret, sid)
		if err != nil {
			logger.L.Error("signing visitor token failed", "error", err)
			common.Fail(c, http.StatusInternalServerError, 50003, "session setup failed")
			c.Abort()
			return
		}
		c.SetCookie(visitorCookie, token, int(visitorTTL.Seconds()), "/", "", false, true)
		c.Set(SessionIDKey, sid)
		c.Next()
	}
}

// SessionID returns the visitor session id set by Visitor.
func SessionID(c *gin.Context) string {
	v, ok := c.Get(SessionIDKey)
	if !ok {
		return ""
	}
	sid, _ := v.(string)
	return sid
}

func signVisitorToken(secret, sid string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(visitorTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func sessionFromCookie(c *gin.Context, secret string) (string, bool) {
	raw, err := c.Cookie(visitorCookie)
	if err != nil || raw == "" {
		return "", false
	}
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}
