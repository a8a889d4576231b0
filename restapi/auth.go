package restapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jwtverifier "github.com/okta/okta-jwt-verifier-golang"
)

// TokenVerifier accepts or rejects a bearer token.
type TokenVerifier func(token string) error

// OktaVerifier returns a TokenVerifier accepting access tokens issued by the default
// authorization server of the Okta org domain for clientID and audience.
func OktaVerifier(domain, clientID, audience string) TokenVerifier {
	if audience == "" {
		audience = "api://default"
	}
	verifierSetup := jwtverifier.JwtVerifier{
		Issuer: "https://" + domain + "/oauth2/default",
		ClaimsToValidate: map[string]string{
			"aud": audience,
			"cid": clientID,
		},
	}
	verifier := verifierSetup.New()
	return func(token string) error {
		if _, err := verifier.VerifyAccessToken(token); err != nil {
			return fmt.Errorf("okta: %w", err)
		}
		return nil
	}
}

// Verify the bearer token in header. The static token is checked first, then the verifier.
func (s *Server) verifyHeaderToken(realHandler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.options.Token == "" && s.options.Verifier == nil {
			realHandler(c)
			return
		}
		token := c.Request.Header.Get("Authorization")
		if !strings.HasPrefix(token, "Bearer ") {
			c.String(http.StatusUnauthorized, "Unauthorized")
			c.Abort()
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")
		if s.options.Token != "" && token == s.options.Token {
			realHandler(c)
			return
		}
		if s.options.Verifier == nil {
			c.String(http.StatusForbidden, "invalid token")
			c.Abort()
			return
		}
		if err := s.options.Verifier(token); err != nil {
			c.String(http.StatusForbidden, err.Error())
			c.Abort()
			return
		}
		realHandler(c)
	}
}
