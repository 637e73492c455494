package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roni12291832/nexus-car/internal/pkg/response"
)

// TokenValidator valida o JWT de sessão e devolve o tenant dono.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Auth exige Bearer token válido e injeta tenantID no contexto. Tudo
// que vem depois lê o dono da requisição daqui, nunca do corpo.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.ErrorWithMessage(c, http.StatusUnauthorized, "token de autenticação ausente")
			c.Abort()
			return
		}

		tenantID, err := validator.ValidateToken(token)
		if err != nil {
			response.ErrorWithMessage(c, http.StatusUnauthorized, "token inválido ou expirado")
			c.Abort()
			return
		}

		c.Set("tenantID", tenantID)
		c.Next()
	}
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
