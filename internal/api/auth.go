package api

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware gates the batch-control endpoints (convert/stop/history)
// behind the opaque token the launcher passes through via --token (see §6:
// the core never interprets this value, it is forwarded to the license
// heartbeat collaborator as-is). When the CLI did not supply one, it falls
// back to API_AUTH_TOKEN so the engine can also run as a standalone
// service. If neither is set, every request is allowed (dev mode); in
// GIN_MODE=release that configuration is logged loudly, since it means any
// process on the host can start or stop a batch.
func AuthMiddleware(cliToken string) gin.HandlerFunc {
	token := cliToken
	if token == "" {
		token = os.Getenv("API_AUTH_TOKEN")
	}

	if token == "" && os.Getenv("GIN_MODE") == "release" {
		log.Println("[SECURITY WARNING] No engine token configured in release mode " +
			"(--token or API_AUTH_TOKEN). Batch-control endpoints are publicly accessible.")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization header",
				"hint":  "Use: Authorization: Bearer <engine token>",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid Authorization header format"})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid engine token"})
			c.Abort()
			return
		}
		c.Next()
	}
}
