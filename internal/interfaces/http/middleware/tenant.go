package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TenantIDKey is the gin context key holding the resolved tenant ID
	TenantIDKey = "tenant_id"
	// TenantHeaderKey is the header carrying the tenant ID
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantConfig holds tenant middleware configuration
type TenantConfig struct {
	// SkipPaths bypass tenant resolution (health checks)
	SkipPaths []string
	// DefaultTenantID is used when no header is present; uuid.Nil means
	// the header is mandatory
	DefaultTenantID uuid.UUID
}

// Tenant resolves the tenant from the X-Tenant-ID header and stores it in
// the gin context. Requests without a resolvable tenant are rejected.
func Tenant(cfg TenantConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		raw := c.GetHeader(TenantHeaderKey)
		if raw == "" {
			if cfg.DefaultTenantID == uuid.Nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"success": false,
					"error":   gin.H{"code": "ERR_BAD_REQUEST", "message": "Missing " + TenantHeaderKey + " header"},
				})
				return
			}
			c.Set(TenantIDKey, cfg.DefaultTenantID)
			c.Next()
			return
		}

		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   gin.H{"code": "ERR_BAD_REQUEST", "message": "Invalid " + TenantHeaderKey + " header"},
			})
			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Next()
	}
}

// GetTenantID returns the tenant ID set by the Tenant middleware
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(TenantIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
