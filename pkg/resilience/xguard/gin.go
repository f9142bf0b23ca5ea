package xguard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Gin 返回附加 cfg 的 gin 中间件。cfg 为 nil 时直接放行。
//
// gin 的路由模式（c.FullPath()）作为 Request.Route。
func (g *Guard) Gin(cfg *RouteConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil {
			c.Next()
			return
		}
		req := g.HTTPRequest(c.Request)
		req.Route = c.FullPath()

		d, err := g.Admit(c.Request.Context(), req, cfg)
		if err != nil {
			var de *DeniedError
			if errors.As(err, &de) {
				for k, v := range de.Headers() {
					c.Writer.Header()[k] = v
				}
				c.AbortWithStatusJSON(http.StatusTooManyRequests, NewDeniedBody(de))
				return
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": http.StatusText(http.StatusServiceUnavailable),
			})
			return
		}
		d.Rate.SetHeaders(c.Writer.Header())
		c.Next()
	}
}
