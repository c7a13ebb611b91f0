package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type entriesResponse struct {
	Available []emojiDTO `json:"available"`
}

type emojiDTO struct {
	ID string `json:"id"`
}

// Handler returns a gin handler serving GET /entries: the startup-loaded
// catalog, in load order.
func (c *Catalog) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		entries := c.Entries()
		available := make([]emojiDTO, len(entries))
		for i, e := range entries {
			available[i] = emojiDTO{ID: e.ID}
		}
		ctx.JSON(http.StatusOK, entriesResponse{Available: available})
	}
}
