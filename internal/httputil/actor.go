package httputil

import (
	"github.com/gin-gonic/gin"
	"github.com/procureflow/backend/internal/models"
)

// actorKey is the context key the authenticated identity is stored under.
const actorKey = "procureflow-actor"

// SetActor stores the authenticated identity on the request context.
func SetActor(c *gin.Context, actor models.Identity) {
	c.Set(actorKey, actor)
}

// Actor returns the authenticated identity of the request.
func Actor(c *gin.Context) (models.Identity, bool) {
	value, exists := c.Get(actorKey)
	if !exists {
		return models.Identity{}, false
	}

	actor, ok := value.(models.Identity)
	if !ok || actor.Email == "" {
		return models.Identity{}, false
	}

	return actor, true
}
