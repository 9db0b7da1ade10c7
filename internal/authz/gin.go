package authz

import (
	"net/http"

	"quote_pipeline_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// ActorFromIdentity converts the authenticated identity into an Actor.
func ActorFromIdentity(id httpkit.Identity) Actor {
	return Actor{ID: id.UserID(), Roles: id.Roles()}
}

// MustGetActor returns the request's actor, or writes 401 and returns false.
func MustGetActor(c *gin.Context) (Actor, bool) {
	id := httpkit.GetIdentity(c)
	if !id.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return Actor{}, false
	}
	return ActorFromIdentity(id), true
}
