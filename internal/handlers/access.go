package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/middleware"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/services"
)

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// releaseAccess resolves releases the caller may work on: their own, or any for admins.
// Someone else's release is reported as not found.
type releaseAccess struct {
	releases *services.ReleaseService
}

func (a releaseAccess) byID(c *gin.Context, id uuid.UUID) (*models.Release, bool) {
	userID, _ := middleware.UserID(c)
	var (
		release *models.Release
		err     error
	)
	if c.GetString(middleware.ContextRole) == models.RoleAdmin {
		release, err = a.releases.Get(c.Request.Context(), id)
	} else {
		release, err = a.releases.GetOwned(c.Request.Context(), id, userID)
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return release, true
}

// param resolves the release named by the :id route parameter.
func (a releaseAccess) param(c *gin.Context) (*models.Release, bool) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return nil, false
	}
	return a.byID(c, id)
}
