package services

import (
	"cinescript-backend/internal/middleware"
	"cinescript-backend/internal/models"
)

// AuthorizeVideoAccess grants read and edit access to the owner, admins and
// VIP accounts. Everyone else gets a ForbiddenError.
func AuthorizeVideoAccess(id middleware.Identity, video *models.Video) error {
	if video.UserID == id.UserID || id.Admin || id.VIP {
		return nil
	}
	return &ForbiddenError{Resource: "video"}
}

// AuthorizeProcessing gates the paid triggers (transcribe, translate,
// export). On top of plain access the caller needs an active subscription;
// admins bypass the subscription check, VIP does not.
func AuthorizeProcessing(id middleware.Identity, video *models.Video) error {
	if err := AuthorizeVideoAccess(id, video); err != nil {
		return err
	}
	if id.Admin || id.SubscriptionActive {
		return nil
	}
	return &SubscriptionRequiredError{}
}
