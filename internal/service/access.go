package service

import (
	"github.com/opencourse/media-api/internal/models"
	appErrors "github.com/opencourse/media-api/pkg/errors"
)

type tokenVerifier interface {
	Verify(token string) (string, error)
}

// Authorize maps a file's visibility tier plus caller identity and optional
// signed token onto an allow/deny decision. It is the single authorization
// contract shared by the streaming and download paths.
//
// Denials distinguish "authentication required" (no credential of any kind
// was presented) from "forbidden" (credentials were presented but are
// insufficient).
func Authorize(file *models.File, claims *models.JWTClaims, token string, verifier tokenVerifier) error {
	switch file.Visibility {
	case models.VisibilityPublic:
		return nil
	case models.VisibilityProtected:
		if claims != nil {
			return nil
		}
		if token == "" {
			return appErrors.ErrUnauthorized
		}
		return appErrors.ErrForbidden
	case models.VisibilityPrivate:
		if claims != nil {
			if claims.Role.Elevated() {
				return nil
			}
			if file.UploaderID != nil && *file.UploaderID == claims.UserID {
				return nil
			}
		}
		if token != "" && verifier != nil {
			fileID, err := verifier.Verify(token)
			if err == nil && fileID == file.ID {
				return nil
			}
		}
		if claims == nil && token == "" {
			return appErrors.ErrUnauthorized
		}
		return appErrors.ErrForbidden
	default:
		return appErrors.ErrForbidden
	}
}
