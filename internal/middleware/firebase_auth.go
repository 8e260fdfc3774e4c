package middleware

import (
	"context"

	"github.com/anonto42/campus-hub/backend/internal/models"
)

// TokenVerifier verifies a Firebase ID token and returns its UID
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (string, error)
}

// UserByFirebaseUID resolves the local account linked to a Firebase user
type UserByFirebaseUID interface {
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
}

// FirebaseAuthenticator accepts Firebase ID tokens of users with a linked local account.
func FirebaseAuthenticator(verifier TokenVerifier, users UserByFirebaseUID) Authenticator {
	return func(ctx context.Context, idToken string) (string, string, error) {
		uid, err := verifier.VerifyIDToken(ctx, idToken)
		if err != nil {
			return "", "", err
		}
		user, err := users.GetUserByFirebaseUID(ctx, uid)
		if err != nil {
			return "", "", err
		}
		return user.ID, user.Role, nil
	}
}
