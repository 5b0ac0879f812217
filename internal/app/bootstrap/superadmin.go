// internal/app/bootstrap/superadmin.go
package bootstrap

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/crewtask/crewtask/internal/app/docstore"
	userstore "github.com/crewtask/crewtask/internal/app/store/users"
	"github.com/crewtask/crewtask/internal/domain/models"
)

// EnsureSuperAdmin promotes the configured bootstrap email to the
// superadmin role, verified, if a directory record for it exists. With
// no record yet, nothing is written: the record is created with the
// right role when the account registers or by the session state
// machine's self-healing path.
func EnsureSuperAdmin(ctx context.Context, users *userstore.Store, superadminEmail string, logger *zap.Logger) error {
	if superadminEmail == "" {
		return nil
	}
	u, err := users.GetByEmail(ctx, superadminEmail)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			logger.Info("superadmin has not registered yet", zap.String("email", superadminEmail))
			return nil
		}
		return err
	}
	if u.Role == models.RoleSuperAdmin && u.IsVerified() {
		return nil
	}
	if err := users.UpdateRole(ctx, u.ID, models.RoleSuperAdmin); err != nil {
		return err
	}
	if !u.IsVerified() {
		if err := users.MarkVerified(ctx, u.ID, time.Now().UTC()); err != nil {
			return err
		}
	}
	logger.Info("promoted superadmin", zap.String("email", superadminEmail), zap.String("uid", u.ID))
	return nil
}
