// README: Staff service: onboarding with a provisioned mailbox, break toggles, workload listing.
package staff

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"fulfil/internal/secret"
	"fulfil/internal/types"
)

type Service struct {
	store   Repository
	mailbox MailboxProvisioner
	logger  *zap.Logger
}

func NewService(store Repository, mailbox MailboxProvisioner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, mailbox: mailbox, logger: logger}
}

func (s *Service) Onboard(ctx context.Context, cmd OnboardCommand) (*OnboardResult, error) {
	cmd.FullName = strings.TrimSpace(cmd.FullName)
	if cmd.FullName == "" {
		return nil, fmt.Errorf("%w: full name is required", ErrBadRequest)
	}
	if !cmd.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrBadRequest, cmd.Role)
	}

	password, err := secret.RandomString(passwordLength)
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	email, err := s.mailbox.CreateMailbox(ctx, cmd.FullName, password)
	if err != nil {
		return nil, err
	}

	res, err := s.store.Create(ctx, &Staff{FullName: cmd.FullName, Email: email, Role: cmd.Role}, cmd)
	if err != nil {
		if derr := s.mailbox.DeleteMailbox(ctx, email); derr != nil {
			s.logger.Error("orphaned staff mailbox", zap.String("email", email), zap.Error(derr))
		}
		return nil, err
	}
	res.TemporaryPassword = password
	s.logger.Info("staff onboarded",
		zap.Int64("staff_id", int64(res.Staff.ID)),
		zap.String("email", email),
		zap.String("role", string(cmd.Role)),
	)
	return res, nil
}

func (s *Service) SetOnBreak(ctx context.Context, staffID types.ID, onBreak bool) error {
	ok, err := s.store.SetOnBreak(ctx, staffID, onBreak)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Workload(ctx context.Context) ([]Workload, error) {
	return s.store.Workload(ctx)
}
