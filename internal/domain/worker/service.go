package worker

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/actua/clinic/internal/domain/account"
	"github.com/actua/clinic/internal/platform/blobstore"
	"github.com/actua/clinic/internal/platform/db"
)

var (
	ErrNotFound  = errors.New("worker not found")
	ErrForbidden = errors.New("worker belongs to another admin")
)

type Service struct {
	workers  Repository
	regs     TimeRegisterRepository
	accounts *account.Service
	users    account.UserRepository
	blobs    blobstore.Store
	tx       db.TxRunner
}

func NewService(workers Repository, regs TimeRegisterRepository, accounts *account.Service,
	users account.UserRepository, blobs blobstore.Store, tx db.TxRunner) *Service {
	if tx == nil {
		tx = db.PassthroughTxRunner()
	}
	return &Service{workers: workers, regs: regs, accounts: accounts, users: users, blobs: blobs, tx: tx}
}

// owned loads a worker and enforces creator ownership.
func (s *Service) owned(ctx context.Context, id, callerID uuid.UUID) (*Worker, error) {
	w, err := s.workers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.CreatedBy != callerID {
		return nil, ErrForbidden
	}
	return w, nil
}

type CreateInput struct {
	User   account.CreateUserInput `json:"user"`
	Groups []string                `json:"groups"`
}

// Create registers the wrapped user account and the worker row atomically.
// The specialty groups are assigned to the wrapped user, so they flow into
// its tokens.
func (s *Service) Create(ctx context.Context, in CreateInput, callerID uuid.UUID) (*Worker, error) {
	if len(in.Groups) == 0 {
		return nil, fmt.Errorf("at least one group is required")
	}

	var w *Worker
	err := s.tx(ctx, func(ctx context.Context) error {
		u, err := s.accounts.CreateUser(ctx, in.User)
		if err != nil {
			return err
		}
		if err := s.users.SetGroups(ctx, u.ID, in.Groups); err != nil {
			return err
		}
		u.Groups = in.Groups

		w = &Worker{UserID: u.ID, CreatedBy: callerID, User: u}
		return s.workers.Create(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) Get(ctx context.Context, id, callerID uuid.UUID) (*Worker, error) {
	return s.owned(ctx, id, callerID)
}

// GetByUser resolves the worker wrapping the given user account. Used by
// worker-role callers to find their own record, so no ownership check.
func (s *Service) GetByUser(ctx context.Context, userID uuid.UUID) (*Worker, error) {
	return s.workers.GetByUserID(ctx, userID)
}

func (s *Service) List(ctx context.Context, callerID uuid.UUID, limit, offset int) ([]*Worker, int, error) {
	return s.workers.ListByCreator(ctx, callerID, limit, offset)
}

type UpdateInput struct {
	FirstName *string  `json:"first_name"`
	LastName  *string  `json:"last_name"`
	Email     *string  `json:"email"`
	Groups    []string `json:"groups"`
}

// Update edits the wrapped user's fields and specialty groups.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput, callerID uuid.UUID) (*Worker, error) {
	w, err := s.owned(ctx, id, callerID)
	if err != nil {
		return nil, err
	}

	u := w.User
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.Email != nil {
		u.Email = *in.Email
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		if in.Groups != nil {
			if err := s.users.SetGroups(ctx, u.ID, in.Groups); err != nil {
				return err
			}
			u.Groups = in.Groups
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Delete removes the worker and its wrapped user account.
func (s *Service) Delete(ctx context.Context, id, callerID uuid.UUID) error {
	w, err := s.owned(ctx, id, callerID)
	if err != nil {
		return err
	}
	return s.tx(ctx, func(ctx context.Context) error {
		if err := s.workers.Delete(ctx, w.ID); err != nil {
			return err
		}
		return s.users.Delete(ctx, w.UserID)
	})
}

// ---- time-register PDFs ----

// canTouchRegisters: the owning admin manages any sheet; a worker only
// reaches its own record.
func (s *Service) registerScope(ctx context.Context, workerID, callerID uuid.UUID) (*Worker, bool, error) {
	w, err := s.workers.GetByID(ctx, workerID)
	if err != nil {
		return nil, false, err
	}
	if w.CreatedBy == callerID {
		return w, true, nil
	}
	if w.UserID == callerID {
		return w, false, nil
	}
	return nil, false, ErrForbidden
}

func (s *Service) UploadTimeRegister(ctx context.Context, workerID uuid.UUID, fileName string, content io.Reader, callerID uuid.UUID) (*TimeRegister, error) {
	_, byAdmin, err := s.registerScope(ctx, workerID, callerID)
	if err != nil {
		return nil, err
	}

	meta, err := s.blobs.Save(ctx, blobstore.Metadata{
		FileName:    fileName,
		ContentType: "application/pdf",
		Category:    blobstore.CategoryTimeRegister,
		OwnerID:     workerID,
	}, content)
	if err != nil {
		return nil, err
	}

	reg := &TimeRegister{
		WorkerID:   workerID,
		BlobID:     meta.ID,
		FileName:   fileName,
		UploadedBy: callerID,
		ByAdmin:    byAdmin,
	}
	if err := s.regs.Create(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *Service) ListTimeRegisters(ctx context.Context, workerID uuid.UUID, byAdmin bool, callerID uuid.UUID, limit, offset int) ([]*TimeRegister, int, error) {
	if _, _, err := s.registerScope(ctx, workerID, callerID); err != nil {
		return nil, 0, err
	}
	return s.regs.ListByWorker(ctx, workerID, byAdmin, limit, offset)
}

func (s *Service) OpenTimeRegister(ctx context.Context, workerID, regID, callerID uuid.UUID) (io.ReadCloser, *blobstore.Metadata, error) {
	if _, _, err := s.registerScope(ctx, workerID, callerID); err != nil {
		return nil, nil, err
	}
	reg, err := s.regs.GetByID(ctx, regID)
	if err != nil {
		return nil, nil, err
	}
	if reg.WorkerID != workerID {
		return nil, nil, ErrNotFound
	}
	return s.blobs.Open(ctx, reg.BlobID)
}
