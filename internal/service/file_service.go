package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/account-service/internal/accesscontrol"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
)

// FileService manages file metadata records. Ownership checks go through
// the role guard: owners act on their own files, admins on anyone's.
type FileService struct {
	files      repository.FileRepository
	users      repository.UserRepository
	guard      accesscontrol.RoleGuard
	dispatcher events.Dispatcher
}

// NewFileService builds the service.
func NewFileService(files repository.FileRepository, users repository.UserRepository, dispatcher events.Dispatcher) *FileService {
	return &FileService{
		files:      files,
		users:      users,
		guard:      accesscontrol.NewRoleGuard(),
		dispatcher: dispatcher,
	}
}

// Create registers metadata for a file owned by the caller.
func (s *FileService) Create(ctx context.Context, secCtx *accesscontrol.SecurityContext, name, contentType string, sizeBytes int64, checksum string) (*domain.File, error) {
	file := &domain.File{
		OwnerID:     secCtx.UserID(),
		Name:        name,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		Checksum:    checksum,
	}
	if err := s.files.Create(ctx, file); err != nil {
		return nil, err
	}

	s.publishFile(ctx, events.EventFileCreated, secCtx, file)
	return file, nil
}

// Get returns a file record the caller may access.
func (s *FileService) Get(ctx context.Context, secCtx *accesscontrol.SecurityContext, id int64) (*domain.File, error) {
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, secCtx, file); err != nil {
		return nil, err
	}
	return file, nil
}

// ListOwn returns the caller's files.
func (s *FileService) ListOwn(ctx context.Context, secCtx *accesscontrol.SecurityContext, limit, offset int) ([]*domain.File, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.files.ListByOwner(ctx, secCtx.UserID(), limit, offset)
}

// Delete removes a file record the caller may manage.
func (s *FileService) Delete(ctx context.Context, secCtx *accesscontrol.SecurityContext, id int64) error {
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, secCtx, file); err != nil {
		return err
	}
	if err := s.files.Delete(ctx, id); err != nil {
		return err
	}

	s.publishFile(ctx, events.EventFileDeleted, secCtx, file)
	return nil
}

// authorize applies the manage-target rule against the file's owner.
func (s *FileService) authorize(ctx context.Context, secCtx *accesscontrol.SecurityContext, file *domain.File) error {
	if file.OwnerID == secCtx.UserID() {
		return nil
	}
	owner, err := s.users.GetByID(ctx, file.OwnerID)
	if err != nil {
		return err
	}
	return s.guard.CanManageTarget(secCtx.Role(), secCtx.UserID(), owner.ID, owner.Role).Err()
}

func (s *FileService) publishFile(ctx context.Context, t events.EventType, secCtx *accesscontrol.SecurityContext, file *domain.File) {
	if s.dispatcher == nil {
		return
	}
	actorID := secCtx.UserID()
	role := secCtx.Role()
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      t,
		Target:    file.Name,
		Actor:     events.Actor{UserID: &actorID, Role: &role},
		Timestamp: time.Now(),
		Payload: events.FilePayload{
			FileID:  file.ID,
			OwnerID: file.OwnerID,
			Name:    file.Name,
		},
	})
}
