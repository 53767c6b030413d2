package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/campusvault/internal/common"
	"github.com/dmitrijs2005/campusvault/internal/server/access"
	"github.com/dmitrijs2005/campusvault/internal/server/blob"
	"github.com/dmitrijs2005/campusvault/internal/server/models"
	"github.com/dmitrijs2005/campusvault/internal/server/notify"
	"github.com/dmitrijs2005/campusvault/internal/server/uow"
	"github.com/google/uuid"
)

type FileMeta struct {
	Name        string
	ContentType string
}

type UploadResult struct {
	File         *models.File
	Subscription *models.StoragePurchase
}

type FileService struct {
	d Deps
}

func NewFileService(d Deps) *FileService {
	d.defaults()
	return &FileService{d: d}
}

// UploadFile reserves quota, stores the content and records the file in
// one unit of work. Content is stored only after the reservation holds;
// if the unit of work then aborts, the stored object is deleted again.
func (s *FileService) UploadFile(ctx context.Context, p *access.Principal, userID string, meta FileMeta, size int64, content io.ReadSeeker) (*UploadResult, error) {
	if err := access.AuthorizeOwner(p, userID, access.FilesUpload); err != nil {
		return nil, err
	}
	meta.Name = strings.TrimSpace(meta.Name)
	if meta.Name == "" {
		return nil, common.Validation("file name is required")
	}
	if size <= 0 {
		return nil, common.Validation("file size must be positive")
	}
	if meta.ContentType == "" {
		meta.ContentType = "application/octet-stream"
	}

	// One object per attempt; all but the committed one are removed.
	var stored []string
	var res *UploadResult
	err := s.d.Tx.Do(ctx, "upload_file", func(ctx context.Context, r *uow.Repos) error {
		sub, err := s.d.Quota.Reserve(ctx, r.Subscriptions, userID, size)
		if err != nil {
			return err
		}

		if _, err := content.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind upload: %w", err)
		}
		key := blob.NewKey(userID, s.d.Now())
		path, err := s.d.Blobs.Put(ctx, key, meta.ContentType, io.LimitReader(content, size), size)
		if err != nil {
			return common.ExternalService("blob store failed", err)
		}
		stored = append(stored, path)

		f := &models.File{
			ID:             uuid.NewString(),
			UserID:         userID,
			SubscriptionID: sub.ID,
			Name:           meta.Name,
			ContentType:    meta.ContentType,
			Size:           size,
			StoragePath:    path,
			CreatedAt:      s.d.Now().UTC(),
		}
		if err := r.Files.Create(ctx, f); err != nil {
			return fmt.Errorf("error creating file record: %w", err)
		}

		n := notify.Notification{
			UserID:   userID,
			Subject:  "File uploaded",
			Message:  fmt.Sprintf("%s (%d bytes) was uploaded.", f.Name, f.Size),
			Template: notify.TemplateFileUploaded,
		}
		if sub.Status != models.QuotaActive {
			n = notify.Notification{
				UserID:   userID,
				Subject:  "Storage running low",
				Message:  fmt.Sprintf("%d bytes of storage left.", sub.Remaining()),
				Template: notify.TemplateQuotaLow,
			}
		}
		s.d.notifyAfterCommit(r, n)

		res = &UploadResult{File: f, Subscription: sub}
		return nil
	})

	orphans := stored
	if err == nil && len(stored) > 0 {
		orphans = stored[:len(stored)-1]
	}
	for _, path := range orphans {
		if derr := s.d.Blobs.Delete(context.WithoutCancel(ctx), path); derr != nil {
			s.d.Log.Error(ctx, "failed to delete orphaned blob", "path", path, "error", derr)
		}
	}

	if err != nil {
		return nil, outcome(err)
	}
	return res, nil
}

// DeleteFile removes the record and releases its quota. The blob is
// deleted after commit.
func (s *FileService) DeleteFile(ctx context.Context, p *access.Principal, fileID string) error {
	if err := access.Authorize(p, access.FilesDelete); err != nil {
		return err
	}
	err := s.d.Tx.Do(ctx, "delete_file", func(ctx context.Context, r *uow.Repos) error {
		f, err := s.ownedFile(ctx, r, p, fileID, access.FilesDelete)
		if err != nil {
			return err
		}
		if err := r.Files.Delete(ctx, f.ID); err != nil {
			return fmt.Errorf("error deleting file record: %w", err)
		}
		if _, err := s.d.Quota.Release(ctx, r.Subscriptions, f.SubscriptionID, f.Size); err != nil {
			return err
		}
		r.AfterCommit(func(ctx context.Context) {
			if err := s.d.Blobs.Delete(ctx, f.StoragePath); err != nil {
				s.d.Log.Error(ctx, "failed to delete blob", "file_id", f.ID, "path", f.StoragePath, "error", err)
			}
		})
		return nil
	})
	return outcome(err)
}

func (s *FileService) ListFiles(ctx context.Context, p *access.Principal, userID string) ([]*models.File, error) {
	if err := access.AuthorizeOwner(p, userID); err != nil {
		return nil, err
	}
	var out []*models.File
	err := s.d.Tx.Do(ctx, "list_files", func(ctx context.Context, r *uow.Repos) error {
		var err error
		out, err = r.Files.ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, outcome(err)
	}
	return out, nil
}

// DownloadURL returns a short-lived link to the file content.
func (s *FileService) DownloadURL(ctx context.Context, p *access.Principal, fileID string) (string, error) {
	var f *models.File
	err := s.d.Tx.Do(ctx, "get_file", func(ctx context.Context, r *uow.Repos) error {
		var err error
		f, err = s.ownedFile(ctx, r, p, fileID)
		return err
	})
	if err != nil {
		return "", outcome(err)
	}
	url, err := s.d.Blobs.PresignGet(ctx, f.StoragePath)
	if err != nil {
		return "", common.ExternalService("presign failed", err)
	}
	return url, nil
}

func (s *FileService) ownedFile(ctx context.Context, r *uow.Repos, p *access.Principal, fileID string, required ...access.Permission) (*models.File, error) {
	f, err := r.Files.GetByID(ctx, fileID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.NotFound("file not found")
	}
	if err != nil {
		return nil, err
	}
	if err := access.AuthorizeOwner(p, f.UserID, required...); err != nil {
		return nil, err
	}
	return f, nil
}
