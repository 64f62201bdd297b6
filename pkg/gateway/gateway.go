package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/rclone-api-go/internal/models"
	"github.com/denysvitali/rclone-api-go/pkg/errcodes"
	"github.com/denysvitali/rclone-api-go/pkg/rclone"
)

const (
	CopyCompleteMessage = "Encrypted Copy Complete!"
	copyFailedMessage   = "Failed to copy data."

	CopyInvalidPayload   = `Invalid JSON payload. Please provide "source" and "destination" paths.`
	DeleteInvalidPayload = `Invalid JSON payload. Please provide "remote_path" for the file to delete.`

	listCommandFailed = "Failed to list synced files. Rclone command failed."
	listNoFilesFound  = "Failed to list synced files. No files found."
)

// Syncer is the subset of the rclone client the gateway drives
type Syncer interface {
	RemotePath(path string) string
	Copy(ctx context.Context, source, destination string) error
	Delete(ctx context.Context, remotePath string) error
	List(ctx context.Context) ([]models.ListEntry, error)
}

// Service turns requests into rclone operations and rclone outcomes into
// either a result or an *errcodes.Error.
type Service struct {
	syncer              Syncer
	logger              *logrus.Logger
	emptyListingIsError bool
}

// New creates a gateway service
func New(syncer Syncer, logger *logrus.Logger, emptyListingIsError bool) *Service {
	return &Service{
		syncer:              syncer,
		logger:              logger,
		emptyListingIsError: emptyListingIsError,
	}
}

// Copy copies req.Source to req.Destination under the remote
func (s *Service) Copy(ctx context.Context, req models.CopyRequest) (string, error) {
	if req.Source == "" || req.Destination == "" {
		return "", errcodes.BadRequest(CopyInvalidPayload)
	}

	err := s.syncer.Copy(ctx, req.Source, req.Destination)
	if err != nil {
		var cmdErr *rclone.CommandError
		if errors.As(err, &cmdErr) {
			s.logger.Errorf("Copy failed: %s", cmdErr.Error())
			return "", errcodes.UpstreamFailureText(copyFailedMessage, err)
		}
		s.logger.Errorf("Exception occurred: %v", err)
		return "", errcodes.Internal(err)
	}

	return CopyCompleteMessage, nil
}

// Delete removes req.RemotePath from the remote
func (s *Service) Delete(ctx context.Context, req models.DeleteRequest) (*models.MessageResponse, error) {
	if req.RemotePath == "" {
		return nil, errcodes.BadRequest(DeleteInvalidPayload)
	}

	fullPath := s.syncer.RemotePath(req.RemotePath)
	if err := s.syncer.Delete(ctx, req.RemotePath); err != nil {
		s.logger.Errorf("Failed to delete the file. Error: %v", err)
		return nil, errcodes.UpstreamFailure(fmt.Sprintf("Failed to delete the file. Error: %v", err), err)
	}

	s.logger.Infof("File %q deleted successfully.", fullPath)
	return &models.MessageResponse{
		Message: fmt.Sprintf("File %q deleted successfully.", fullPath),
	}, nil
}

// List returns the names of all files below the remote root, directories excluded
func (s *Service) List(ctx context.Context) (*models.FileListResponse, error) {
	entries, err := s.syncer.List(ctx)
	if err != nil {
		var cmdErr *rclone.CommandError
		if errors.As(err, &cmdErr) {
			s.logger.WithField("exit_code", cmdErr.ExitCode).Errorf("Rclone command failed: %s", cmdErr.Error())
			return nil, errcodes.UpstreamFailure(listCommandFailed, err)
		}
		s.logger.Errorf("Exception occurred: %v", err)
		return nil, errcodes.Internal(err)
	}

	if len(entries) == 0 && s.emptyListingIsError {
		s.logger.Error("Listing failed: No files found.")
		return nil, errcodes.UpstreamFailure(listNoFilesFound, nil)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		files = append(files, entry.Name)
	}

	return &models.FileListResponse{Files: files}, nil
}
