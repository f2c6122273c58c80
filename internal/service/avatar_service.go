package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/DevOwais28/Expense-Tracker/internal/ids"
	"github.com/DevOwais28/Expense-Tracker/internal/media/sniffer"
)

// AvatarUpload is one multipart file part.
type AvatarUpload struct {
	File   io.Reader
	Header http.Header
}

type AvatarStore interface {
	PutAvatar(ctx context.Context, userID, objectID string, data []byte, contentType, ext string) (string, error)
}

type AvatarService struct {
	store   AvatarStore
	maxSize int64
	log     zerolog.Logger
}

func NewAvatarService(store AvatarStore, maxSize int64, log zerolog.Logger) *AvatarService {
	if maxSize <= 0 {
		maxSize = 2 << 20
	}
	return &AvatarService{store: store, maxSize: maxSize, log: log}
}

// Upload validates the image by content and stores it, returning its URL.
func (s *AvatarService) Upload(ctx context.Context, userID string, upload AvatarUpload) (string, error) {
	if upload.File == nil {
		return "", ErrInvalidAvatar
	}

	data, err := io.ReadAll(io.LimitReader(upload.File, s.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("read avatar: %w", err)
	}
	if len(data) == 0 {
		return "", ErrInvalidAvatar
	}
	if int64(len(data)) > s.maxSize {
		return "", ErrAvatarTooLarge
	}

	head := data
	if len(head) > sniffer.HeadSize {
		head = head[:sniffer.HeadSize]
	}
	result, err := sniffer.DetectImage(head)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnknownType) {
			return "", ErrInvalidAvatar
		}
		return "", err
	}

	if declared := sniffer.DeclaredMIME(upload.Header); declared != "" && declared != result.MIME {
		s.log.Debug().Str("declared", declared).Str("actual", result.MIME).Msg("avatar content type mismatch")
		return "", ErrInvalidAvatar
	}

	url, err := s.store.PutAvatar(ctx, userID, ids.New(), data, result.MIME, result.Ext())
	if err != nil {
		return "", err
	}
	return url, nil
}
