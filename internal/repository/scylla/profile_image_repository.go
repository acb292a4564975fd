package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"attendance-service/internal/encryption"
	"attendance-service/internal/hashing"
	"attendance-service/internal/util"
)

// ScyllaProfileImageRepository stores biometric reference images, envelope
// encrypted, keyed by employee id.
type ScyllaProfileImageRepository struct {
	client     *ScyllaClient
	encryption *encryption.Manager
}

var _ ProfileImageRepository = (*ScyllaProfileImageRepository)(nil)

func NewProfileImageRepository(client *ScyllaClient, encryption *encryption.Manager) *ScyllaProfileImageRepository {
	return &ScyllaProfileImageRepository{
		client:     client,
		encryption: encryption,
	}
}

func (r *ScyllaProfileImageRepository) GetReferenceImage(ctx context.Context, employeeID string) ([]byte, error) {
	var (
		storedID     string
		ciphertext   []byte
		encryptedDEK []byte
		keyID        string
		contentHash  string
		updatedAt    time.Time
	)

	query := r.client.Prepared.GetProfileImage.WithContext(ctx).Bind(employeeID)

	err := r.client.ScanWithRetry(query,
		&storedID, &ciphertext, &encryptedDEK, &keyID, &contentHash, &updatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		util.Error("Failed to get reference image",
			zap.String("employee_id", employeeID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get reference image: %w", err)
	}

	image, err := r.encryption.DecryptBlob(ctx, &encryption.EncryptedBlob{
		Ciphertext:   ciphertext,
		EncryptedDEK: encryptedDEK,
		KeyID:        keyID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt reference image: %w", err)
	}

	if !hashing.VerifyContentHash(image, contentHash) {
		return nil, fmt.Errorf("reference image integrity check failed for employee %s", employeeID)
	}

	return image, nil
}

func (r *ScyllaProfileImageRepository) PutReferenceImage(ctx context.Context, employeeID string, image []byte) error {
	blob, err := r.encryption.EncryptBlob(ctx, image)
	if err != nil {
		return fmt.Errorf("failed to encrypt reference image: %w", err)
	}

	query := r.client.Prepared.UpsertProfileImage.WithContext(ctx).Bind(
		employeeID, blob.Ciphertext, blob.EncryptedDEK, blob.KeyID,
		hashing.ContentHash(image), time.Now().UTC())

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to store reference image",
			zap.String("employee_id", employeeID),
			zap.Error(err))
		return fmt.Errorf("failed to store reference image: %w", err)
	}

	util.Info("Reference image stored",
		zap.String("employee_id", employeeID),
		zap.String("key_id", blob.KeyID))

	return nil
}
