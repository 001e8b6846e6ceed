package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/bioverify/internal/biometric"
)

// EnrollmentTemplate is the stored reference vector for one (user,
// modality) enrollment. Templates are soft-deleted: re-enrollment and
// deletion flip is_active, preserving history. At most one row per (user,
// modality) is active.
type EnrollmentTemplate struct {
	ID            string    `gorm:"column:id;primaryKey;size:36"`
	UserID        string    `gorm:"column:user_id;size:64;index:idx_templates_user_modality"`
	Modality      string    `gorm:"column:modality;size:16;index:idx_templates_user_modality"`
	FeatureVector string    `gorm:"column:feature_vector;type:text"`
	Dimension     int       `gorm:"column:dimension"`
	IsActive      bool      `gorm:"column:is_active;index"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

// TableName overrides the default table name.
func (EnrollmentTemplate) TableName() string {
	return "enrollment_templates"
}

// Vector deserializes the stored feature vector.
func (t *EnrollmentTemplate) Vector() (biometric.FeatureVector, error) {
	var vector biometric.FeatureVector
	if err := json.Unmarshal([]byte(t.FeatureVector), &vector); err != nil {
		return nil, fmt.Errorf("corrupt feature vector for template %s: %w", t.ID, err)
	}
	return vector, nil
}

// TemplateRepository provides the enrollment template store.
type TemplateRepository struct {
	db *gorm.DB
	retrier
}

// NewTemplateRepository creates a new repository instance.
func NewTemplateRepository(db *gorm.DB, logger *zap.Logger) *TemplateRepository {
	return &TemplateRepository{db: db, retrier: newRetrier(logger.Named("template_repository"))}
}

// AutoMigrate ensures the schema is available.
func (r *TemplateRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&EnrollmentTemplate{})
}

// GetActiveTemplate loads the active template for a (user, modality) pair.
// Missing enrollment is reported as ErrNoActiveTemplate.
func (r *TemplateRepository) GetActiveTemplate(ctx context.Context, userID string, modality biometric.Modality) (*EnrollmentTemplate, error) {
	var template EnrollmentTemplate
	err := r.executeWithRetry(ctx, "templates.get_active", "", func() error {
		return r.db.WithContext(ctx).
			First(&template, "user_id = ? AND modality = ? AND is_active = ?", userID, string(modality), true).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveTemplate
		}
		return nil, err
	}
	return &template, nil
}

// ReplaceActiveTemplate deactivates any existing active template for the
// pair and inserts the new vector as the active one, atomically. This is
// the only write path for enrollment, which keeps the single-active
// invariant local to one transaction.
func (r *TemplateRepository) ReplaceActiveTemplate(ctx context.Context, userID string, modality biometric.Modality, vector biometric.FeatureVector) (*EnrollmentTemplate, error) {
	serialized, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("serialize feature vector: %w", err)
	}

	now := time.Now().UTC()
	template := &EnrollmentTemplate{
		ID:            uuid.NewString(),
		UserID:        userID,
		Modality:      string(modality),
		FeatureVector: string(serialized),
		Dimension:     vector.Dimension(),
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = r.executeWithRetry(ctx, "templates.replace_active", "", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&EnrollmentTemplate{}).
				Where("user_id = ? AND modality = ? AND is_active = ?", userID, string(modality), true).
				Updates(map[string]interface{}{"is_active": false, "updated_at": now}).Error; err != nil {
				return err
			}
			return tx.Create(template).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return template, nil
}

// DeactivateTemplate soft-deletes the active template for a modality. The
// active-count check runs inside the same transaction as the update, so a
// refused deletion mutates nothing.
func (r *TemplateRepository) DeactivateTemplate(ctx context.Context, userID string, modality biometric.Modality, minActiveMethods int) error {
	return r.executeWithRetry(ctx, "templates.deactivate", "", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var template EnrollmentTemplate
			if err := tx.First(&template, "user_id = ? AND modality = ? AND is_active = ?", userID, string(modality), true).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrTemplateNotFound
				}
				return err
			}

			var active int64
			if err := tx.Model(&EnrollmentTemplate{}).
				Where("user_id = ? AND is_active = ?", userID, true).
				Count(&active).Error; err != nil {
				return err
			}
			if !deletionAllowed(int(active), minActiveMethods) {
				return &biometric.MinimumMethodsError{Active: int(active), Minimum: minActiveMethods}
			}

			return tx.Model(&template).
				Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now().UTC()}).Error
		})
	})
}

// deletionAllowed reports whether deactivating one of the user's active
// templates still leaves at least minActiveMethods active modalities.
func deletionAllowed(active, minActiveMethods int) bool {
	return active-1 >= minActiveMethods
}

// ListActiveTemplates returns the user's active enrollments across
// modalities, oldest first.
func (r *TemplateRepository) ListActiveTemplates(ctx context.Context, userID string) ([]*EnrollmentTemplate, error) {
	var templates []*EnrollmentTemplate
	err := r.executeWithRetry(ctx, "templates.list_active", "", func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND is_active = ?", userID, true).
			Order("created_at asc").
			Find(&templates).Error
	})
	if err != nil {
		return nil, err
	}
	return templates, nil
}

// CountActiveTemplates returns the number of active modalities for a user.
func (r *TemplateRepository) CountActiveTemplates(ctx context.Context, userID string) (int, error) {
	var count int64
	err := r.executeWithRetry(ctx, "templates.count_active", "", func() error {
		return r.db.WithContext(ctx).Model(&EnrollmentTemplate{}).
			Where("user_id = ? AND is_active = ?", userID, true).
			Count(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
