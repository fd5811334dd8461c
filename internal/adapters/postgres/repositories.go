package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gigforge/escrow-engine/internal/contracts"
	"github.com/gigforge/escrow-engine/internal/domain"
	"github.com/gigforge/escrow-engine/internal/ports"
)

type Repositories struct {
	Jobs        ports.JobRepository
	Withdrawals ports.WithdrawalRepository
	Idempotency ports.IdempotencyRepository
	Outbox      ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Jobs:        &jobRepository{db: db},
		Withdrawals: &withdrawalRepository{db: db},
		Idempotency: &idempotencyRepository{db: db},
		Outbox:      &outboxRepository{db: db},
	}
}

type jobModel struct {
	JobID            uint64     `gorm:"column:job_id;primaryKey;autoIncrement"`
	Client           string     `gorm:"column:client;index"`
	Freelancer       string     `gorm:"column:freelancer;index"`
	Arbiter          string     `gorm:"column:arbiter"`
	TotalAmount      int64      `gorm:"column:total_amount"`
	CurrentMilestone int        `gorm:"column:current_milestone"`
	State            string     `gorm:"column:state"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
	FundedAt         *time.Time `gorm:"column:funded_at"`
}

func (jobModel) TableName() string { return "jobs" }

type milestoneModel struct {
	JobID  uint64 `gorm:"column:job_id;primaryKey"`
	Idx    int    `gorm:"column:idx;primaryKey"`
	Amount int64  `gorm:"column:amount"`
	State  string `gorm:"column:state"`
}

func (milestoneModel) TableName() string { return "job_milestones" }

type withdrawalModel struct {
	Identity         string    `gorm:"column:identity;primaryKey"`
	Owed             int64     `gorm:"column:owed"`
	LifetimeCredited int64     `gorm:"column:lifetime_credited"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (withdrawalModel) TableName() string { return "withdrawal_accounts" }

type outboxModel struct {
	RecordID   string     `gorm:"column:record_id;primaryKey"`
	EventClass string     `gorm:"column:event_class"`
	Envelope   []byte     `gorm:"column:envelope;type:jsonb"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	SentAt     *time.Time `gorm:"column:sent_at;index"`
}

func (outboxModel) TableName() string { return "outbox_records" }

type idempotencyModel struct {
	Key          string    `gorm:"column:idem_key;primaryKey"`
	RequestHash  string    `gorm:"column:request_hash"`
	ResponseCode int       `gorm:"column:response_code"`
	ResponseBody []byte    `gorm:"column:response_body"`
	ExpiresAt    time.Time `gorm:"column:expires_at;index"`
}

func (idempotencyModel) TableName() string { return "idempotency_records" }

type jobRepository struct{ db *gorm.DB }

func (r *jobRepository) Create(ctx context.Context, row domain.Job) (uint64, error) {
	model := jobModel{
		Client:           row.Client,
		Freelancer:       row.Freelancer,
		Arbiter:          row.Arbiter,
		TotalAmount:      row.TotalAmount,
		CurrentMilestone: row.CurrentMilestone,
		State:            string(row.State),
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
		FundedAt:         row.FundedAt,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		milestones := make([]milestoneModel, len(row.Milestones))
		for i, m := range row.Milestones {
			milestones[i] = milestoneModel{JobID: model.JobID, Idx: i, Amount: m.Amount, State: string(m.State)}
		}
		return tx.Create(&milestones).Error
	})
	if err != nil {
		return 0, err
	}
	return model.JobID, nil
}

func (r *jobRepository) GetByID(ctx context.Context, jobID uint64) (domain.Job, error) {
	var model jobModel
	if err := r.db.WithContext(ctx).First(&model, "job_id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Job{}, domain.ErrNotFound
		}
		return domain.Job{}, err
	}
	var milestones []milestoneModel
	if err := r.db.WithContext(ctx).Where("job_id = ?", jobID).Order("idx asc").Find(&milestones).Error; err != nil {
		return domain.Job{}, err
	}
	out := domain.Job{
		JobID:            model.JobID,
		Client:           model.Client,
		Freelancer:       model.Freelancer,
		Arbiter:          model.Arbiter,
		TotalAmount:      model.TotalAmount,
		CurrentMilestone: model.CurrentMilestone,
		State:            domain.JobState(model.State),
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
		FundedAt:         model.FundedAt,
		Milestones:       make([]domain.Milestone, len(milestones)),
	}
	for i, m := range milestones {
		out.Milestones[i] = domain.Milestone{Amount: m.Amount, State: domain.MilestoneState(m.State)}
	}
	return out, nil
}

func (r *jobRepository) Update(ctx context.Context, row domain.Job) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&jobModel{}).Where("job_id = ?", row.JobID).Updates(map[string]any{
			"current_milestone": row.CurrentMilestone,
			"state":             string(row.State),
			"updated_at":        row.UpdatedAt,
			"funded_at":         row.FundedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		for i, m := range row.Milestones {
			if err := tx.Model(&milestoneModel{}).
				Where("job_id = ? AND idx = ?", row.JobID, i).
				Update("state", string(m.State)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

type withdrawalRepository struct{ db *gorm.DB }

func (r *withdrawalRepository) Get(ctx context.Context, identity string) (domain.WithdrawalAccount, error) {
	var model withdrawalModel
	if err := r.db.WithContext(ctx).First(&model, "identity = ?", identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.WithdrawalAccount{Identity: identity}, nil
		}
		return domain.WithdrawalAccount{}, err
	}
	return domain.WithdrawalAccount{Identity: model.Identity, Owed: model.Owed, LifetimeCredited: model.LifetimeCredited, UpdatedAt: model.UpdatedAt}, nil
}

func (r *withdrawalRepository) Credit(ctx context.Context, identity string, amount int64, at time.Time) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "identity"}},
		DoUpdates: clause.Assignments(map[string]any{
			"owed":              gorm.Expr("withdrawal_accounts.owed + ?", amount),
			"lifetime_credited": gorm.Expr("withdrawal_accounts.lifetime_credited + ?", amount),
			"updated_at":        at,
		}),
	}).Create(&withdrawalModel{Identity: identity, Owed: amount, LifetimeCredited: amount, UpdatedAt: at}).Error
}

func (r *withdrawalRepository) Zero(ctx context.Context, identity string, at time.Time) (int64, error) {
	var drained int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model withdrawalModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "identity = ?", identity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		drained = model.Owed
		if drained == 0 {
			return nil
		}
		return tx.Model(&withdrawalModel{}).Where("identity = ?", identity).Updates(map[string]any{
			"owed":       0,
			"updated_at": at,
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return drained, nil
}

func (r *withdrawalRepository) Restore(ctx context.Context, identity string, amount int64, at time.Time) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "identity"}},
		DoUpdates: clause.Assignments(map[string]any{
			"owed":       gorm.Expr("withdrawal_accounts.owed + ?", amount),
			"updated_at": at,
		}),
	}).Create(&withdrawalModel{Identity: identity, Owed: amount, UpdatedAt: at}).Error
}

type idempotencyRepository struct{ db *gorm.DB }

func (r *idempotencyRepository) Get(ctx context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	var model idempotencyModel
	if err := r.db.WithContext(ctx).First(&model, "idem_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if now.After(model.ExpiresAt) {
		_ = r.db.WithContext(ctx).Delete(&idempotencyModel{}, "idem_key = ?", key).Error
		return nil, nil
	}
	return &ports.IdempotencyRecord{Key: model.Key, RequestHash: model.RequestHash, ResponseCode: model.ResponseCode, ResponseBody: model.ResponseBody, ExpiresAt: model.ExpiresAt}, nil
}

func (r *idempotencyRepository) Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error {
	err := r.db.WithContext(ctx).Create(&idempotencyModel{Key: key, RequestHash: requestHash, ExpiresAt: expiresAt}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrConflict
	}
	return err
}

func (r *idempotencyRepository) Complete(ctx context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	res := r.db.WithContext(ctx).Model(&idempotencyModel{}).Where("idem_key = ?", key).Updates(map[string]any{
		"response_code": responseCode,
		"response_body": responseBody,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type outboxRepository struct{ db *gorm.DB }

func (r *outboxRepository) Enqueue(ctx context.Context, record ports.OutboxRecord) error {
	envelope, err := json.Marshal(record.Envelope)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Create(&outboxModel{
		RecordID:   record.RecordID,
		EventClass: record.EventClass,
		Envelope:   envelope,
		CreatedAt:  record.CreatedAt,
		SentAt:     record.SentAt,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrConflict
	}
	return err
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []outboxModel
	if err := r.db.WithContext(ctx).Where("sent_at IS NULL").Order("created_at asc").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]ports.OutboxRecord, 0, len(models))
	for _, m := range models {
		var envelope contracts.EventEnvelope
		if err := json.Unmarshal(m.Envelope, &envelope); err != nil {
			return nil, err
		}
		out = append(out, ports.OutboxRecord{RecordID: m.RecordID, EventClass: m.EventClass, Envelope: envelope, CreatedAt: m.CreatedAt, SentAt: m.SentAt})
	}
	return out, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, recordID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&outboxModel{}).Where("record_id = ?", recordID).Update("sent_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
