package member

import (
	"context"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"loyaltyplane/pkg/db/option"
	"loyaltyplane/pkg/repository"
)

var Module = fx.Module("member.store",
	fx.Provide(NewStore),
)

// Store is the narrow persistence contract the ledger and spin services
// consume. FindByID returns (nil, nil) when the member does not exist;
// callers decide whether that is an error.
type Store interface {
	WithTrx(tx *gorm.DB) Store
	FindByID(ctx context.Context, id string) (*Member, error)
	// FindByIDForUpdate locks the member row for the remainder of the
	// surrounding transaction. All balance and spin-eligibility mutations
	// serialise on this lock.
	FindByIDForUpdate(ctx context.Context, id string) (*Member, error)
	UpdatePoints(ctx context.Context, id string, update PointsUpdate) error
	Create(ctx context.Context, m *Member) error
}

type gormStore struct {
	repo repository.Repository[Member]
}

type StoreParams struct {
	fx.In
	DB *gorm.DB
}

func NewStore(p StoreParams) Store {
	return &gormStore{
		repo: repository.ProvideStore[Member](p.DB),
	}
}

func (s *gormStore) WithTrx(tx *gorm.DB) Store {
	return &gormStore{repo: s.repo.WithTrx(tx)}
}

func (s *gormStore) FindByID(ctx context.Context, id string) (*Member, error) {
	return s.repo.FindOne(ctx, &Member{ID: id})
}

func (s *gormStore) FindByIDForUpdate(ctx context.Context, id string) (*Member, error) {
	return s.repo.FindOne(ctx, &Member{ID: id}, option.WithLockingUpdate())
}

func (s *gormStore) UpdatePoints(ctx context.Context, id string, update PointsUpdate) error {
	return s.repo.Update(ctx, id, map[string]any{
		"points_balance":        update.PointsBalance,
		"total_points_earned":   update.TotalPointsEarned,
		"total_points_redeemed": update.TotalPointsRedeemed,
		"updated_at":            time.Now(),
	})
}

func (s *gormStore) Create(ctx context.Context, m *Member) error {
	return s.repo.Create(ctx, m)
}
