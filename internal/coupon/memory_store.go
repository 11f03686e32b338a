package coupon

import (
	"context"
	"strings"
	"sync"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

// MemoryStore implements Store with in-memory storage for tests and local runs.
type MemoryStore struct {
	mu          sync.Mutex
	coupons     map[int64]*domain.Coupon
	redemptions []domain.CouponRedemption
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		coupons: make(map[int64]*domain.Coupon),
	}
}

func (s *MemoryStore) SetCoupon(c domain.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons[c.ID] = &c
}

func (s *MemoryStore) GetByCode(_ context.Context, code string) (domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.coupons {
		if strings.EqualFold(c.Code, code) {
			return *c, nil
		}
	}
	return domain.Coupon{}, ErrCouponNotFound
}

func (s *MemoryStore) CountRedemptions(_ context.Context, couponID int64, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, r := range s.redemptions {
		if r.CouponID == couponID && r.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Redeem(_ context.Context, redemption domain.CouponRedemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.coupons[redemption.CouponID]
	if !exists {
		return ErrCouponNotFound
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}

	c.UsageCount++
	s.redemptions = append(s.redemptions, redemption)
	return nil
}

// Redemptions returns a copy of all recorded redemptions.
func (s *MemoryStore) Redemptions() []domain.CouponRedemption {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CouponRedemption, len(s.redemptions))
	copy(out, s.redemptions)
	return out
}
