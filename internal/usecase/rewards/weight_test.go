package rewards

import (
	"testing"

	"github.com/shopspring/decimal"

	"steps-rewards/internal/domain"
)

func TestWeightMultipliers(t *testing.T) {
	policy := DefaultPolicy()

	base := policy.Weight(8000, domain.TierBase, nil)
	mid := policy.Weight(8000, domain.TierMid, nil)
	premium := policy.Weight(8000, domain.TierPremium, nil)

	if !base.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("ожидали вес 8000 для base, получили %s", base)
	}
	if !mid.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("ожидали вес 10000 для mid, получили %s", mid)
	}
	if !premium.Equal(decimal.NewFromInt(12000)) {
		t.Fatalf("ожидали вес 12000 для premium, получили %s", premium)
	}
	if !base.LessThan(mid) || !mid.LessThan(premium) {
		t.Fatalf("вес должен расти с тарифом: %s / %s / %s", base, mid, premium)
	}
}

func TestWeightAgeHasNoEffect(t *testing.T) {
	policy := DefaultPolicy()
	minor, adult := 10, 35

	withMinor := policy.Weight(8000, domain.TierMid, &minor)
	withAdult := policy.Weight(8000, domain.TierMid, &adult)
	withNil := policy.Weight(8000, domain.TierMid, nil)

	if !withMinor.Equal(withAdult) || !withAdult.Equal(withNil) {
		t.Fatalf("возраст не должен влиять на вес: %s / %s / %s", withMinor, withAdult, withNil)
	}
}

func TestWeightNonPositive(t *testing.T) {
	policy := DefaultPolicy()
	if !policy.Weight(0, domain.TierPremium, nil).IsZero() {
		t.Fatalf("ожидали нулевой вес при нулевой активности")
	}
	if !policy.Weight(-5, domain.TierPremium, nil).IsZero() {
		t.Fatalf("ожидали нулевой вес при отрицательной активности")
	}
}

func TestWeightUnknownTierFallsBack(t *testing.T) {
	policy := DefaultPolicy()
	got := policy.Weight(1000, domain.SubscriptionTier("vip"), nil)
	if !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("неизвестный тариф должен получать множитель по умолчанию, получили %s", got)
	}
}
