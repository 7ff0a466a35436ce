package rewards

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSplitSharesAdultWithFamily(t *testing.T) {
	policy := DefaultPolicy()
	age := 35

	personal, family := policy.SplitShares(decimal.NewFromInt(1000), &age, "fam-1")

	if got := family.StringFixed(6); got != "800.000000" {
		t.Fatalf("ожидали семейную долю 800.000000, получили %s", got)
	}
	if got := personal.StringFixed(6); got != "200.000000" {
		t.Fatalf("ожидали личную долю 200.000000, получили %s", got)
	}
}

func TestSplitSharesMinorAllToFamily(t *testing.T) {
	policy := DefaultPolicy()
	age := 12

	personal, family := policy.SplitShares(decimal.NewFromInt(1000), &age, "fam-1")

	if !personal.IsZero() {
		t.Fatalf("для ребёнка личная доля должна быть нулевой, получили %s", personal)
	}
	if !family.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("вся награда ребёнка идёт в семью, получили %s", family)
	}
}

// Возраст ребёнка перекрывает правило взрослой доли даже без семьи:
// по порядку правил сначала проверяется возраст.
func TestSplitSharesMinorWithoutFamily(t *testing.T) {
	policy := DefaultPolicy()
	age := 10

	personal, family := policy.SplitShares(decimal.NewFromInt(500), &age, "")
	if !personal.IsZero() || !family.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("ожидали 0/500, получили %s/%s", personal, family)
	}
}

func TestSplitSharesNoFamily(t *testing.T) {
	policy := DefaultPolicy()
	age := 40

	personal, family := policy.SplitShares(decimal.NewFromInt(1000), &age, "")
	if !family.IsZero() || !personal.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("без семьи вся награда личная, получили %s/%s", personal, family)
	}

	personal, family = policy.SplitShares(decimal.NewFromInt(777), nil, "")
	if !family.IsZero() || !personal.Equal(decimal.NewFromInt(777)) {
		t.Fatalf("неизвестный возраст без семьи — вся награда личная, получили %s/%s", personal, family)
	}
}

// Остаток округления не теряется: сумма долей всегда в точности равна
// исходному начислению, каким бы неудобным оно ни было.
func TestSplitSharesExactReconstruction(t *testing.T) {
	policy := DefaultPolicy()
	age := 30

	awkward := []string{
		"0.000001",
		"0.000003",
		"12345.678901",
		"2777777777.777778",
		"99.999999",
	}

	for _, raw := range awkward {
		reward := decimal.RequireFromString(raw)
		personal, family := policy.SplitShares(reward, &age, "fam-1")

		if !personal.Add(family).Equal(reward) {
			t.Fatalf("доли не складываются обратно для %s: %s + %s", raw, personal, family)
		}
		if personal.IsNegative() || family.IsNegative() {
			t.Fatalf("доли не могут быть отрицательными для %s: %s / %s", raw, personal, family)
		}
		if family.Exponent() < -6 || personal.Exponent() < -6 {
			t.Fatalf("доли должны умещаться в 6 знаков: %s / %s", personal, family)
		}
	}
}
