package rewards

import "github.com/shopspring/decimal"

// SplitShares делит округлённое начисление на личную и семейную доли.
// Порядок правил значим: сначала возраст, потом наличие семьи.
//
//   - младше AdultAge — вся награда в семейную долю;
//   - взрослый в семье — FamilyShareAdult в семью, остаток лично;
//   - без семьи — вся награда лично.
//
// Семейная доля округляется до шести знаков, личная берётся вычитанием,
// поэтому остаток округления оседает в меньшей доле и сумма долей всегда
// в точности равна начислению.
func (p Policy) SplitShares(reward decimal.Decimal, ageYears *int, familyID string) (personal, family decimal.Decimal) {
	switch {
	case ageYears != nil && *ageYears < p.AdultAge:
		return decimal.Zero, reward
	case familyID != "":
		family = reward.Mul(p.FamilyShareAdult).Round(rewardPrecision)
		return reward.Sub(family), family
	default:
		return reward, decimal.Zero
	}
}
