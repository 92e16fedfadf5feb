package charges

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func upTo(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestStandard(t *testing.T) {
	got := Standard(dec("10"), StandardParams{UnitPrice: dec("2.5")})
	require.True(t, dec("25.0000").Equal(got), "got %s", got)
}

func TestPackage(t *testing.T) {
	got := Package(dec("7"), PackageParams{
		FreeUnits:   dec("1"),
		PackageSize: dec("3"),
		Amount:      dec("9"),
	})
	require.True(t, dec("18").Equal(got), "got %s", got)
}

func graduatedTiers() []Tier {
	return []Tier{
		{UpTo: upTo("100"), UnitPrice: dec("1")},
		{UpTo: nil, UnitPrice: dec("0.5")},
	}
}

func TestGraduated(t *testing.T) {
	got := Graduated(dec("250"), TieredParams{Tiers: graduatedTiers()})
	require.True(t, dec("175").Equal(got), "got %s", got)
}

func TestVolume(t *testing.T) {
	got := Volume(dec("250"), TieredParams{Tiers: graduatedTiers()})
	require.True(t, dec("125").Equal(got), "got %s", got)
}

func TestPercentage(t *testing.T) {
	got := Percentage(dec("100.00"), 3, PercentageParams{
		Rate:        dec("2.9"),
		FixedAmount: dec("0.30"),
	})
	require.True(t, dec("3.8").Equal(got), "got %s", got)
}

func TestGraduatedPercentage(t *testing.T) {
	got := GraduatedPercentage(dec("1500"), GraduatedPercentageParams{
		Tiers: []PercentageTier{
			{UpTo: upTo("1000"), Rate: dec("2")},
			{UpTo: nil, Rate: dec("1")},
		},
	})
	require.True(t, dec("25").Equal(got), "got %s", got)
}

func TestStandardNegativeUnitsTreatedAsZero(t *testing.T) {
	got := Standard(dec("-5"), StandardParams{UnitPrice: dec("2.5")})
	require.True(t, decimal.Zero.Equal(got))
}

func TestGraduatedEmptyTiers(t *testing.T) {
	got := Graduated(dec("10"), TieredParams{})
	require.True(t, decimal.Zero.Equal(got))
}

func TestPackageZeroPackageSize(t *testing.T) {
	got := Package(dec("10"), PackageParams{PackageSize: decimal.Zero, Amount: dec("5")})
	require.True(t, decimal.Zero.Equal(got))
}

func TestValidateTiersRejectsOpenEndedNotLast(t *testing.T) {
	err := ValidateTiers([]Tier{
		{UpTo: nil, UnitPrice: dec("1")},
		{UpTo: upTo("100"), UnitPrice: dec("2")},
	})
	require.Error(t, err)
}

func TestValidateTiersRejectsNonAscending(t *testing.T) {
	err := ValidateTiers([]Tier{
		{UpTo: upTo("100"), UnitPrice: dec("1")},
		{UpTo: upTo("50"), UnitPrice: dec("2")},
	})
	require.Error(t, err)
}
