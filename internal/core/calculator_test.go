package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proforma/internal/core"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		lines    []core.PricedLine
		discount string
		fees     []core.Fee
		want     core.Totals
		wantErr  error
	}{
		{
			name: "plain lines",
			lines: []core.PricedLine{
				{UnitPrice: dec("100"), EffectiveQuantity: dec("10")},
				{UnitPrice: dec("50"), EffectiveQuantity: dec("5")},
			},
			discount: "0",
			want:     core.Totals{Subtotal: dec("1250"), DiscountAmount: dec("0"), FeesTotal: dec("0"), Total: dec("1250")},
		},
		{
			name:     "discount then fees",
			lines:    []core.PricedLine{{UnitPrice: dec("200"), EffectiveQuantity: dec("3")}},
			discount: "15",
			fees:     []core.Fee{{Label: "Delivery", Amount: dec("40")}, {Label: "Setup", Amount: dec("10.50")}},
			want:     core.Totals{Subtotal: dec("600"), DiscountAmount: dec("90"), FeesTotal: dec("50.50"), Total: dec("560.50")},
		},
		{
			name:     "discount rounds to cents",
			lines:    []core.PricedLine{{UnitPrice: dec("33.33"), EffectiveQuantity: dec("1")}},
			discount: "12.5",
			want:     core.Totals{Subtotal: dec("33.33"), DiscountAmount: dec("4.17"), FeesTotal: dec("0"), Total: dec("29.16")},
		},
		{
			name:     "full discount keeps fees",
			lines:    []core.PricedLine{{UnitPrice: dec("80"), EffectiveQuantity: dec("2")}},
			discount: "100",
			fees:     []core.Fee{{Label: "Travel", Amount: dec("25")}},
			want:     core.Totals{Subtotal: dec("160"), DiscountAmount: dec("160"), FeesTotal: dec("25"), Total: dec("25")},
		},
		{
			name:     "fractional hours",
			lines:    []core.PricedLine{{UnitPrice: dec("45.50"), EffectiveQuantity: dec("2.25")}},
			discount: "0",
			want:     core.Totals{Subtotal: dec("102.375"), DiscountAmount: dec("0"), FeesTotal: dec("0"), Total: dec("102.375")},
		},
		{name: "discount over 100", lines: []core.PricedLine{{UnitPrice: dec("1"), EffectiveQuantity: dec("1")}}, discount: "101", wantErr: core.ErrValidation},
		{name: "negative discount", lines: []core.PricedLine{{UnitPrice: dec("1"), EffectiveQuantity: dec("1")}}, discount: "-0.5", wantErr: core.ErrValidation},
		{name: "zero price", lines: []core.PricedLine{{UnitPrice: dec("0"), EffectiveQuantity: dec("1")}}, discount: "0", wantErr: core.ErrValidation},
		{name: "negative quantity", lines: []core.PricedLine{{UnitPrice: dec("5"), EffectiveQuantity: dec("-1")}}, discount: "0", wantErr: core.ErrValidation},
		{
			name:     "negative fee",
			lines:    []core.PricedLine{{UnitPrice: dec("5"), EffectiveQuantity: dec("1")}},
			discount: "0",
			fees:     []core.Fee{{Label: "Refund", Amount: dec("-1")}},
			wantErr:  core.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := core.Compute(tt.lines, dec(tt.discount), tt.fees)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, core.KindValidation, core.KindOf(err))
				return
			}
			require.NoError(t, err)
			assertDec(t, tt.want.Subtotal.String(), got.Subtotal, "subtotal")
			assertDec(t, tt.want.DiscountAmount.String(), got.DiscountAmount, "discount")
			assertDec(t, tt.want.FeesTotal.String(), got.FeesTotal, "fees")
			assertDec(t, tt.want.Total.String(), got.Total, "total")
		})
	}
}

func TestEffectiveQuantityByKind(t *testing.T) {
	in := core.LineInput{ArticleID: "X", Quantity: dec("4"), Days: dec("2"), Hours: dec("7.5")}

	for kind, want := range map[core.ArticleKind]string{
		core.ArticleUnit: "4",
		core.ArticleDay:  "2",
		core.ArticleHour: "7.5",
	} {
		got, err := kind.EffectiveQuantity(in)
		require.NoError(t, err)
		assertDec(t, want, got, kind)
	}

	_, err := core.ArticleKind("week").EffectiveQuantity(in)
	assert.ErrorIs(t, err, core.ErrValidation)
}
