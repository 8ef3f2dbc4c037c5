package envelope

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyat/capital/internal/money"
)

func usd(s string) money.Money { return money.MustParse(s, money.USD) }
func hkd(s string) money.Money { return money.MustParse(s, money.HKD) }

func ptr[T any](v T) *T { return &v }

func TestStartNewPeriod_AutoNet(t *testing.T) {
	e := &Envelope{
		ID:            "env_dining",
		Status:        Active,
		Balance:       usd("-30"),
		Rollover:      ResetToZero{},
		Funding:       &Funding{Amount: usd("100"), Frequency: Monthly},
		AllowNegative: true,
		DeficitPolicy: AutoNet,
	}

	changed, err := e.StartNewPeriod(2024, 5)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, e.Balance.Equal(usd("70")), "balance = %s", e.Balance)
	assert.Equal(t, "2024-05", e.LastPeriod)
}

func TestStartNewPeriod_SinkingFundCap(t *testing.T) {
	e := &Envelope{
		ID:       "env_travel",
		Status:   Active,
		Balance:  hkd("9500"),
		Rollover: SinkingFund{Cap: ptr(hkd("10000"))},
		Funding:  &Funding{Amount: hkd("2000"), Frequency: Monthly},
	}

	_, err := e.StartNewPeriod(2024, 6)
	require.NoError(t, err)
	assert.True(t, e.Balance.Equal(hkd("10000")), "balance = %s", e.Balance)
}

func TestStartNewPeriod_Rollover(t *testing.T) {
	tests := []struct {
		name     string
		env      Envelope
		expected string
	}{
		{
			name:     "reset clears positive",
			env:      Envelope{Balance: usd("40"), Rollover: ResetToZero{}},
			expected: "0",
		},
		{
			name:     "reset clears deficit when negatives disallowed",
			env:      Envelope{Balance: usd("-40"), Rollover: ResetToZero{}},
			expected: "0",
		},
		{
			name:     "reset carries permitted deficit",
			env:      Envelope{Balance: usd("-40"), Rollover: ResetToZero{}, AllowNegative: true},
			expected: "-40",
		},
		{
			name:     "carryover below cap",
			env:      Envelope{Balance: usd("40"), Rollover: CarryOver{Cap: ptr(usd("50"))}},
			expected: "40",
		},
		{
			name:     "carryover clipped",
			env:      Envelope{Balance: usd("80"), Rollover: CarryOver{Cap: ptr(usd("50"))}},
			expected: "50",
		},
		{
			name:     "cap in other currency ignored",
			env:      Envelope{Balance: usd("80"), Rollover: CarryOver{Cap: ptr(hkd("50"))}},
			expected: "80",
		},
		{
			name:     "decay",
			env:      Envelope{Balance: usd("100"), Rollover: Decay{KeepRatio: decimal.RequireFromString("0.5")}},
			expected: "50",
		},
		{
			name:     "decay then cap",
			env:      Envelope{Balance: usd("100"), Rollover: Decay{KeepRatio: decimal.RequireFromString("0.9"), Cap: ptr(usd("60"))}},
			expected: "60",
		},
		{
			name: "carryover funding not clipped",
			env: Envelope{Balance: usd("50"), Rollover: CarryOver{Cap: ptr(usd("50"))},
				Funding: &Funding{Amount: usd("25"), Frequency: Monthly}},
			expected: "75",
		},
		{
			name: "require transfer still funds",
			env: Envelope{Balance: usd("-30"), Rollover: ResetToZero{}, AllowNegative: true, DeficitPolicy: RequireTransfer,
				Funding: &Funding{Amount: usd("20"), Frequency: Monthly}},
			expected: "-10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.env
			e.ID = "env"
			e.Status = Active
			_, err := e.StartNewPeriod(2024, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, e.Balance.Amount.String())
		})
	}
}

func TestStartNewPeriod_Idempotent(t *testing.T) {
	e := &Envelope{
		ID:       "env",
		Status:   Active,
		Balance:  usd("10"),
		Rollover: CarryOver{},
		Funding:  &Funding{Amount: usd("100"), Frequency: Monthly},
	}

	_, err := e.StartNewPeriod(2024, 3)
	require.NoError(t, err)
	first := e.Balance

	changed, err := e.StartNewPeriod(2024, 3)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, first.Equal(e.Balance))
}

func TestStartNewPeriod_Inactive(t *testing.T) {
	e := &Envelope{
		ID:       "env",
		Status:   Inactive,
		Balance:  usd("25"),
		Rollover: ResetToZero{},
		Funding:  &Funding{Amount: usd("100"), Frequency: Monthly},
	}

	changed, err := e.StartNewPeriod(2024, 7)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "2024-07", e.LastPeriod)
	assert.True(t, e.Balance.Equal(usd("25")))
}

func TestStartNewPeriod_FundingMismatch(t *testing.T) {
	e := &Envelope{
		ID:       "env",
		Status:   Active,
		Balance:  usd("0"),
		Rollover: ResetToZero{},
		Funding:  &Funding{Amount: hkd("100"), Frequency: Monthly},
	}

	_, err := e.StartNewPeriod(2024, 1)
	var mismatch *money.CurrencyMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestRolloverCapProperty(t *testing.T) {
	limit := usd("100")
	policies := []Rollover{
		CarryOver{Cap: &limit},
		SinkingFund{Cap: &limit},
		Decay{KeepRatio: decimal.RequireFromString("0.75"), Cap: &limit},
	}
	for _, p := range policies {
		for _, start := range []string{"-50", "0", "99.99", "100", "1000", "123456.78"} {
			e := &Envelope{ID: "env", Status: Active, Balance: usd(start), Rollover: p}
			_, err := e.StartNewPeriod(2025, 1)
			require.NoError(t, err)
			assert.False(t, e.Balance.Amount.GreaterThan(limit.Amount), "%s from %s -> %s", p.Name(), start, e.Balance)
		}
	}
}

func TestDecayMonotonic(t *testing.T) {
	for _, k := range []string{"0", "0.1", "0.5", "0.999", "1"} {
		e := &Envelope{ID: "env", Status: Active, Balance: usd("250"), Rollover: Decay{KeepRatio: decimal.RequireFromString(k)}}
		_, err := e.StartNewPeriod(2025, 2)
		require.NoError(t, err)
		assert.False(t, e.Balance.IsNegative(), "k=%s", k)
		assert.False(t, e.Balance.Amount.GreaterThan(decimal.NewFromInt(250)), "k=%s", k)
	}
}

func TestCreditDebit(t *testing.T) {
	floor := decimal.NewFromInt(-50)

	tests := []struct {
		name    string
		env     Envelope
		debit   money.Money
		wantErr error
		want    string
	}{
		{name: "debit within balance", env: Envelope{Balance: usd("30")}, debit: usd("20"), want: "10"},
		{name: "debit to zero", env: Envelope{Balance: usd("30")}, debit: usd("30"), want: "0"},
		{name: "insufficient funds", env: Envelope{Balance: usd("30")}, debit: usd("30.01"), wantErr: ErrInsufficientFunds},
		{name: "negative allowed above floor", env: Envelope{Balance: usd("30"), AllowNegative: true, MinBalance: &floor}, debit: usd("80"), want: "-50"},
		{name: "below floor", env: Envelope{Balance: usd("30"), AllowNegative: true, MinBalance: &floor}, debit: usd("80.01"), wantErr: ErrMinBalanceExceeded},
		{name: "no floor when unset", env: Envelope{Balance: usd("30"), AllowNegative: true}, debit: usd("1000"), want: "-970"},
		{name: "inactive", env: Envelope{Balance: usd("30"), Status: Inactive}, debit: usd("1"), wantErr: ErrInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.env
			e.ID = "env"
			if e.Status == "" {
				e.Status = Active
			}
			before := e.Balance
			err := e.Debit(tt.debit)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, before.Equal(e.Balance), "balance changed on failure")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Balance.Amount.String())
		})
	}
}

func TestCreditDebit_CurrencyMismatch(t *testing.T) {
	e := &Envelope{ID: "env", Status: Active, Balance: usd("10")}
	var mismatch *money.CurrencyMismatchError
	assert.ErrorAs(t, e.Credit(hkd("1")), &mismatch)
	assert.ErrorAs(t, e.Debit(hkd("1")), &mismatch)
	assert.ErrorIs(t, e.Credit(usd("-1")), ErrNegativeAmount)

	require.NoError(t, e.Credit(usd("5.50")))
	assert.True(t, e.Balance.Equal(usd("15.50")))
}

func TestValidate(t *testing.T) {
	good := Envelope{ID: "env", Status: Active, Balance: usd("0"), Rollover: ResetToZero{}}
	require.NoError(t, good.Validate())

	bad := good
	bad.Rollover = Decay{KeepRatio: decimal.RequireFromString("1.5")}
	assert.Error(t, bad.Validate())

	bad = good
	bad.Funding = &Funding{Amount: hkd("1"), Frequency: Monthly}
	assert.Error(t, bad.Validate())

	bad = good
	bad.MinBalance = ptr(decimal.NewFromInt(5))
	assert.Error(t, bad.Validate())
}
