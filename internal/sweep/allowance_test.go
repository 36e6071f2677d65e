package sweep

import (
	"math/big"
	"testing"

	"github.com/Fantasim/fcfsweep/internal/models"
)

func TestComputeSendable(t *testing.T) {
	tests := []struct {
		name    string
		balance *big.Int
		reserve *big.Int
		fee     *big.Int
		margin  int64
		want    *big.Int
	}{
		{"balance below reserve", big.NewInt(50), big.NewInt(100), big.NewInt(0), 0, big.NewInt(0)},
		{"balance equals reserve", big.NewInt(100), big.NewInt(100), big.NewInt(0), 0, big.NewInt(0)},
		{"no fee", big.NewInt(1000), big.NewInt(100), big.NewInt(0), 12, big.NewInt(900)},
		{"fee with margin", big.NewInt(1000), big.NewInt(100), big.NewInt(100), 12, big.NewInt(788)},
		{"fee eats everything", big.NewInt(1000), big.NewInt(100), big.NewInt(900), 12, big.NewInt(0)},
		{"margin rounds up", big.NewInt(1000), big.NewInt(0), big.NewInt(1), 12, big.NewInt(998)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeSendable(tt.balance, tt.reserve, tt.fee, tt.margin)
			if got.Cmp(tt.want) != 0 {
				t.Errorf("ComputeSendable = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestComputeSendable_NeverNegativeOrAboveBalance(t *testing.T) {
	reserve := big.NewInt(1_000)
	for _, bal := range []int64{0, 1, 999, 1_000, 1_001, 50_000, 1_000_000} {
		for _, fee := range []int64{0, 1, 100, 10_000, 1_000_000} {
			balance := big.NewInt(bal)
			got := ComputeSendable(balance, reserve, big.NewInt(fee), 12)
			if got.Sign() < 0 {
				t.Fatalf("balance %d fee %d: negative %s", bal, fee, got)
			}
			if limit := new(big.Int).Sub(balance, reserve); got.Sign() > 0 && got.Cmp(limit) > 0 {
				t.Fatalf("balance %d fee %d: %s exceeds balance minus reserve", bal, fee, got)
			}
		}
	}
}

func TestEvaluateNative_HigherBidNeverSendsMore(t *testing.T) {
	balance := ether(1)
	reserve := big.NewInt(100_000_000_000_000)

	prev := EvaluateNative(balance, reserve, big.NewInt(1), models.FeeBid{MaxFeePerGas: gwei(1)}, 12).Amount
	for _, g := range []int64{2, 5, 10, 50, 500, 5_000} {
		got := EvaluateNative(balance, reserve, big.NewInt(1), models.FeeBid{MaxFeePerGas: gwei(g)}, 12).Amount
		if got.Cmp(prev) > 0 {
			t.Fatalf("max fee %d gwei: amount %s grew from %s", g, got, prev)
		}
		prev = got
	}
}

func TestEvaluateNative_Scenario(t *testing.T) {
	bid := models.FeeBid{MaxFeePerGas: gwei(50), MaxPriorityFeePerGas: gwei(2)}
	got := EvaluateNative(ether(1), big.NewInt(100_000_000_000_000), big.NewInt(1_000_000_000_000), bid, 12)

	want, _ := new(big.Int).SetString("998724000000000000", 10)
	if !got.Sendable() {
		t.Fatalf("expected sendable, got reason %q", got.Reason)
	}
	if got.Amount.Cmp(want) != 0 {
		t.Errorf("amount = %s, want %s", got.Amount, want)
	}
}

func TestEvaluateNative_Reasons(t *testing.T) {
	bid := models.FeeBid{MaxFeePerGas: gwei(1)}
	fee := NativeTransferFee(bid) // 21000 gwei

	tests := []struct {
		name    string
		balance *big.Int
		dust    *big.Int
		want    string
	}{
		{"nothing left after fee", new(big.Int).Set(fee), big.NewInt(1), models.SkipInsufficient},
		{"below dust", new(big.Int).Add(WithMargin(fee, 12), big.NewInt(5)), big.NewInt(10), models.SkipBelowDust},
		{"at dust", new(big.Int).Add(WithMargin(fee, 12), big.NewInt(10)), big.NewInt(10), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateNative(tt.balance, big.NewInt(0), tt.dust, bid, 12)
			if got.Reason != tt.want {
				t.Errorf("Reason = %q, want %q (amount %s)", got.Reason, tt.want, got.Amount)
			}
		})
	}
}

func TestEvaluateToken(t *testing.T) {
	bid := models.FeeBid{MaxFeePerGas: gwei(10)}
	need := RequiredGasBalance(50_000, bid, 12)

	tests := []struct {
		name         string
		tokenBalance *big.Int
		native       *big.Int
		wantAmount   *big.Int
		wantReason   string
	}{
		{"sendable", big.NewInt(1_000_000), need, big.NewInt(999_000), ""},
		{"no gas", big.NewInt(1_000_000), new(big.Int).Sub(need, big.NewInt(1)), big.NewInt(999_000), models.SkipInsufficientGas},
		{"nothing above reserve wins over gas", big.NewInt(1_000), big.NewInt(0), big.NewInt(0), models.SkipInsufficient},
		{"dust wins over gas", big.NewInt(1_050), big.NewInt(0), big.NewInt(50), models.SkipBelowDust},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateToken(tt.tokenBalance, big.NewInt(1_000), big.NewInt(100), tt.native, 50_000, bid, 12)
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
			if got.Amount.Cmp(tt.wantAmount) != 0 {
				t.Errorf("Amount = %s, want %s", got.Amount, tt.wantAmount)
			}
		})
	}
}

func TestRequiredGasBalance(t *testing.T) {
	// 50000 padded to 60000, at 10 gwei = 600000 gwei, +12% = 672000 gwei.
	got := RequiredGasBalance(50_000, models.FeeBid{MaxFeePerGas: gwei(10)}, 12)
	if want := gwei(672_000); got.Cmp(want) != 0 {
		t.Errorf("RequiredGasBalance = %s, want %s", got, want)
	}
	if PaddedGas(50_000) != 60_000 {
		t.Errorf("PaddedGas(50000) = %d", PaddedGas(50_000))
	}
}
