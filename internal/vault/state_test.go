package vault

import (
	"bytes"
	"encoding/hex"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

func encodeAccount(t *testing.T, v any) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	// Any 8-byte prefix works; decode skips the discriminator.
	buf.Write(make([]byte, 8))
	if err := bin.NewBinEncoder(buf).Encode(v); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeState(t *testing.T) {
	want := State{
		Enabled:     1,
		Bumps:       VaultBumps{VaultBump: 254, TokenVaultBump: 253},
		TotalAmount: 1_000_000_000,
		TokenVault:  solana.NewWallet().PublicKey(),
		FeeVault:    solana.NewWallet().PublicKey(),
		TokenMint:   solana.SolMint,
		LpMint:      solana.NewWallet().PublicKey(),
		Base:        BaseKey,
		LockedProfitTracker: LockedProfitTracker{
			LastUpdatedLockedProfit: 5_000,
			LastReport:              1_700_000_000,
			LockedProfitDegradation: 46_296_296,
		},
	}

	got, err := decodeState(encodeAccount(t, &want))
	if err != nil {
		t.Fatalf("decodeState() error = %v", err)
	}

	if got.TotalAmount != want.TotalAmount {
		t.Errorf("TotalAmount = %d, want %d", got.TotalAmount, want.TotalAmount)
	}
	if !got.TokenMint.Equals(want.TokenMint) {
		t.Errorf("TokenMint = %s, want %s", got.TokenMint, want.TokenMint)
	}
	if !got.LpMint.Equals(want.LpMint) {
		t.Errorf("LpMint = %s, want %s", got.LpMint, want.LpMint)
	}
	if got.LockedProfitTracker != want.LockedProfitTracker {
		t.Errorf("LockedProfitTracker = %+v, want %+v", got.LockedProfitTracker, want.LockedProfitTracker)
	}
}

func TestDecodeStateTooShort(t *testing.T) {
	if _, err := decodeState([]byte{1, 2, 3}); err == nil {
		t.Error("decodeState(short) expected error, got nil")
	}
}

func TestDecodeStateZeroMints(t *testing.T) {
	var empty State
	if _, err := decodeState(encodeAccount(t, &empty)); err == nil {
		t.Error("decodeState() expected error for zero mints, got nil")
	}
}

func TestWithdrawableAmount(t *testing.T) {
	const denom = uint64(lockedProfitDegradationDenominator)
	report := int64(1_700_000_000)

	tests := []struct {
		name    string
		state   State
		now     int64
		want    uint64
	}{
		{
			name: "no locked profit",
			state: State{
				TotalAmount: 1_000,
			},
			now:  report,
			want: 1_000,
		},
		{
			name: "fully locked at report time",
			state: State{
				TotalAmount: 1_000,
				LockedProfitTracker: LockedProfitTracker{
					LastUpdatedLockedProfit: 100,
					LastReport:              uint64(report),
					LockedProfitDegradation: denom / 100,
				},
			},
			now:  report,
			want: 900,
		},
		{
			name: "half degraded",
			state: State{
				TotalAmount: 1_000,
				LockedProfitTracker: LockedProfitTracker{
					LastUpdatedLockedProfit: 100,
					LastReport:              uint64(report),
					LockedProfitDegradation: denom / 100,
				},
			},
			now:  report + 50,
			want: 950,
		},
		{
			name: "fully degraded",
			state: State{
				TotalAmount: 1_000,
				LockedProfitTracker: LockedProfitTracker{
					LastUpdatedLockedProfit: 100,
					LastReport:              uint64(report),
					LockedProfitDegradation: denom / 100,
				},
			},
			now:  report + 100,
			want: 1_000,
		},
		{
			name: "locked profit exceeds total",
			state: State{
				TotalAmount: 50,
				LockedProfitTracker: LockedProfitTracker{
					LastUpdatedLockedProfit: 100,
					LastReport:              uint64(report),
					LockedProfitDegradation: denom / 100,
				},
			},
			now:  report,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.state.WithdrawableAmount(time.Unix(tt.now, 0))
			if got != tt.want {
				t.Errorf("WithdrawableAmount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDecodeAffiliateInfo(t *testing.T) {
	want := AffiliateInfo{
		PartnerToken:  solana.NewWallet().PublicKey(),
		Vault:         solana.NewWallet().PublicKey(),
		TotalFee:      1_234,
		FeeRatio:      100,
		CumulativeFee: 9_876,
	}

	got, err := decodeAffiliateInfo(encodeAccount(t, &want))
	if err != nil {
		t.Fatalf("decodeAffiliateInfo() error = %v", err)
	}
	if *got != want {
		t.Errorf("decodeAffiliateInfo() = %+v, want %+v", got, want)
	}
}

func TestEncodeInstructionData(t *testing.T) {
	data, err := encodeInstructionData("deposit", 1_000_000_000, 0)
	if err != nil {
		t.Fatalf("encodeInstructionData() error = %v", err)
	}

	if len(data) != 8+8+8 {
		t.Fatalf("len(data) = %d, want 24", len(data))
	}
	if !bytes.Equal(data[:8], anchorDiscriminator("deposit")) {
		t.Errorf("discriminator = %s", hex.EncodeToString(data[:8]))
	}
	// 1_000_000_000 little-endian
	wantAmount := []byte{0x00, 0xca, 0x9a, 0x3b, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(data[8:16], wantAmount) {
		t.Errorf("amount bytes = %s, want %s", hex.EncodeToString(data[8:16]), hex.EncodeToString(wantAmount))
	}
}
