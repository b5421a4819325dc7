package movements

import (
	"testing"

	"millstock/internal/core/apperror"
	"millstock/internal/core/types"
)

func kg(s string) types.Quantity {
	q, err := types.ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name        string
		sourceKg    string
		sourceBags  int64
		targetKg    string
		targetBags  int64
		wantKg      string
		wantBags    int64
		wantErrCode string
	}{
		{
			name:     "exact repack no shortage",
			sourceKg: "26", sourceBags: 10, targetKg: "26", targetBags: 10,
			wantKg: "0", wantBags: 0,
		},
		{
			// 1500 - 1482 = 18 kg; 18/26 rounds up to one bag.
			name:     "paddy 30kg to rice 26kg",
			sourceKg: "30", sourceBags: 50, targetKg: "26", targetBags: 57,
			wantKg: "18", wantBags: 1,
		},
		{
			// 13/26 = 0.5 exactly.
			name:     "half bag rounds up",
			sourceKg: "13", sourceBags: 11, targetKg: "26", targetBags: 5,
			wantKg: "13", wantBags: 1,
		},
		{
			// 10/25 = 0.4.
			name:     "below half rounds down",
			sourceKg: "26", sourceBags: 10, targetKg: "25", targetBags: 10,
			wantKg: "10", wantBags: 0,
		},
		{
			// 298 - 286 = 12 kg; 12/26 = 0.46.
			name:     "fractional weights",
			sourceKg: "74.5", sourceBags: 4, targetKg: "26", targetBags: 11,
			wantKg: "12", wantBags: 0,
		},
		{
			name:     "target exceeds source",
			sourceKg: "26", sourceBags: 10, targetKg: "26", targetBags: 11,
			wantErrCode: apperror.CodeInvalidConversion,
		},
		{
			name:     "zero source weight",
			sourceKg: "0", sourceBags: 10, targetKg: "26", targetBags: 10,
			wantErrCode: apperror.CodeValidation,
		},
		{
			name:     "negative target weight",
			sourceKg: "26", sourceBags: 10, targetKg: "-26", targetBags: 10,
			wantErrCode: apperror.CodeValidation,
		},
		{
			name:     "zero source bags",
			sourceKg: "26", sourceBags: 0, targetKg: "26", targetBags: 10,
			wantErrCode: apperror.CodeValidation,
		},
		{
			name:     "negative target bags",
			sourceKg: "26", sourceBags: 10, targetKg: "26", targetBags: -1,
			wantErrCode: apperror.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(kg(tt.sourceKg), tt.sourceBags, kg(tt.targetKg), tt.targetBags)

			if tt.wantErrCode != "" {
				appErr, ok := apperror.AsAppError(err)
				if !ok {
					t.Fatalf("expected AppError %s, got %v", tt.wantErrCode, err)
				}
				if appErr.Code != tt.wantErrCode {
					t.Fatalf("expected code %s, got %s", tt.wantErrCode, appErr.Code)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ShortageKg != kg(tt.wantKg) {
				t.Errorf("shortage kg: want %s, got %s", tt.wantKg, got.ShortageKg.String())
			}
			if got.ShortageBags != tt.wantBags {
				t.Errorf("shortage bags: want %d, got %d", tt.wantBags, got.ShortageBags)
			}
		})
	}
}

// Conservation: the stored shortage always equals a recomputation from the
// stored sides.
func TestConvert_Conservation(t *testing.T) {
	cases := []struct {
		sourceKg   string
		sourceBags int64
		targetKg   string
		targetBags int64
	}{
		{"30", 50, "26", 57},
		{"74.5", 100, "30", 248},
		{"26", 1000, "25.5", 1019},
	}

	for _, c := range cases {
		res, err := Convert(kg(c.sourceKg), c.sourceBags, kg(c.targetKg), c.targetBags)
		if err != nil {
			t.Fatalf("Convert(%+v): %v", c, err)
		}

		recomputed := kg(c.sourceKg).MulInt(c.sourceBags) - kg(c.targetKg).MulInt(c.targetBags)
		diff := (res.ShortageKg - recomputed).Abs()
		if diff > kg("0.01") {
			t.Errorf("conservation violated for %+v: stored %s, recomputed %s",
				c, res.ShortageKg.String(), recomputed.String())
		}
	}
}

func TestDeriveSourceBags(t *testing.T) {
	tests := []struct {
		name     string
		quintals string
		sourceKg string
		want     int64
		wantErr  bool
	}{
		// 0.13 quintal over 26 kg bags is the exact half-bag boundary.
		{name: "exact", quintals: "15", sourceKg: "30", want: 50},
		{name: "exact 26", quintals: "14.82", sourceKg: "26", want: 57},
		{name: "half rounds up", quintals: "0.13", sourceKg: "26", want: 1},
		{name: "below half", quintals: "0.10", sourceKg: "26", want: 0},
		{name: "above half", quintals: "0.14", sourceKg: "26", want: 1},
		{name: "zero weight", quintals: "15", sourceKg: "0", wantErr: true},
		{name: "negative quintals", quintals: "-1", sourceKg: "26", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveSourceBags(kg(tt.quintals), kg(tt.sourceKg))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("want %d bags, got %d", tt.want, got)
			}
		})
	}
}
