package core

import (
	"errors"
	"math"
	"testing"
)

func TestParseAdduct(t *testing.T) {
	glucose := Composition{"C": 6, "H": 12, "O": 6}

	tests := []struct {
		name         string
		adduct       string
		wantCharge   int
		wantMultimer int
		wantMZ       float64 // m/z of glucose with this adduct
	}{
		{"protonated", "[M+H]+", 1, 1, 181.070665},
		{"deprotonated", "[M-H]-", -1, 1, 179.056112},
		{"sodiated", "[M+Na]+", 1, 1, 203.052607},
		{"ammoniated", "[M+NH4]+", 1, 1, 198.097213},
		{"doubly protonated", "[M+2H]2+", 2, 1, 91.038971},
		{"water loss", "[M+H-H2O]+", 1, 1, 163.060100},
		{"chloride", "[M+Cl]-", -1, 1, 215.032789},
		{"dimer", "[2M+Na]+", 1, 2, 383.115997},
		{"radical cation", "[M]+", 1, 1, 180.062839},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAdduct(tt.adduct)
			if err != nil {
				t.Fatalf("ParseAdduct(%q) error: %v", tt.adduct, err)
			}
			if a.Charge != tt.wantCharge {
				t.Errorf("Charge = %d, want %d", a.Charge, tt.wantCharge)
			}
			if a.Multimer != tt.wantMultimer {
				t.Errorf("Multimer = %d, want %d", a.Multimer, tt.wantMultimer)
			}
			ion, err := a.Ion(glucose)
			if err != nil {
				t.Fatalf("Ion() error: %v", err)
			}
			mass, err := ion.Mass()
			if err != nil {
				t.Fatal(err)
			}
			got := MassToCharge(mass, a.Charge, a.Carrier)
			if math.Abs(got-tt.wantMZ) > 1e-4 {
				t.Errorf("m/z = %.6f, want %.6f", got, tt.wantMZ)
			}
		})
	}
}

func TestParseAdduct_ProtonCarrier(t *testing.T) {
	a, err := ParseAdduct("[M+H]+")
	if err != nil {
		t.Fatal(err)
	}
	hydrogen, _ := ParseFormula("H")
	hMass, _ := hydrogen.Mass()
	if got := hMass + a.Carrier; math.Abs(got-ProtonMass) > 1e-7 {
		t.Errorf("H + carrier = %.9f, want %.9f", got, ProtonMass)
	}
}

func TestParseAdduct_Delta(t *testing.T) {
	tests := []struct {
		adduct string
		want   Delta
	}{
		{"[M+H]+", Delta{"H": 1}},
		{"[M-H]-", Delta{"H": -1}},
		{"[M+2H]2+", Delta{"H": 2}},
		{"[M+NH4]+", Delta{"N": 1, "H": 4}},
		{"[M+H-H2O]+", Delta{"H": -1, "O": -1}},
		{"[M+Cl]-", Delta{"Cl": 1}},
		{"[2M+Na]+", Delta{"Na": 1}},
		{"[M+H-H]+", Delta{}},
		{"[M]+", Delta{}},
	}

	for _, tt := range tests {
		t.Run(tt.adduct, func(t *testing.T) {
			a, err := ParseAdduct(tt.adduct)
			if err != nil {
				t.Fatalf("ParseAdduct(%q) error: %v", tt.adduct, err)
			}
			if len(a.Delta) != len(tt.want) {
				t.Fatalf("Delta = %v, want %v", a.Delta, tt.want)
			}
			for s, n := range tt.want {
				if a.Delta[s] != n {
					t.Errorf("Delta[%s] = %d, want %d", s, a.Delta[s], n)
				}
			}
		})
	}
}

func TestAdduct_Ion(t *testing.T) {
	glucose := Composition{"C": 6, "H": 12, "O": 6}

	a, err := ParseAdduct("[2M+Cl]-")
	if err != nil {
		t.Fatal(err)
	}
	ion, err := a.Ion(glucose)
	if err != nil {
		t.Fatal(err)
	}
	want := Composition{"C": 12, "H": 24, "O": 12, "Cl": 1}
	if !ion.Equal(want) {
		t.Errorf("Ion() = %s, want %s", ion, want)
	}
	if !glucose.Equal(Composition{"C": 6, "H": 12, "O": 6}) {
		t.Error("Ion() modified its input")
	}

	// Losing atoms the molecule does not have fails
	a, err = ParseAdduct("[M-H]-")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Ion(Composition{"Na": 1, "Cl": 1}); !errors.Is(err, ErrInvalidComposition) {
		t.Errorf("Ion() error = %v, want ErrInvalidComposition", err)
	}
}

func TestParseAdduct_Invalid(t *testing.T) {
	for _, s := range []string{"", "M+H", "[M+H]", "[M+H]x", "[0M+H]+", "[M+Xx]+", "[M+H]0+", "[M*H]+", "[M+0H]+", "[M+H-0H2O]+"} {
		if _, err := ParseAdduct(s); err == nil {
			t.Errorf("ParseAdduct(%q) expected error", s)
		}
	}
}
