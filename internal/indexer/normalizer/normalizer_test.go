package normalizer

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"accent", "José", "jose"},
		{"tilde", "Piñón", "pinon"},
		{"upper", "AJO", "ajo"},
		{"punctuation", "¡Pollo, al ajo!", "pollo al ajo"},
		{"whitespace", "  tomate\t\n rojo  ", "tomate rojo"},
		{"digits kept", "1 hora 20 minutos", "1 hora 20 minutos"},
		{"underscore kept", "sal_fina", "sal_fina"},
		{"symbols only", "¿?¡!", ""},
		{"azucar", "Azúcar Refinado", "azucar refinado"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeCaseAndAccentInsensitive(t *testing.T) {
	a, b, c := Normalize("Ajo"), Normalize("AJO"), Normalize("ajo")
	if a != b || b != c {
		t.Errorf("got %q %q %q, want equal", a, b, c)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Crème Brûlée", "Jitomate, cebolla y AJO", "  ", "ñandú_42"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestValue(t *testing.T) {
	if got := Value(42); got != "" {
		t.Errorf("Value(42) = %q, want empty", got)
	}
	if got := Value(nil); got != "" {
		t.Errorf("Value(nil) = %q, want empty", got)
	}
	if got := Value("Gallína"); got != "gallina" {
		t.Errorf("Value = %q, want gallina", got)
	}
}

func TestTerms(t *testing.T) {
	got := Terms("Pollo  al AJO")
	want := []string{"pollo", "al", "ajo"}
	if len(got) != len(want) {
		t.Fatalf("Terms = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Terms[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFoldKeepsPunctuation(t *testing.T) {
	if got, want := Fold("1,5 Horas: Ñandú"), "1,5 horas: nandu"; got != want {
		t.Errorf("Fold = %q, want %q", got, want)
	}
}
