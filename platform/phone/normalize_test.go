package phone

import (
	"strings"
	"testing"
)

func TestNormalizeStripsFormatting(t *testing.T) {
	got := Normalize("+55 11 99999-0000")
	if got != "5511999990000" {
		t.Fatalf("expected 5511999990000, got %q", got)
	}
}

func TestNormalizePrependsPrefixForNationalNumbers(t *testing.T) {
	cases := map[string]string{
		"(11) 99999-0000": "5511999990000", // 11 digits, mobile
		"11 3333-4444":    "551133334444",  // 10 digits, landline
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeKeepsExistingPrefix(t *testing.T) {
	if got := Normalize("5511999990000"); got != "5511999990000" {
		t.Fatalf("already-prefixed number changed: %q", got)
	}
}

func TestNormalizeLeavesLongInternationalNumbersAlone(t *testing.T) {
	// 12 digits, not starting with 55: assumed already international.
	if got := Normalize("441134960000"); got != "441134960000" {
		t.Fatalf("international number changed: %q", got)
	}
}

func TestNormalizeShortInputFallsBackToPrefixing(t *testing.T) {
	// 8 digits is ambiguous; the fallback branch prefixes rather than rejects.
	if got := Normalize("3333-4444"); got != "5533334444" {
		t.Fatalf("short input not prefixed: %q", got)
	}
}

func TestNormalizeOutputIsAlwaysDigitsWithPrefix(t *testing.T) {
	inputs := []string{
		"+55 (11) 98888-7777",
		"011 4002-8922",
		"55 21 2222 3333",
		"(31)99876-5432",
	}
	for _, in := range inputs {
		got := Normalize(in)
		if !strings.HasPrefix(got, CountryPrefix) {
			t.Fatalf("Normalize(%q) = %q does not start with %s", in, got, CountryPrefix)
		}
		for _, r := range got {
			if r < '0' || r > '9' {
				t.Fatalf("Normalize(%q) = %q contains non-digit", in, got)
			}
		}
	}
}

func TestDigitCount(t *testing.T) {
	if n := DigitCount("+55 (11) 9-8888"); n != 8 {
		t.Fatalf("expected 8 digits, got %d", n)
	}
	if n := DigitCount("abc"); n != 0 {
		t.Fatalf("expected 0 digits, got %d", n)
	}
}

func TestValidateE164(t *testing.T) {
	formatted, ok := ValidateE164("11 98888-7777")
	if !ok {
		t.Fatal("expected valid BR mobile number")
	}
	if formatted != "+5511988887777" {
		t.Fatalf("unexpected E.164 form: %q", formatted)
	}

	if _, ok := ValidateE164("123"); ok {
		t.Fatal("expected invalid number to be rejected")
	}
	if _, ok := ValidateE164(""); ok {
		t.Fatal("expected empty input to be rejected")
	}
}
