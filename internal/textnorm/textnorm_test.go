package textnorm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	nz := New()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercase and punctuation", "Reset, Password!", []string{"reset", "password"}},
		{"stopwords dropped", "How do I reset my password", []string{"reset", "password"}},
		{"short tokens dropped", "x y zz", []string{"zz"}},
		{"numeric kept regardless of length", "error 7 in step 42", []string{"error", "7", "step", "42"}},
		{"symbols split words", "user@example.com", []string{"user", "example", "com"}},
		{"russian with yo folding", "Как сменить пароль? Ещё раз", []string{"сменить", "пароль", "раз"}},
		{"compatibility forms", "ｆｕｌｌ width", []string{"full", "width"}},
		{"empty", "", nil},
		{"whitespace only", "  \t\n ", nil},
		{"only stopwords", "the and of", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nz.Normalize(tt.in))
		})
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	nz := New()
	in := "Billing cycle: invoices are issued monthly on the 1st."
	first := nz.Normalize(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, nz.Normalize(in))
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	nz := New()
	inputs := []string{
		"Use the forgot password link on the login page",
		"Ошибка 403: доступ запрещён, обратитесь в поддержку!",
		"Crème brûlée — ﬁnal ½ answer",
		"İstanbul ÉCOLE 2024-01-01",
	}
	for _, in := range inputs {
		once := nz.Normalize(in)
		twice := nz.Normalize(strings.Join(once, " "))
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestWithMinLength(t *testing.T) {
	nz := New(WithMinLength(4))
	assert.Equal(t, []string{"reset", "password", "12"}, nz.Normalize("reset the password pin 12"))
	assert.Equal(t, 4, nz.MinLength())

	// Invalid values leave the default in place.
	assert.Equal(t, DefaultMinLength, New(WithMinLength(0)).MinLength())
}

func TestWithStopwords(t *testing.T) {
	nz := New(WithStopwords("Please", "HELP"))
	assert.Equal(t, []string{"reset", "password"}, nz.Normalize("please help reset password"))
	assert.True(t, nz.IsStopword("please"))
}

func TestWithoutDefaultStopwords(t *testing.T) {
	nz := New(WithoutDefaultStopwords())
	assert.Equal(t, []string{"the", "login", "page"}, nz.Normalize("the login page"))
}

func TestWithStemmer(t *testing.T) {
	trimS := StemmerFunc(func(tok string) string {
		return strings.TrimRight(tok, "s")
	})
	nz := New(WithStemmer(trimS))

	got := nz.Normalize("Invoices passwords")
	require.Equal(t, []string{"invoice", "password"}, got)
	assert.Equal(t, got, nz.Normalize(strings.Join(got, " ")))
}
