package service

import (
	"testing"
	"time"

	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/pkg/apperr"
	"github.com/stretchr/testify/require"
)

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		email string
		want  model.Identifier
		ok    bool
	}{
		{"email", "", "a@b.co", model.Identifier{Kind: model.IdentifierEmail, Value: "a@b.co"}, true},
		{"email lowered", "", " A@B.CO ", model.Identifier{Kind: model.IdentifierEmail, Value: "a@b.co"}, true},
		{"phone", "+447700900123", "", model.Identifier{Kind: model.IdentifierPhone, Value: "+447700900123"}, true},
		{"phone separators", "+1 (415) 555-2671", "", model.Identifier{Kind: model.IdentifierPhone, Value: "+14155552671"}, true},
		{"neither", "", "", model.Identifier{}, false},
		{"blank", "  ", "  ", model.Identifier{}, false},
		{"both", "+447700900123", "a@b.co", model.Identifier{}, false},
		{"email no tld", "", "a@b", model.Identifier{}, false},
		{"email spaces", "", "a b@c.co", model.Identifier{}, false},
		{"phone no plus", "447700900123", "", model.Identifier{}, false},
		{"phone letters", "+44abc", "", model.Identifier{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIdentifier("test", tt.phone, tt.email)
			if !tt.ok {
				require.True(t, apperr.IsKind(err, apperr.KindValidation))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestValidateCode(t *testing.T) {
	require.NoError(t, ValidateCode("test", "000000"))
	for _, code := range []string{"", "12345", "1234567", "abcdef", "12345a", "١٢٣٤٥٦"} {
		require.True(t, apperr.IsKind(ValidateCode("test", code), apperr.KindValidation), code)
	}
}

func TestResolveMaxAttempts(t *testing.T) {
	n, err := ResolveMaxAttempts("test", nil, 3)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	for _, v := range []int{1, 10} {
		v := v
		n, err = ResolveMaxAttempts("test", &v, 3)
		require.NoError(t, err)
		require.Equal(t, v, n)
	}
	for _, v := range []int{0, -1, 11} {
		v := v
		_, err = ResolveMaxAttempts("test", &v, 3)
		require.True(t, apperr.IsKind(err, apperr.KindValidation))
	}
}

func TestHumanWindow(t *testing.T) {
	require.Equal(t, "1 hour", humanWindow(time.Hour))
	require.Equal(t, "2 hours", humanWindow(2*time.Hour))
	require.Equal(t, "15 minutes", humanWindow(15*time.Minute))
	require.Equal(t, "90 minutes", humanWindow(90*time.Minute))
}
