package scope

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	p := NewParser([]byte("service shared key"))
	want := Scope{TID: 7, Principal: uuid.MustParse("11111111-1111-1111-1111-111111111111")}

	token, err := p.Sign(want)
	require.NoError(t, err)

	got, err := p.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseRejectsWrongKey(t *testing.T) {
	token, err := NewParser([]byte("key A")).Sign(Scope{TID: 7, Principal: uuid.New()})
	require.NoError(t, err)

	_, err = NewParser([]byte("key B")).Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsMissingClaims(t *testing.T) {
	key := []byte("service shared key")
	p := NewParser(key)

	noTid := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: uuid.NewString(),
	})
	raw, err := noTid.SignedString(key)
	require.NoError(t, err)
	_, err = p.Parse(raw)
	require.ErrorIs(t, err, ErrNoTenant)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"tid": 7})
	raw, err = noSubject.SignedString(key)
	require.NoError(t, err)
	_, err = p.Parse(raw)
	require.ErrorIs(t, err, ErrNoPrincipal)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := NewParser([]byte("k")).Parse("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
