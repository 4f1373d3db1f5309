package transactions_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-auth-client/cookies"
	"github.com/jrsteele09/go-auth-client/transactions"
	"github.com/stretchr/testify/require"
)

const testSecret = "a-sufficiently-long-signing-secret"

func newTestStore(t *testing.T) *transactions.Store {
	t.Helper()
	store, err := transactions.NewStore(transactions.Options{
		Secret:       testSecret,
		CookieConfig: cookies.DefaultConfig(),
	})
	require.NoError(t, err)
	return store
}

func newJar(cookiePairs ...*http.Cookie) *cookies.Jar {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookiePairs {
		r.AddCookie(c)
	}
	return cookies.NewJar(httptest.NewRecorder(), r)
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	jar := newJar()

	txn := &transactions.State{
		State:        "state-abc",
		Nonce:        "nonce-123",
		CodeVerifier: "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk",
		ResponseType: "code",
		ReturnTo:     "/dashboard",
	}
	require.NoError(t, store.Save(jar, txn))

	// The jar's read-after-write view makes the transaction immediately
	// visible, as the callback handler would see it on the next request.
	got, err := store.Get(jar, "state-abc")
	require.NoError(t, err)
	require.Equal(t, txn, got)
}

func TestSaveRequiresState(t *testing.T) {
	store := newTestStore(t)
	err := store.Save(newJar(), &transactions.State{Nonce: "nonce-123"})
	require.Error(t, err)
}

func TestGetAbsentReturnsNil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Get(newJar(), "no-such-state")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetUndecryptableReturnsNil(t *testing.T) {
	store := newTestStore(t)
	jar := newJar(&http.Cookie{Name: "__txn_state-abc", Value: "tampered-garbage"})

	got, err := store.Get(jar, "state-abc")
	require.NoError(t, err)
	require.Nil(t, got, "an undecryptable transaction cookie must look absent")
}

func TestConcurrentTransactionsDoNotCollide(t *testing.T) {
	store := newTestStore(t)
	jar := newJar()

	require.NoError(t, store.Save(jar, &transactions.State{State: "tab-1", Nonce: "n1", CodeVerifier: "v1", ResponseType: "code"}))
	require.NoError(t, store.Save(jar, &transactions.State{State: "tab-2", Nonce: "n2", CodeVerifier: "v2", ResponseType: "code"}))

	first, err := store.Get(jar, "tab-1")
	require.NoError(t, err)
	require.Equal(t, "n1", first.Nonce)

	second, err := store.Get(jar, "tab-2")
	require.NoError(t, err)
	require.Equal(t, "n2", second.Nonce)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	jar := newJar()

	require.NoError(t, store.Save(jar, &transactions.State{State: "state-abc", Nonce: "n", CodeVerifier: "v", ResponseType: "code"}))
	store.Delete(jar, "state-abc")

	got, err := store.Get(jar, "state-abc")
	require.NoError(t, err)
	require.Nil(t, got)
}
