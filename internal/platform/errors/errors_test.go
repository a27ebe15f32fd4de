package errors_test

import (
	stderrs "errors"
	"net/http"
	"testing"

	perr "altscope/internal/platform/errors"
)

func TestWrap_PreservesCodeAndCause(t *testing.T) {
	cause := stderrs.New("boom")
	err := perr.Wrap(cause, perr.ErrorCodeDB, "query failed")

	if !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("expected db code got %v", perr.CodeOf(err))
	}
	if perr.Root(err) != cause {
		t.Fatalf("expected root cause to survive wrapping")
	}
	if !stderrs.Is(err, cause) {
		t.Fatalf("errors.Is must see through the wrapper")
	}
}

func TestHTTPStatus_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{perr.NotFoundf("missing"), http.StatusNotFound},
		{perr.Conflictf("busy"), http.StatusConflict},
		{perr.InvalidArgf("bad"), http.StatusUnprocessableEntity},
		{perr.Validationf("nope"), http.StatusBadRequest},
		{perr.Unavailablef("down"), http.StatusServiceUnavailable},
		{stderrs.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := perr.HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d want %d", tc.err, got, tc.want)
		}
	}
}

func TestWireFrom(t *testing.T) {
	w := perr.WireFrom(perr.WithField(perr.Validationf("too long"), "username"))
	if w.Code != perr.ErrorCodeValidation || w.Field != "username" || w.Message != "too long" {
		t.Fatalf("unexpected wire %+v", w)
	}

	if w := perr.WireFrom(nil); w.Code != perr.ErrorCodeUnknown || w.Message != "" {
		t.Fatalf("nil error must produce the zero wire, got %+v", w)
	}
}

func TestIsDuplicateKey_TextFallback(t *testing.T) {
	err := stderrs.New("constraint failed: UNIQUE constraint failed: events.source_file")
	if !perr.IsDuplicateKey(err) {
		t.Fatalf("expected text fallback to detect unique violation")
	}
	if perr.IsDuplicateKey(stderrs.New("something else")) {
		t.Fatalf("unrelated error must not look like a duplicate key")
	}
}

func TestFromSQLite_NilPassthrough(t *testing.T) {
	if err := perr.FromSQLite(nil, "ignored"); err != nil {
		t.Fatalf("nil in must be nil out, got %v", err)
	}
}
