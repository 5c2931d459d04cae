package policies

import (
	"context"
	"testing"
)

func TestScopedKey(t *testing.T) {
	ctx := context.Background()
	nested := WithPrincipal(ctx, Principal{ID: "a/b"})
	plain := WithPrincipal(ctx, Principal{ID: "a"})

	if ScopedKey(nested, "c") == ScopedKey(plain, "b/c") {
		t.Fatal("distinct principal and key pairs collided")
	}
	if ScopedKey(ctx, "k") == ScopedKey(plain, "k") {
		t.Fatal("anonymous key shares a scope with a principal")
	}
	if ScopedKey(plain, "k") != ScopedKey(plain, "k") {
		t.Fatal("scoped key is not stable")
	}
}
