package employee

import (
	"context"
	"errors"
	"testing"

	"kintai/internal/platform/cardhash"
)

func newResolverFixture(t *testing.T) (*Resolver, *MemStore, *cardhash.Service) {
	t.Helper()
	hasher, err := cardhash.New("resolver-test-secret-16b")
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	store := NewMemStore()
	return NewResolver(hasher, store), store, hasher
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(" 01:00-5e 2b3c4d5e6f ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "01005E2B3C4D5E6F" {
		t.Fatalf("unexpected normalized serial %q", got)
	}

	for _, bad := range []string{"", "abc", "zz005e2b3c4d5e6f", "01005e2b3c4d5e6f7"} {
		if _, err := Normalize(bad); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("expected ErrInvalidFormat for %q, got %v", bad, err)
		}
	}
}

func TestResolveActiveEmployee(t *testing.T) {
	resolver, store, hasher := newResolverFixture(t)

	id, err := store.Create(context.Background(), Employee{
		Name:     "Sato Yuki",
		CardHash: hasher.Hash("01005E2B3C4D5E6F"),
		WageKind: WageHourly,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	emp, err := resolver.Resolve(context.Background(), "0100 5e2b 3c4d 5e6f")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if emp.ID != id {
		t.Fatalf("resolved wrong employee: %s", emp.ID)
	}
}

func TestResolveUnknownCard(t *testing.T) {
	resolver, _, _ := newResolverFixture(t)
	_, err := resolver.Resolve(context.Background(), "01005E2B3C4D5E6F")
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestResolveDeactivatedCard(t *testing.T) {
	resolver, store, hasher := newResolverFixture(t)

	id, err := store.Create(context.Background(), Employee{
		Name:     "Sato Yuki",
		CardHash: hasher.Hash("01005E2B3C4D5E6F"),
		WageKind: WageHourly,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Deactivate(context.Background(), id); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err = resolver.Resolve(context.Background(), "01005E2B3C4D5E6F")
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered for deactivated holder, got %v", err)
	}
}

func TestResolveMalformedBeforeHashing(t *testing.T) {
	resolver, _, _ := newResolverFixture(t)
	_, err := resolver.Resolve(context.Background(), "not-a-serial")
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestCardHashUniqueAmongActive(t *testing.T) {
	_, store, hasher := newResolverFixture(t)
	hash := hasher.Hash("01005E2B3C4D5E6F")

	if _, err := store.Create(context.Background(), Employee{Name: "A", CardHash: hash}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(context.Background(), Employee{Name: "B", CardHash: hash}); !errors.Is(err, ErrCardInUse) {
		t.Fatalf("expected ErrCardInUse, got %v", err)
	}
}
