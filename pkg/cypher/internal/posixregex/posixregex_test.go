package posixregex

import "testing"

func TestMatchBasic(t *testing.T) {
	ok, err := Match("^[A-Z][a-z]+$", "Ada")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected match")
	}

	ok, err = Match("^[A-Z][a-z]+$", "ada")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no match")
	}
}

func TestMatchCaseInsensitivePrefix(t *testing.T) {
	ok, err := Match("(?i)^ada$", "ADA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected case-insensitive match")
	}
}

func TestMatchReusesCachedPattern(t *testing.T) {
	pattern := "^[0-9]+$"
	if _, err := Match(pattern, "123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cache[pattern]; !ok {
		t.Fatal("expected pattern to be cached after first compile")
	}
	ok, err := Match(pattern, "456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected match against cached pattern")
	}
}

func TestMatchInvalidPattern(t *testing.T) {
	if _, err := Match("[", "anything"); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}
