package cryptox

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	h, err := HashPassword("pw123")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if h == "pw123" {
		t.Fatalf("hash must not equal the password")
	}
	if !CheckPassword(h, "pw123") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(h, "pw124") {
		t.Fatalf("expected wrong password to fail")
	}
}
