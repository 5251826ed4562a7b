package auth

import "testing"

func TestHashPasswordAndCheckPassword(t *testing.T) {
	hash, err := hashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !checkPassword("s3cret", hash) {
		t.Fatalf("expected matching password to verify")
	}
	if checkPassword("wrong", hash) {
		t.Fatalf("expected mismatched password to fail")
	}
}
