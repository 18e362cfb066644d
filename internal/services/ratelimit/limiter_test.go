package ratelimit

import "testing"

func TestAllowConsumesBucket(t *testing.T) {
	l := New()

	for i := 0; i < 3; i++ {
		if !l.Allow("tenant-1", 3, 0) {
			t.Fatalf("expected token %d to be granted", i+1)
		}
	}
	if l.Allow("tenant-1", 3, 0) {
		t.Fatal("expected empty bucket to deny")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()

	if !l.Allow("tenant-1", 1, 0) {
		t.Fatal("expected first token for tenant-1")
	}
	if l.Allow("tenant-1", 1, 0) {
		t.Fatal("expected tenant-1 to be exhausted")
	}
	if !l.Allow("tenant-2", 1, 0) {
		t.Fatal("expected tenant-2 to have its own bucket")
	}
}
