package dedupe

import (
	"testing"
	"time"
)

func TestSeenReportsDuplicates(t *testing.T) {
	d := New(Config{TTL: time.Hour, CleanupInterval: time.Hour})

	if d.Seen("abc") {
		t.Fatal("first sighting should report false")
	}
	if !d.Seen("abc") {
		t.Fatal("second sighting within TTL should report true")
	}
}

func TestSeenDistinctIDsAreIndependent(t *testing.T) {
	d := New(Config{TTL: time.Hour, CleanupInterval: time.Hour})

	if d.Seen("abc") {
		t.Fatal("first sighting of abc should report false")
	}
	if d.Seen("xyz") {
		t.Fatal("first sighting of xyz should report false")
	}
}

func TestSeenExpiresAfterTTL(t *testing.T) {
	d := New(Config{TTL: 10 * time.Millisecond, CleanupInterval: time.Hour})

	if d.Seen("abc") {
		t.Fatal("first sighting should report false")
	}
	time.Sleep(20 * time.Millisecond)
	if d.Seen("abc") {
		t.Fatal("sighting after TTL expiry should report false again")
	}
}

func TestCleanupRemovesExpiredEntries(t *testing.T) {
	d := New(Config{TTL: 10 * time.Millisecond, CleanupInterval: time.Hour})
	d.Seen("abc")
	time.Sleep(20 * time.Millisecond)

	d.cleanup()

	d.mu.Lock()
	_, ok := d.seen["abc"]
	d.mu.Unlock()
	if ok {
		t.Fatal("cleanup should have removed the expired entry")
	}
}
