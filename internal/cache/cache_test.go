package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestFingerprintDeterministic(t *testing.T) {
	img1 := []byte{0x89, 0x50, 0x4e, 0x47, 0x01}
	img2 := []byte{0xff, 0xd8, 0xff}

	a := Fingerprint("hint-0", "classify this", img1, img2)
	b := Fingerprint("hint-0", "classify this", append([]byte(nil), img1...), append([]byte(nil), img2...))
	if a != b {
		t.Fatalf("identical inputs produced different keys: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}
}

func TestFingerprintDistinct(t *testing.T) {
	base := Fingerprint("l", "prompt", []byte("abc"), []byte("def"))

	flipped := []byte("abd")
	cases := map[string]string{
		"prompt byte":   Fingerprint("l", "prompT", []byte("abc"), []byte("def")),
		"image byte":    Fingerprint("l", "prompt", flipped, []byte("def")),
		"image order":   Fingerprint("l", "prompt", []byte("def"), []byte("abc")),
		"boundary move": Fingerprint("l", "prompt", []byte("abcd"), []byte("ef")),
		"extra image":   Fingerprint("l", "prompt", []byte("abc"), []byte("def"), nil),
		"label":         Fingerprint("m", "prompt", []byte("abc"), []byte("def")),
		"prompt/blob":   Fingerprint("l", "promptabc", []byte("def")),
	}
	for name, k := range cases {
		if k == base {
			t.Errorf("%s: key did not change", name)
		}
	}
}

func TestResponseCacheGetSet(t *testing.T) {
	c := New(Config{MaxEntries: 4, TTL: time.Minute})

	if _, ok := c.Get("missing"); ok {
		t.Fatal("Get(missing) should miss")
	}

	c.Set("k", json.RawMessage(`{"a":1}`))
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("Get(k) should hit")
	}
	if string(got) != `{"a":1}` {
		t.Errorf("Get(k) = %s", got)
	}

	// Returned values are copies.
	got[0] = '['
	again, _ := c.Get("k")
	if string(again) != `{"a":1}` {
		t.Errorf("cached value mutated through returned slice: %s", again)
	}
}

func TestResponseCacheBoundAndLRU(t *testing.T) {
	c := New(Config{MaxEntries: 3, TTL: time.Minute})

	c.Set("a", json.RawMessage(`1`))
	c.Set("b", json.RawMessage(`2`))
	c.Set("c", json.RawMessage(`3`))

	// Touch "a" so "b" becomes least recently used.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get(a) should hit")
	}

	c.Set("d", json.RawMessage(`4`))

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}

	for i := 0; i < 20; i++ {
		c.Set(fmt.Sprintf("extra-%d", i), json.RawMessage(`0`))
		if s := c.Stats(); s.Size > 3 {
			t.Fatalf("size = %d after %d inserts, max 3", s.Size, i+1)
		}
	}
}

func TestResponseCacheExpiry(t *testing.T) {
	ttl := 50 * time.Millisecond
	c := New(Config{MaxEntries: 10, TTL: ttl})

	c.Set("k", json.RawMessage(`true`))
	if _, ok := c.Get("k"); !ok {
		t.Fatal("fresh entry should hit")
	}

	time.Sleep(ttl + 30*time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("entry should be absent after ttl")
	}
}

func TestResponseCacheClearAndStats(t *testing.T) {
	c := New(Config{MaxEntries: 7, TTL: 2 * time.Minute})
	c.Set("a", json.RawMessage(`1`))
	c.Set("b", json.RawMessage(`2`))

	s := c.Stats()
	if s.Size != 2 || s.Max != 7 || s.TTL != 2*time.Minute {
		t.Errorf("Stats() = %+v", s)
	}

	c.Clear()
	if s := c.Stats(); s.Size != 0 {
		t.Errorf("Size after Clear = %d", s.Size)
	}
}

func TestResponseCacheDefaults(t *testing.T) {
	s := New(Config{}).Stats()
	if s.Max != DefaultMaxEntries || s.TTL != DefaultTTL {
		t.Errorf("defaults = %+v", s)
	}
}

func TestResponseCacheConcurrent(t *testing.T) {
	c := New(Config{MaxEntries: 16, TTL: time.Minute})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := fmt.Sprintf("k-%d", (w*7+i)%40)
				c.Set(k, json.RawMessage(`{}`))
				c.Get(k)
			}
		}(w)
	}
	wg.Wait()

	if s := c.Stats(); s.Size > 16 {
		t.Errorf("size = %d exceeds max 16", s.Size)
	}
}
