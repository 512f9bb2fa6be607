package store

import (
	"strconv"
	"testing"
	"time"

	"github.com/example/redisd/internal/values"
)

func withDB(f func(db *Database)) {
	db := NewDatabase(0, NoopNotifier{})
	db.Lock()
	defer db.Unlock()
	f(db)
}

func TestSetGetDelete(t *testing.T) {
	withDB(func(db *Database) {
		db.Set("k", values.NewString([]byte("v")))
		v, ok := db.Get("k")
		if !ok {
			t.Fatal("expected key present")
		}
		if s, ok := v.(*values.StringValue); !ok || string(s.Data) != "v" {
			t.Fatalf("unexpected value: %#v", v)
		}
		if !db.Delete("k") {
			t.Fatal("expected delete to report present")
		}
		if db.Exists("k") {
			t.Fatal("expected key gone")
		}
	})
}

func TestLazyExpiration(t *testing.T) {
	withDB(func(db *Database) {
		db.Set("k", values.NewString([]byte("v")))
		db.SetExpire("k", time.Now().Add(-time.Second))
		if db.Exists("k") {
			t.Fatal("expected key to have expired")
		}
		if _, ok := db.Get("k"); ok {
			t.Fatal("expected Get to treat expired key as absent")
		}
	})
}

func TestRenameMovesTTL(t *testing.T) {
	withDB(func(db *Database) {
		db.Set("a", values.NewString([]byte("1")))
		at := time.Now().Add(time.Hour)
		db.SetExpire("a", at)
		if err := db.Rename("a", "b"); err != nil {
			t.Fatal(err)
		}
		if db.Exists("a") {
			t.Fatal("expected source gone")
		}
		d, hasTTL, exists := db.TTL("b")
		if !exists || !hasTTL || d <= 0 {
			t.Fatalf("expected destination to carry TTL, got %v %v %v", d, hasTTL, exists)
		}
	})
}

func TestWatchInvalidation(t *testing.T) {
	withDB(func(db *Database) {
		db.Set("x", values.NewString([]byte("1")))
		h := NewWatchHandle()
		db.Watch("x", h)
		if h.Dirty.Load() {
			t.Fatal("expected clean handle before mutation")
		}
		db.Set("x", values.NewString([]byte("2")))
		if !h.Dirty.Load() {
			t.Fatal("expected handle dirtied by write to watched key")
		}
	})
}

func TestUnwatchStopsInvalidation(t *testing.T) {
	withDB(func(db *Database) {
		db.Set("x", values.NewString([]byte("1")))
		h := NewWatchHandle()
		db.Watch("x", h)
		db.Unwatch("x", h)
		db.Set("x", values.NewString([]byte("2")))
		if h.Dirty.Load() {
			t.Fatal("expected no invalidation after unwatch")
		}
	})
}

func TestScanFullTraversal(t *testing.T) {
	withDB(func(db *Database) {
		want := map[string]bool{}
		for i := 0; i < 200; i++ {
			k := "k" + strconv.Itoa(i)
			db.Set(k, values.NewString([]byte("v")))
			want[k] = false
		}

		var cursor uint64
		seen := map[string]bool{}
		for {
			var keys []string
			cursor, keys = db.Scan(cursor, "", 10)
			for _, k := range keys {
				seen[k] = true
			}
			if cursor == 0 {
				break
			}
		}
		for k := range want {
			if !seen[k] {
				t.Fatalf("key %q missing from full scan traversal", k)
			}
		}
	})
}

func TestKeysGlobMatch(t *testing.T) {
	withDB(func(db *Database) {
		db.Set("foo:1", values.NewString([]byte("v")))
		db.Set("foo:2", values.NewString([]byte("v")))
		db.Set("bar:1", values.NewString([]byte("v")))
		matches := db.Keys("foo:*")
		if len(matches) != 2 {
			t.Fatalf("expected 2 matches, got %d: %v", len(matches), matches)
		}
	})
}

func TestCopyDeepCopiesAggregateValue(t *testing.T) {
	withDB(func(db *Database) {
		l := values.NewList()
		l.PushRight([]byte("a"), []byte("b"))
		db.Set("src", l)

		ok, err := db.Copy("src", "dst", false)
		if err != nil || !ok {
			t.Fatalf("Copy = %v, %v", ok, err)
		}

		dstVal, _ := db.Get("dst")
		dstList := dstVal.(*values.List)
		dstList.PushRight([]byte("c"))

		srcVal, _ := db.Get("src")
		srcList := srcVal.(*values.List)
		if srcList.Len() != 2 {
			t.Fatalf("write to copy's list reached back into the source: src len = %d", srcList.Len())
		}
	})
}

func TestDeleteIfEmpty(t *testing.T) {
	withDB(func(db *Database) {
		l := values.NewList()
		l.PushRight([]byte("a"))
		db.Set("l", l)
		l.PopRight()
		db.DeleteIfEmpty("l", l)
		if db.Exists("l") {
			t.Fatal("expected emptied container to delete its key")
		}
	})
}
