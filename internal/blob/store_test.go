package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("open filesystem store: %v", err)
	}
	return map[string]Store{
		"memory": NewMemoryStore(),
		"fs":     fsStore,
	}
}

func TestStorePutGetRoundTrip(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			opts := PutOptions{ContentType: "application/json", Metadata: map[string]string{"facility": "f-1"}}

			info, err := store.Put(ctx, "facilities/f-1/mldata.json", strings.NewReader(`{"a":1}`), opts)
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			if info.Size != 7 {
				t.Fatalf("unexpected size: %d", info.Size)
			}

			got, rc, err := store.Get(ctx, "facilities/f-1/mldata.json")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			body, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if string(body) != `{"a":1}` {
				t.Fatalf("unexpected body: %s", body)
			}
			if got.ContentType != "application/json" {
				t.Fatalf("content type lost: %+v", got)
			}
			if got.Metadata["facility"] != "f-1" {
				t.Fatalf("metadata lost: %+v", got.Metadata)
			}
		})
	}
}

func TestStorePutOverwrites(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Put(ctx, "k", strings.NewReader("v1"), PutOptions{}); err != nil {
				t.Fatalf("first put: %v", err)
			}
			if _, err := store.Put(ctx, "k", strings.NewReader("v2-longer"), PutOptions{}); err != nil {
				t.Fatalf("second put: %v", err)
			}

			info, rc, err := store.Get(ctx, "k")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			body, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(body) != "v2-longer" {
				t.Fatalf("overwrite lost: %s", body)
			}
			if info.Size != int64(len("v2-longer")) {
				t.Fatalf("stale size after overwrite: %d", info.Size)
			}
		})
	}
}

func TestStoreMissingKey(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, _, err := store.Get(ctx, "absent"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("get: expected ErrNotFound, got %v", err)
			}
			if _, err := store.Head(ctx, "absent"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("head: expected ErrNotFound, got %v", err)
			}
			existed, err := store.Delete(ctx, "absent")
			if err != nil || existed {
				t.Fatalf("delete: got existed=%v err=%v", existed, err)
			}
		})
	}
}

func TestStoreDeleteAndList(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			keys := []string{"facilities/b/mldata.json", "facilities/a/mldata.json", "other/x"}
			for _, key := range keys {
				if _, err := store.Put(ctx, key, strings.NewReader("{}"), PutOptions{}); err != nil {
					t.Fatalf("put %s: %v", key, err)
				}
			}

			infos, err := store.List(ctx, "facilities/")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(infos) != 2 {
				t.Fatalf("expected 2 blobs under prefix, got %d", len(infos))
			}
			if infos[0].Key != "facilities/a/mldata.json" || infos[1].Key != "facilities/b/mldata.json" {
				t.Fatalf("list not sorted by key: %+v", infos)
			}

			existed, err := store.Delete(ctx, "facilities/a/mldata.json")
			if err != nil || !existed {
				t.Fatalf("delete: got existed=%v err=%v", existed, err)
			}
			infos, err = store.List(ctx, "facilities/")
			if err != nil {
				t.Fatalf("list after delete: %v", err)
			}
			if len(infos) != 1 || infos[0].Key != "facilities/b/mldata.json" {
				t.Fatalf("unexpected listing after delete: %+v", infos)
			}
		})
	}
}

func TestFilesystemStoreRejectsUnsafeKeys(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	for _, key := range []string{"", "  ", "../escape", "a/../../b", "/absolute"} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}
