package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	mem, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("memory: %v", err)
	}
	fsStore, err := Open(ctx, Config{Driver: DriverFilesystem, FSRoot: t.TempDir()})
	if err != nil || fsStore.Driver() != DriverFilesystem {
		t.Fatalf("fs: %v", err)
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected s3 without bucket to fail")
	}
	if _, err := Open(ctx, Config{Driver: "tape"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestBackendsShareSemantics(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	for _, store := range []Store{NewMemory(), fsStore} {
		name := string(store.Driver())
		if _, err := store.Put(ctx, "a/1.json", bytes.NewReader([]byte("one")), PutOptions{ContentType: "application/json"}); err != nil {
			t.Fatalf("%s put: %v", name, err)
		}
		if _, err := store.Put(ctx, "a/1.json", bytes.NewReader([]byte("again")), PutOptions{}); !errors.Is(err, ErrExists) {
			t.Fatalf("%s: expected ErrExists, got %v", name, err)
		}
		if _, err := store.Put(ctx, "a/0.json", bytes.NewReader([]byte("zero")), PutOptions{}); err != nil {
			t.Fatalf("%s put: %v", name, err)
		}
		if _, err := store.Put(ctx, "b/0.json", bytes.NewReader([]byte("other")), PutOptions{}); err != nil {
			t.Fatalf("%s put: %v", name, err)
		}
		list, err := store.List(ctx, "a/")
		if err != nil || len(list) != 2 || list[0].Key != "a/0.json" {
			t.Fatalf("%s list: %v %+v", name, err, list)
		}
		info, rc, err := store.Get(ctx, "a/1.json")
		if err != nil {
			t.Fatalf("%s get: %v", name, err)
		}
		data, _ := io.ReadAll(rc)
		_ = rc.Close()
		if string(data) != "one" || info.ContentType != "application/json" || info.Size != 3 {
			t.Fatalf("%s: unexpected blob %q %+v", name, data, info)
		}
		if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", name, err)
		}
		if _, err := store.Head(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound from head, got %v", name, err)
		}
		if ok, err := store.Delete(ctx, "a/1.json"); err != nil || !ok {
			t.Fatalf("%s delete: %v %v", name, ok, err)
		}
		if ok, _ := store.Delete(ctx, "a/1.json"); ok {
			t.Fatalf("%s: second delete reported existing", name)
		}
	}
}
