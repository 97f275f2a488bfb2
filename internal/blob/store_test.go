package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := Open(context.Background(), Config{Driver: "FS", FSRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	memStore, err := Open(context.Background(), Config{Driver: DriverMemory})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	return map[string]Store{"fs": fsStore, "memory": memStore}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	payload := "Age;Ho;N\n30;12.5;800\n"
	sum := sha256.Sum256([]byte(payload))

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := ArtifactKey("run-1", "Output_Plot_7.json")
			info, err := store.Put(ctx, key, strings.NewReader(payload), PutOptions{
				ContentType: ContentTypeJSON,
				Metadata:    map[string]string{"plot_id": "7"},
			})
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			if info.Key != "runs/run-1/Output_Plot_7.json" || info.Size != int64(len(payload)) {
				t.Fatalf("unexpected info %+v", info)
			}
			if info.Checksum != hex.EncodeToString(sum[:]) {
				t.Fatalf("unexpected checksum %s", info.Checksum)
			}
			if _, err := store.Put(ctx, key, strings.NewReader("again"), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}

			got, rc, err := store.Get(ctx, key)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			body, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(body) != payload || got.Metadata["plot_id"] != "7" || got.ContentType != ContentTypeJSON {
				t.Fatalf("unexpected artifact %+v %q", got, body)
			}
			got.Metadata["plot_id"] = "changed"
			again, rc, err := store.Get(ctx, key)
			if err != nil {
				t.Fatalf("get again: %v", err)
			}
			_ = rc.Close()
			if again.Metadata["plot_id"] != "7" {
				t.Fatal("metadata must be copied out of the store")
			}

			if _, err := store.Put(ctx, ArtifactKey("run-1", "Output_Plot_2.json"), strings.NewReader("{}"), PutOptions{}); err != nil {
				t.Fatalf("put second: %v", err)
			}
			if _, err := store.Put(ctx, ArtifactKey("run-2", "Output_Plot_1.json"), strings.NewReader("{}"), PutOptions{}); err != nil {
				t.Fatalf("put other run: %v", err)
			}
			infos, err := store.List(ctx, "runs/run-1/")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(infos) != 2 || infos[0].Key != "runs/run-1/Output_Plot_2.json" || infos[1].Key != key {
				t.Fatalf("unexpected listing %+v", infos)
			}

			if removed, err := store.Delete(ctx, key); err != nil || !removed {
				t.Fatalf("delete: %v %v", removed, err)
			}
			if removed, err := store.Delete(ctx, key); err != nil || removed {
				t.Fatalf("second delete: %v %v", removed, err)
			}
			if _, _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			for _, bad := range []string{"", "/abs", "runs/../../etc"} {
				if _, err := store.Put(ctx, bad, strings.NewReader("x"), PutOptions{}); !errors.Is(err, ErrInvalidKey) {
					t.Fatalf("key %q: expected ErrInvalidKey, got %v", bad, err)
				}
			}
		})
	}
}

func TestURL(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fsStore, err := NewFilesystem(root)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	u, err := fsStore.URL(ctx, "runs/r/Output_Plot_1.xlsx", 0)
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if !strings.HasPrefix(u, "file://") || !strings.HasSuffix(u, "/runs/r/Output_Plot_1.xlsx") {
		t.Fatalf("unexpected url %s", u)
	}
	if _, err := NewMemory().URL(ctx, "runs/r/x", 0); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestFilesystemWritesSidecar(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystem(root)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.Put(context.Background(), "runs/r/report.zip", strings.NewReader("PK"), PutOptions{ContentType: ContentTypeZip}); err != nil {
		t.Fatalf("put: %v", err)
	}
	meta, err := os.ReadFile(filepath.Join(root, "runs", "r", "report.zip.meta"))
	if err != nil {
		t.Fatalf("sidecar: %v", err)
	}
	if !strings.Contains(string(meta), ContentTypeZip) {
		t.Fatalf("sidecar misses content type: %s", meta)
	}
	if _, err := store.Put(context.Background(), "runs/r/x.meta", strings.NewReader(""), PutOptions{}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected sidecar suffix to be rejected, got %v", err)
	}
}

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatal("expected unknown driver error")
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatal("expected missing bucket error")
	}
	t.Chdir(t.TempDir())
	store, err := Open(ctx, Config{})
	if err != nil {
		t.Fatalf("default driver: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("expected filesystem default, got %s", store.Driver())
	}
}
