package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("create fs store: %v", err)
	}
	return map[string]Store{
		"memory": NewInMemoryStore(),
		"fs":     fs,
	}
}

func TestStore_SaveOpenDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			meta, err := store.Save(ctx, Metadata{
				FileName:    "consentimiento.pdf",
				ContentType: "application/pdf",
				Category:    CategoryConsentGeneral,
			}, bytes.NewReader([]byte("pdf-bytes")))
			if err != nil {
				t.Fatalf("save: %v", err)
			}
			if meta.ID == uuid.Nil {
				t.Fatal("expected an assigned blob id")
			}
			if meta.Size != int64(len("pdf-bytes")) {
				t.Errorf("unexpected size %d", meta.Size)
			}

			rc, got, err := store.Open(ctx, meta.ID)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer rc.Close()
			content, _ := io.ReadAll(rc)
			if string(content) != "pdf-bytes" {
				t.Errorf("unexpected content %q", content)
			}
			if got.FileName != "consentimiento.pdf" {
				t.Errorf("unexpected file name %q", got.FileName)
			}

			if err := store.Delete(ctx, meta.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, _, err := store.Open(ctx, meta.ID); !errors.Is(err, ErrBlobNotFound) {
				t.Errorf("expected ErrBlobNotFound after delete, got %v", err)
			}
		})
	}
}

func TestStore_Validation(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Save(ctx, Metadata{Category: CategoryConsentGeneral}, bytes.NewReader(nil))
	if !errors.Is(err, ErrMissingFileName) {
		t.Errorf("expected ErrMissingFileName, got %v", err)
	}

	_, err = store.Save(ctx, Metadata{FileName: "a.pdf", Category: "bogus"}, bytes.NewReader(nil))
	if !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}

	_, err = store.Save(ctx, Metadata{
		FileName:    "a.exe",
		ContentType: "application/octet-stream",
		Category:    CategoryPatientDocument,
	}, bytes.NewReader(nil))
	if !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("expected ErrInvalidContentType, got %v", err)
	}
}

func TestFSStore_ReloadsIndex(t *testing.T) {
	dir := t.TempDir()
	first, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	ctx := context.Background()
	meta, err := first.Save(ctx, Metadata{
		FileName:    "registro.pdf",
		ContentType: "application/pdf",
		Category:    CategoryTimeRegister,
	}, bytes.NewReader([]byte("hours")))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	second, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	rc, got, err := second.Open(ctx, meta.ID)
	if err != nil {
		t.Fatalf("open after reload: %v", err)
	}
	defer rc.Close()
	if got.FileName != "registro.pdf" || got.Category != CategoryTimeRegister {
		t.Errorf("unexpected reloaded metadata: %+v", got)
	}
}
