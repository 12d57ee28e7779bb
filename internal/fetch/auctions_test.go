package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFetchAuctionsWritesSnapshotFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/connected-realm/1080/"):
			w.Write([]byte(`{"connected_realm":{"href":"https://x/connected-realm/1080?ns=y"},"auctions":[]}`))
		case strings.Contains(r.URL.Path, "/connected-realm/509/"):
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	dir := t.TempDir()

	res, err := c.FetchAuctions(context.Background(), []string{"1080", "509"}, dir, 4)
	if err != nil {
		t.Fatalf("fetch auctions: %v", err)
	}
	if res.Fetched != 1 || res.Failed != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	if _, err := os.Stat(filepath.Join(dir, "1080.json")); err != nil {
		t.Fatalf("snapshot file for 1080 missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "509.json")); !os.IsNotExist(err) {
		t.Fatal("failed realm must not leave a snapshot file")
	}
}

func TestFetchNewItemsSkipsEncountered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/data/wow/item/100") {
			w.Write([]byte(`{"id":100,"name":"Thing","quality":{"type":"RARE"},"level":40,
				"item_class":{"id":2,"name":"Weapon"},"item_subclass":{"id":7,"name":"Sword"},
				"media":{"id":100,"key":{"href":""}}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dirs := ItemDirs{
		ItemsDir:        filepath.Join(dir, "items"),
		MediaDir:        filepath.Join(dir, "media"),
		EncounteredFile: filepath.Join(dir, "encountered_items.json"),
	}
	if err := os.WriteFile(dirs.EncounteredFile, []byte(`[200]`), 0o644); err != nil {
		t.Fatalf("seed encountered file: %v", err)
	}

	c := testClient(t, srv.URL)
	seen := map[int64]struct{}{100: {}, 200: {}}

	res, err := c.FetchNewItems(context.Background(), seen, dirs, 2)
	if err != nil {
		t.Fatalf("fetch new items: %v", err)
	}
	if res.New != 1 || res.Fetched != 1 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dirs.ItemsDir, "100.json")); err != nil {
		t.Fatalf("item document missing: %v", err)
	}

	set, err := loadEncountered(dirs.EncounteredFile)
	if err != nil {
		t.Fatalf("reload encountered: %v", err)
	}
	if _, ok := set[200]; !ok {
		t.Error("previously encountered item lost")
	}
	if _, ok := set[100]; !ok {
		t.Error("fetched item not added to encountered set")
	}
}

func TestEncounteredSetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "encountered.json")
	set := map[int64]struct{}{3: {}, 1: {}, 2: {}}

	if err := saveEncountered(path, set); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := loadEncountered(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(loaded))
	}
	for id := range set {
		if _, ok := loaded[id]; !ok {
			t.Errorf("id %d missing after round trip", id)
		}
	}
}

func TestLoadEncounteredMissingFile(t *testing.T) {
	set, err := loadEncountered(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("expected empty set, got %d entries", len(set))
	}
}
