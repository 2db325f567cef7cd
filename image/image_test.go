package image

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	entries := map[string][]byte{
		"/bin/init": []byte("init-elf-bytes"),
		"/lib/ld.so": []byte("interp-elf-bytes"),
	}
	order := []string{"/bin/init", "/lib/ld.so"}

	var buf bytes.Buffer
	if err := Pack(&buf, order, entries); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	gotOrder, gotEntries, err := Unpack(&buf)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if diff := cmp.Diff(order, gotOrder); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(entries, gotEntries); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestUnpackRejectsBadMagic(t *testing.T) {
	if _, _, err := Unpack(bytes.NewReader([]byte{0, 0, 0, 0})); err == nil {
		t.Fatal("expected an error for a non-image stream")
	}
}

func TestPackMissingEntryErrors(t *testing.T) {
	var buf bytes.Buffer
	err := Pack(&buf, []string{"/bin/init"}, map[string][]byte{})
	if err == nil {
		t.Fatal("expected an error when order references an unknown entry")
	}
}
