package pipeline

import (
	"context"
	"testing"

	"artbooru/api/internal/models"
)

func TestFingerprintIsStable(t *testing.T) {
	data := []byte("encoded image bytes")

	first := Fingerprint(data)
	second := Fingerprint(data)

	if first != second {
		t.Errorf("same bytes produced %s and %s", first, second)
	}
	if len(first) != 64 {
		t.Errorf("fingerprint length %d, want 64 hex chars", len(first))
	}
}

func TestFingerprintDiffersForDifferentBytes(t *testing.T) {
	if Fingerprint([]byte("a")) == Fingerprint([]byte("b")) {
		t.Error("different bytes should not collide")
	}
}

// Two uploads of the same source in different container formats collapse
// to one fingerprint because the hash runs over the normalized encoding,
// not the raw upload.
func TestFingerprintCollapsesReencodes(t *testing.T) {
	p := New(Options{Workers: 1})

	asPNG := pngFile(t, "a.png", 25, 25)
	pngSets, err := p.Run(context.Background(), []models.UploadFile{asPNG}, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Re-upload the pipeline's own output: decode + re-encode must be a
	// fixed point.
	again := models.UploadFile{Name: "b.png", ContentType: "image/png", Data: pngSets[0].Images[0].Data}
	againSets, err := p.Run(context.Background(), []models.UploadFile{again}, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if Fingerprint(pngSets[0].Images[0].Data) != Fingerprint(againSets[0].Images[0].Data) {
		t.Error("re-encoded upload should produce the same fingerprint")
	}
}
