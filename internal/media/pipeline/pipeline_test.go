package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"artbooru/api/internal/models"
)

func gradientImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray := uint8((x + y) * 255 / (width + height))
			img.Set(x, y, color.RGBA{gray, gray, gray, 255})
		}
	}
	return img
}

func pngFile(t *testing.T, name string, width, height int) models.UploadFile {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradientImage(width, height)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return models.UploadFile{Name: name, ContentType: "image/png", Data: buf.Bytes()}
}

func jpegFile(t *testing.T, name string, width, height int) models.UploadFile {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradientImage(width, height), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return models.UploadFile{Name: name, ContentType: "image/jpeg", Data: buf.Bytes()}
}

func TestRunPreservesInputOrder(t *testing.T) {
	p := New(Options{Workers: 2, PreviewWidth: 64, PreviewHeight: 64})
	files := []models.UploadFile{
		pngFile(t, "a.png", 10, 20),
		jpegFile(t, "b.jpg", 30, 40),
		pngFile(t, "c.png", 50, 60),
	}

	sets, err := p.Run(context.Background(), files, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sets) != len(files) {
		t.Fatalf("expected %d sets, got %d", len(files), len(sets))
	}

	wantWidths := []int{10, 30, 50}
	wantHeights := []int{20, 40, 60}
	for i, set := range sets {
		original := set.Images[0]
		if original.Variant != VariantOriginal {
			t.Errorf("set %d: first variant is %q, want original", i, original.Variant)
		}
		if original.Width != wantWidths[i] || original.Height != wantHeights[i] {
			t.Errorf("set %d: got %dx%d, want %dx%d", i, original.Width, original.Height, wantWidths[i], wantHeights[i])
		}
	}
}

func TestRunProducesPreviewVariant(t *testing.T) {
	p := New(Options{Workers: 1, PreviewWidth: 32, PreviewHeight: 32})
	sets, err := p.Run(context.Background(), []models.UploadFile{pngFile(t, "a.png", 100, 50)}, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(sets[0].Images) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(sets[0].Images))
	}
	preview := sets[0].Images[1]
	if preview.Variant != VariantPreview {
		t.Errorf("second variant is %q, want preview", preview.Variant)
	}
	if preview.Width > 32 || preview.Height > 32 {
		t.Errorf("preview %dx%d exceeds 32x32 bound", preview.Width, preview.Height)
	}
	if preview.Width != 32 || preview.Height != 16 {
		t.Errorf("preview %dx%d, want 32x16 (aspect preserved)", preview.Width, preview.Height)
	}
}

func TestRunNSFWPreviewIsBlurredVariant(t *testing.T) {
	p := New(Options{Workers: 1, PreviewWidth: 32, PreviewHeight: 32})

	clean, err := p.Run(context.Background(), []models.UploadFile{pngFile(t, "a.png", 64, 64)}, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	nsfw, err := p.Run(context.Background(), []models.UploadFile{pngFile(t, "a.png", 64, 64)}, true)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if nsfw[0].Images[1].Variant != VariantNSFWPreview {
		t.Errorf("nsfw preview variant is %q", nsfw[0].Images[1].Variant)
	}
	if bytes.Equal(clean[0].Images[1].Data, nsfw[0].Images[1].Data) {
		t.Error("nsfw preview should differ from the clean preview")
	}
	// The original variant is untouched by the NSFW flag.
	if !bytes.Equal(clean[0].Images[0].Data, nsfw[0].Images[0].Data) {
		t.Error("original variant should not depend on the NSFW flag")
	}
}

func TestRunFailsFastOnUndecodableInput(t *testing.T) {
	p := New(Options{Workers: 2})
	files := []models.UploadFile{
		pngFile(t, "good.png", 10, 10),
		{Name: "bad.png", ContentType: "image/png", Data: []byte("not an image at all")},
		pngFile(t, "also-good.png", 10, 10),
	}

	sets, err := p.Run(context.Background(), files, false)
	if err == nil {
		t.Fatal("expected error for undecodable input")
	}
	if sets != nil {
		t.Error("expected no partial output")
	}
}

func TestRunIsDeterministic(t *testing.T) {
	p := New(Options{Workers: 2, PreviewWidth: 32, PreviewHeight: 32})
	files := []models.UploadFile{jpegFile(t, "a.jpg", 40, 40)}

	first, err := p.Run(context.Background(), files, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	second, err := p.Run(context.Background(), files, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for i := range first[0].Images {
		if !bytes.Equal(first[0].Images[i].Data, second[0].Images[i].Data) {
			t.Errorf("variant %d: re-encoding the same source produced different bytes", i)
		}
	}
}

func TestRunRejectsEmptyBatch(t *testing.T) {
	p := New(Options{})
	if _, err := p.Run(context.Background(), nil, false); err == nil {
		t.Fatal("expected error for empty batch")
	}
}
