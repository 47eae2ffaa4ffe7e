package sniffer

import (
	"errors"
	"testing"
)

func TestDetectHead(t *testing.T) {
	cases := []struct {
		name string
		head []byte
		want MediaType
		mime string
	}{
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}, TypeJPEG, "image/jpeg"},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00}, TypePNG, "image/png"},
		{"gif87a", []byte("GIF87a trailing"), TypeGIF, "image/gif"},
		{"gif89a", []byte("GIF89a trailing"), TypeGIF, "image/gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), TypeWEBP, "image/webp"},
		{"bmp", []byte("BM\x36\x00\x00\x00"), TypeBMP, "image/bmp"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectHead(tc.head)
			if err != nil {
				t.Fatalf("DetectHead failed: %v", err)
			}
			if got.Type != tc.want {
				t.Errorf("type = %q, want %q", got.Type, tc.want)
			}
			if got.MIME != tc.mime {
				t.Errorf("mime = %q, want %q", got.MIME, tc.mime)
			}
		})
	}
}

func TestDetectHeadRejectsUnknownBytes(t *testing.T) {
	cases := []struct {
		name string
		head []byte
	}{
		{"empty", nil},
		{"text", []byte("hello world")},
		{"svg", []byte("<svg xmlns=\"http://www.w3.org/2000/svg\">")},
		{"riff without webp", []byte("RIFF\x00\x00\x00\x00WAVEfmt ")},
		{"truncated jpeg", []byte{0xff, 0xd8}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DetectHead(tc.head); !errors.Is(err, ErrUnknownType) {
				t.Errorf("expected ErrUnknownType, got %v", err)
			}
		})
	}
}

func TestNormalizeMimeType(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"image/png", "image/png"},
		{"image/jpeg; charset=utf-8", "image/jpeg"},
		{"  image/gif  ", "image/gif"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizeMimeType(tc.in); got != tc.want {
			t.Errorf("NormalizeMimeType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
