package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"artbooru/api/internal/models"
)

type Variant string

const (
	VariantOriginal    Variant = "original"
	VariantPreview     Variant = "preview"
	VariantNSFWPreview Variant = "nsfw_preview"
)

// nsfwBlurSigma is strong enough that the preview reads as an opaque
// smear rather than a recognizable picture.
const nsfwBlurSigma = 12

// EncodedImage is one normalized buffer produced by the pipeline. It lives
// only for the duration of a single saga run and is never persisted as-is.
type EncodedImage struct {
	Variant Variant
	Data    []byte
	Width   int
	Height  int
}

// VariantSet holds every encoded variant derived from one source image,
// original first.
type VariantSet struct {
	Images []EncodedImage
}

type Options struct {
	Workers       int
	PreviewWidth  int
	PreviewHeight int
}

// Pipeline normalizes raw uploads into deterministic lossless PNG buffers
// plus downscaled previews. The encoding parameters are fixed here, not
// caller-controlled, so re-encodes of the same source collapse to
// identical bytes.
type Pipeline struct {
	opts Options
}

func New(opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.PreviewWidth <= 0 {
		opts.PreviewWidth = 350
	}
	if opts.PreviewHeight <= 0 {
		opts.PreviewHeight = 350
	}
	return &Pipeline{opts: opts}
}

// Run transforms every file concurrently (bounded by Workers) and returns
// one VariantSet per input, in input order. A single decode failure fails
// the whole batch with no partial output: a post with missing images is
// worse than no post.
func (p *Pipeline) Run(ctx context.Context, files []models.UploadFile, nsfw bool) ([]VariantSet, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to transform")
	}

	sets := make([]VariantSet, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			set, err := p.transform(file, nsfw)
			if err != nil {
				return fmt.Errorf("transform %q: %w", file.Name, err)
			}
			sets[i] = set
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}

func (p *Pipeline) transform(file models.UploadFile, nsfw bool) (VariantSet, error) {
	src, err := imaging.Decode(bytes.NewReader(file.Data))
	if err != nil {
		return VariantSet{}, fmt.Errorf("decode: %w", err)
	}

	original, err := encodePNG(src)
	if err != nil {
		return VariantSet{}, err
	}

	previewImg := imaging.Fit(src, p.opts.PreviewWidth, p.opts.PreviewHeight, imaging.Lanczos)
	previewVariant := VariantPreview
	if nsfw {
		previewImg = imaging.Blur(previewImg, nsfwBlurSigma)
		previewVariant = VariantNSFWPreview
	}
	preview, err := encodePNG(previewImg)
	if err != nil {
		return VariantSet{}, err
	}
	preview.Variant = previewVariant

	return VariantSet{Images: []EncodedImage{original, preview}}, nil
}

func encodePNG(img image.Image) (EncodedImage, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return EncodedImage{}, fmt.Errorf("encode png: %w", err)
	}
	bounds := img.Bounds()
	return EncodedImage{
		Variant: VariantOriginal,
		Data:    buf.Bytes(),
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
	}, nil
}
