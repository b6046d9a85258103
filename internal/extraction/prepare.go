package extraction

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// ErrUnsupportedType reports an upload extension the pipeline cannot route
// to the model.
type ErrUnsupportedType struct {
	Filename string
}

func (e *ErrUnsupportedType) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Filename)
}

// Preparer turns one uploaded object into model input parts based on its
// extension hint.
type Preparer struct {
	sampler Sampler
	// rasterizePDF renders PDF pages to PNG instead of sending the PDF
	// inline. Required for backends that cannot read PDFs (Ollama).
	rasterizePDF bool
}

// NewPreparer creates a Preparer. sampler may be nil when video uploads are
// not expected.
func NewPreparer(sampler Sampler, rasterizePDF bool) *Preparer {
	return &Preparer{sampler: sampler, rasterizePDF: rasterizePDF}
}

// Prepare routes an uploaded document to model parts:
// PDFs go inline (or rasterized), images are normalized to PNG, HTML is
// passed as text, and videos are sampled into JPEG frames.
func (p *Preparer) Prepare(ctx context.Context, filename string, data []byte) ([]Part, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".pdf":
		if p.rasterizePDF {
			return pdfToParts(data)
		}
		return []Part{DataPart("application/pdf", data)}, nil

	case ".jpg", ".jpeg", ".png", ".gif", ".heic", ".heif":
		pngData, err := imageToPNG(data)
		if err != nil {
			return nil, err
		}
		return []Part{DataPart("image/png", pngData)}, nil

	case ".html", ".htm":
		return []Part{TextPart(string(data))}, nil

	case ".mp4", ".mov", ".avi", ".mkv":
		if p.sampler == nil {
			return nil, fmt.Errorf("no frame sampler configured for video upload %s", filename)
		}
		frames, err := p.sampler.SampleFrames(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("sampling video frames: %w", err)
		}
		if len(frames) == 0 {
			return nil, fmt.Errorf("no frames extracted from video %s", filename)
		}
		parts := make([]Part, 0, len(frames))
		for _, frame := range frames {
			parts = append(parts, DataPart("image/jpeg", frame))
		}
		return parts, nil

	default:
		return nil, &ErrUnsupportedType{Filename: filename}
	}
}

// pdfToParts renders each page of a PDF to a PNG part. Receipts are almost
// always single page, but statements and email printouts are not.
func pdfToParts(pdfData []byte) ([]Part, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	parts := make([]Part, 0, doc.NumPage())
	for page := 0; page < doc.NumPage(); page++ {
		img, err := doc.Image(page)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", page, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding PNG: %w", err)
		}
		parts = append(parts, DataPart("image/png", buf.Bytes()))
	}
	return parts, nil
}

// imageToPNG converts any supported image format to PNG so the model always
// sees one MIME type regardless of what the phone uploaded.
func imageToPNG(imageData []byte) ([]byte, error) {
	var img image.Image
	var err error

	if isHEIC(imageData) {
		// Go's standard image package does not support HEIC/HEIF
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEIC checks the ftyp box for a HEIC/HEIF brand.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}
