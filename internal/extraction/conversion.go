package extraction

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

const (
	// maxPageSide caps the longest side of a prepared page. Phone photos
	// come in far larger than the model needs for handwriting.
	maxPageSide = 2200
	// pageJPEGQuality is the re-encode quality for downscaled pages
	pageJPEGQuality = 95
)

// Upload is one file received from the capture surface, before preparation.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PreparePages converts the raw uploads into model-ready page images, in
// input order. A PDF upload expands into one page per PDF page; everything
// else yields exactly one page.
func PreparePages(uploads []Upload) ([]Page, error) {
	pages := make([]Page, 0, len(uploads))
	for _, upload := range uploads {
		mimeType := strings.ToLower(strings.TrimSpace(upload.ContentType))
		if mimeType == "" {
			mimeType = "image/jpeg" // default
		}

		if mimeType == "application/pdf" {
			pdfPages, err := pdfToPages(upload.Data)
			if err != nil {
				return nil, fmt.Errorf("converting PDF %q: %w", upload.Filename, err)
			}
			pages = append(pages, pdfPages...)
			continue
		}

		page, err := imageToPage(upload.Data, mimeType)
		if err != nil {
			return nil, fmt.Errorf("preparing image %q: %w", upload.Filename, err)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// pdfToPages renders every page of a PDF as a JPEG page image
func pdfToPages(pdfData []byte) ([]Page, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := make([]Page, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		img, err := doc.Image(n)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", n+1, err)
		}
		data, err := encodePage(img)
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{Data: data})
	}
	return pages, nil
}

// imageToPage decodes an uploaded image and re-encodes it as a bounded JPEG
func imageToPage(imageData []byte, mimeType string) (Page, error) {
	var img image.Image
	var err error

	// HEIC/HEIF (common on iPhones) is not covered by Go's standard image
	// decoders
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return Page{}, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
				return Page{}, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
			}
			return Page{}, fmt.Errorf("decoding image: %w", err)
		}
	}

	// Keep the original bytes when a JPEG is already small enough, so a
	// well-behaved capture surface costs nothing extra.
	bounds := img.Bounds()
	if mimeType == "image/jpeg" && bounds.Dx() <= maxPageSide && bounds.Dy() <= maxPageSide {
		return Page{Data: imageData}, nil
	}

	data, err := encodePage(img)
	if err != nil {
		return Page{}, err
	}
	return Page{Data: data}, nil
}

// encodePage downscales to the page bound and encodes as high-quality JPEG
func encodePage(img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	if bounds.Dx() > maxPageSide || bounds.Dy() > maxPageSide {
		img = imaging.Fit(img, maxPageSide, maxPageSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(pageJPEGQuality)); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files typically start with specific magic bytes
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	// HEIC files carry an ftyp box at offset 4 with a HEIC-related brand
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return mimeType == "image/heic" || mimeType == "image/heif" ||
		strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
