package extraction

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockSampler is a mock implementation of Sampler
type mockSampler struct {
	frames    [][]byte
	sampleErr error
}

func (m *mockSampler) SampleFrames(ctx context.Context, data []byte) ([][]byte, error) {
	if m.sampleErr != nil {
		return nil, m.sampleErr
	}
	return m.frames, nil
}

func tinyPNG() []byte {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Preparer", func() {
	var (
		sampler  *mockSampler
		preparer *Preparer
	)

	BeforeEach(func() {
		sampler = &mockSampler{}
		preparer = NewPreparer(sampler, false)
	})

	When("preparing a PDF without rasterization", func() {
		It("passes the bytes through as an application/pdf part", func() {
			parts, err := preparer.Prepare(context.Background(), "receipt.pdf", []byte("%PDF-1.4"))
			Expect(err).NotTo(HaveOccurred())
			Expect(parts).To(HaveLen(1))
			Expect(parts[0].MIME).To(Equal("application/pdf"))
			Expect(parts[0].Data).To(Equal([]byte("%PDF-1.4")))
		})
	})

	When("preparing a PNG image", func() {
		It("produces a single image/png part", func() {
			parts, err := preparer.Prepare(context.Background(), "receipt.png", tinyPNG())
			Expect(err).NotTo(HaveOccurred())
			Expect(parts).To(HaveLen(1))
			Expect(parts[0].MIME).To(Equal("image/png"))
		})
	})

	When("preparing an HTML email body", func() {
		It("produces a text part", func() {
			parts, err := preparer.Prepare(context.Background(), "email-123.html", []byte("<html>Total: $5</html>"))
			Expect(err).NotTo(HaveOccurred())
			Expect(parts).To(HaveLen(1))
			Expect(parts[0].Text).To(ContainSubstring("Total: $5"))
		})
	})

	When("preparing a video", func() {
		BeforeEach(func() {
			sampler.frames = [][]byte{{0xff, 0xd8}, {0xff, 0xd8}}
		})

		It("produces one image/jpeg part per sampled frame", func() {
			parts, err := preparer.Prepare(context.Background(), "receipt.mp4", []byte("video-bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(parts).To(HaveLen(2))
			Expect(parts[0].MIME).To(Equal("image/jpeg"))
		})

		When("the sampler fails", func() {
			BeforeEach(func() {
				sampler.sampleErr = errors.New("ffmpeg not found")
			})

			It("returns the error", func() {
				_, err := preparer.Prepare(context.Background(), "receipt.mp4", []byte("video-bytes"))
				Expect(err).To(MatchError(ContainSubstring("sampling video frames")))
			})
		})

		When("no frames come back", func() {
			BeforeEach(func() {
				sampler.frames = nil
			})

			It("returns an error", func() {
				_, err := preparer.Prepare(context.Background(), "receipt.mov", []byte("video-bytes"))
				Expect(err).To(MatchError(ContainSubstring("no frames extracted")))
			})
		})
	})

	When("preparing an unsupported file type", func() {
		It("returns ErrUnsupportedType", func() {
			_, err := preparer.Prepare(context.Background(), "receipt.docx", []byte("data"))
			var unsupported *ErrUnsupportedType
			Expect(errors.As(err, &unsupported)).To(BeTrue())
			Expect(unsupported.Filename).To(Equal("receipt.docx"))
		})
	})
})
