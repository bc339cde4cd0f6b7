package scanning

import (
	"bytes"
	"errors"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-assistant/internal/failure"
)

var _ = Describe("normalizeImage", func() {
	var (
		input       []byte
		contentType string
		output      []byte
		err         error
	)

	JustBeforeEach(func() {
		output, err = normalizeImage(input, contentType)
	})

	When("the image is already PNG", func() {
		BeforeEach(func() {
			input = testPNG()
			contentType = "image/png"
		})

		It("should pass it through untouched", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(output).To(Equal(input))
		})
	})

	When("the image is JPEG", func() {
		BeforeEach(func() {
			input = testJPEG()
			contentType = "image/jpg"
		})

		It("should convert it to PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			img, decodeErr := png.Decode(bytes.NewReader(output))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(4))
		})
	})

	When("no content type is given", func() {
		BeforeEach(func() {
			input = testJPEG()
			contentType = ""
		})

		It("should assume JPEG", func() {
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the content type is not an image", func() {
		BeforeEach(func() {
			input = []byte("hello")
			contentType = "text/plain"
		})

		It("should return an UnsupportedInputError", func() {
			var unsupported *failure.UnsupportedInputError
			Expect(errors.As(err, &unsupported)).To(BeTrue())
			Expect(unsupported.MediaType).To(Equal("text/plain"))
		})
	})

	When("the bytes are not an image", func() {
		BeforeEach(func() {
			input = []byte("not a jpeg")
			contentType = "image/jpeg"
		})

		It("should fail to decode", func() {
			Expect(err).To(MatchError(ContainSubstring("converting image to PNG")))
		})
	})
})

var _ = Describe("isHEIC", func() {
	It("should detect the ftyp brand", func() {
		Expect(isHEIC([]byte("\x00\x00\x00\x18ftypheic...."), "")).To(BeTrue())
		Expect(isHEIC([]byte("\x00\x00\x00\x18ftypisom...."), "")).To(BeFalse())
	})

	It("should trust the MIME type", func() {
		Expect(isHEIC(nil, "image/heif")).To(BeTrue())
	})
})

var _ = Describe("IsSupported", func() {
	It("should ignore parameters and case", func() {
		Expect(IsSupported("Image/JPEG; charset=binary")).To(BeTrue())
		Expect(IsSupported("video/mp4")).To(BeFalse())
	})
})
