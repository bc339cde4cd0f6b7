package receipt

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "media"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			filename  string
			savedName string
			err       error
		)

		JustBeforeEach(func() {
			savedName, err = storage.Save(filename, []byte("RIFF"))
		})

		When("the name is plain", func() {
			BeforeEach(func() {
				filename = MediaName(42, "audio", "wav")
			})

			It("should write the file", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedName).To(Equal("42_audio.wav"))
				Expect(filepath.Join(tmpDir, "media", "42_audio.wav")).To(BeAnExistingFile())
			})
		})

		When("the name escapes the base directory", func() {
			BeforeEach(func() {
				filename = "../escape.wav"
			})

			It("should refuse it", func() {
				Expect(err).To(MatchError(ContainSubstring("invalid file name")))
				Expect(filepath.Join(tmpDir, "escape.wav")).NotTo(BeAnExistingFile())
			})
		})
	})

	Describe("Get and Delete", func() {
		BeforeEach(func() {
			_, err := storage.Save("7_image.png", []byte("png-bytes"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should round trip and remove the file", func() {
			data, err := storage.Get("7_image.png")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("png-bytes"))

			Expect(storage.Delete("7_image.png")).To(Succeed())
			_, err = storage.Get("7_image.png")
			Expect(err).To(MatchError(ContainSubstring("reading file")))
		})

		It("should fail to delete a missing file", func() {
			Expect(storage.Delete("missing.png")).To(MatchError(ContainSubstring("deleting file")))
		})
	})
})

var _ = Describe("MediaName", func() {
	It("should strip a leading dot from the extension", func() {
		Expect(MediaName(3, "image", ".jpg")).To(Equal("3_image.jpg"))
	})
})
