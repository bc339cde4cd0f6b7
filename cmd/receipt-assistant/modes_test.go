package main

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-assistant/internal/vad"
)

var _ = Describe("runReplay", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("should require a file", func(ctx SpecContext) {
		err := runReplay(ctx, nil, "", vad.Config{})
		Expect(err).To(MatchError(ContainSubstring("--replay-file")))
	})

	It("should reject recordings that are not WAV", func(ctx SpecContext) {
		path := filepath.Join(dir, "memo.mp3")
		Expect(os.WriteFile(path, []byte("ID3"), 0600)).To(Succeed())

		err := runReplay(ctx, nil, path, vad.Config{})
		Expect(err).To(MatchError(ContainSubstring("must be a .wav recording")))
	})

	It("should accept an upper-case extension and report unreadable files", func(ctx SpecContext) {
		err := runReplay(ctx, nil, filepath.Join(dir, "MISSING.WAV"), vad.Config{})
		Expect(err).To(MatchError(ContainSubstring("reading replay file")))
	})

	It("should report files that are not valid WAV data", func(ctx SpecContext) {
		path := filepath.Join(dir, "broken.wav")
		Expect(os.WriteFile(path, []byte("not a riff header"), 0600)).To(Succeed())

		err := runReplay(ctx, nil, path, vad.Config{})
		Expect(err).To(MatchError(ContainSubstring("decoding replay file")))
	})
})
