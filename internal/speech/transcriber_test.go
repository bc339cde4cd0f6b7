package speech

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-assistant/internal/failure"
	"github.com/zombor/receipt-assistant/internal/openaicompat"
)

var _ = Describe("GeminiTranscriber", func() {
	var (
		parts       []genai.Part
		response    *genai.GenerateContentResponse
		generateErr error
		transcriber *GeminiTranscriber
	)

	BeforeEach(func() {
		parts = nil
		generateErr = nil
		response = &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("  two bottles of milk \n")}},
		}}}
		transcriber = NewGeminiTranscriberWithDeps(func(_ context.Context, p ...genai.Part) (*genai.GenerateContentResponse, error) {
			parts = p
			return response, generateErr
		}, 0)
	})

	It("should send the audio blob and trim the transcript", func(ctx SpecContext) {
		out, err := transcriber.Transcribe(ctx, []byte("RIFF"), FormatWAV)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Text).To(Equal("two bottles of milk"))
		Expect(parts[0]).To(Equal(genai.Blob{MIMEType: "audio/wav", Data: []byte("RIFF")}))
	})

	It("should refuse formats it does not declare", func(ctx SpecContext) {
		_, err := transcriber.Transcribe(ctx, []byte("x"), FormatWebM)
		var unsupported *failure.UnsupportedInputError
		Expect(errors.As(err, &unsupported)).To(BeTrue())
		Expect(parts).To(BeNil())
	})

	It("should wrap vendor failures", func(ctx SpecContext) {
		generateErr = errors.New("boom")
		_, err := transcriber.Transcribe(ctx, []byte("RIFF"), FormatWAV)
		var pe *failure.ProviderError
		Expect(errors.As(err, &pe)).To(BeTrue())
		Expect(pe.Capability).To(Equal(failure.CapabilityTranscription))
	})

	It("should treat an empty transcript as a failure", func(ctx SpecContext) {
		response.Candidates[0].Content.Parts = []genai.Part{genai.Text("   ")}
		_, err := transcriber.Transcribe(ctx, []byte("RIFF"), FormatWAV)
		Expect(err).To(MatchError(ContainSubstring("empty transcript")))
	})
})

var _ = Describe("GroqTranscriber", func() {
	var (
		server      *ghttp.Server
		transcriber *GroqTranscriber
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		transcriber = NewGroqTranscriber(openaicompat.New(server.URL(), "key"), "", 0)
	})

	AfterEach(func() {
		server.Close()
	})

	It("should upload with the format as file extension", func(ctx SpecContext) {
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/audio/transcriptions"),
			func(_ http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				_, header, err := r.FormFile("file")
				Expect(err).NotTo(HaveOccurred())
				Expect(header.Filename).To(Equal("audio.ogg"))
				Expect(r.FormValue("model")).To(Equal("whisper-large-v3-turbo"))
			},
			ghttp.RespondWith(http.StatusOK, `{"text":" three apples ","language":"english"}`),
		))

		out, err := transcriber.Transcribe(ctx, []byte("OggS"), FormatOGG)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Text).To(Equal("three apples"))
		Expect(out.Language).To(Equal("english"))
	})

	It("should report the status of a rejected upload", func(ctx SpecContext) {
		server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, `{"error":"bad key"}`))
		_, err := transcriber.Transcribe(ctx, []byte("OggS"), FormatOGG)
		var pe *failure.ProviderError
		Expect(errors.As(err, &pe)).To(BeTrue())
		Expect(pe.StatusCode).To(Equal(http.StatusUnauthorized))
	})
})
