package scanning

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-assistant/internal/failure"
	"github.com/zombor/receipt-assistant/internal/openaicompat"
)

var _ = Describe("Gemini", func() {
	var (
		parts       []genai.Part
		generateErr error
		analyzer    *Gemini
	)

	BeforeEach(func() {
		parts, generateErr = nil, nil
		analyzer = NewGeminiWithDeps(func(_ context.Context, p ...genai.Part) (*genai.GenerateContentResponse, error) {
			parts = p
			return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("```\nMilk 2 x 3.50 = 7.00\n```")}},
			}}}, generateErr
		}, 0)
	})

	It("should send the PNG and the prompt", func(ctx SpecContext) {
		out, err := analyzer.Analyze(ctx, testPNG(), "image/png", "read it")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Text).To(Equal("Milk 2 x 3.50 = 7.00"))
		Expect(parts).To(HaveLen(2))
		Expect(parts[0]).To(Equal(genai.ImageData("png", testPNG())))
		Expect(parts[1]).To(Equal(genai.Text("read it")))
	})

	It("should fall back to the default prompt", func(ctx SpecContext) {
		_, err := analyzer.Analyze(ctx, testPNG(), "image/png", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(parts[1]).To(Equal(genai.Text(DefaultPrompt)))
	})

	It("should report vendor failures as vision ProviderErrors", func(ctx SpecContext) {
		generateErr = errors.New("quota")
		_, err := analyzer.Analyze(ctx, testPNG(), "image/png", "")
		var pe *failure.ProviderError
		Expect(errors.As(err, &pe)).To(BeTrue())
		Expect(pe.Capability).To(Equal(failure.CapabilityVision))
	})
})

var _ = Describe("Ollama", func() {
	var (
		server   *ghttp.Server
		analyzer *Ollama
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		analyzer = NewOllama(server.URL(), "llava", 0)
	})

	AfterEach(func() {
		server.Close()
	})

	It("should attach the image to the user message", func(ctx SpecContext) {
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
			func(_ http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				var req ollamaChatRequest
				body, _ := io.ReadAll(r.Body)
				Expect(json.Unmarshal(body, &req)).To(Succeed())
				Expect(req.Model).To(Equal("llava"))
				Expect(req.Messages).To(HaveLen(2))
				Expect(req.Messages[1].Images).To(ConsistOf(base64.StdEncoding.EncodeToString(testPNG())))
			},
			ghttp.RespondWith(http.StatusOK, `{"message":{"role":"assistant","content":"Bread 4.25"},"done":true}`),
		))

		out, err := analyzer.Analyze(ctx, testPNG(), "image/png", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Text).To(Equal("Bread 4.25"))
	})

	It("should not call out for unsupported media", func(ctx SpecContext) {
		_, err := analyzer.Analyze(ctx, []byte("x"), "video/mp4", "")
		var unsupported *failure.UnsupportedInputError
		Expect(errors.As(err, &unsupported)).To(BeTrue())
		Expect(server.ReceivedRequests()).To(BeEmpty())
	})
})

var _ = Describe("Groq", func() {
	var (
		server   *ghttp.Server
		analyzer *Groq
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		analyzer = NewGroq(openaicompat.New(server.URL(), "key"), "vision-model", 0)
	})

	AfterEach(func() {
		server.Close()
	})

	It("should send the image as a data URL", func(ctx SpecContext) {
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/chat/completions"),
			ghttp.VerifyJSON(`{"model":"vision-model","messages":[{"role":"user","content":[
				{"type":"text","text":"read"},
				{"type":"image_url","image_url":{"url":"data:image/png;base64,`+base64.StdEncoding.EncodeToString(testPNG())+`"}}
			]}]}`),
			ghttp.RespondWith(http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"Eggs 3.00"}}]}`),
		))

		out, err := analyzer.Analyze(ctx, testPNG(), "image/png", "read")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Text).To(Equal("Eggs 3.00"))
	})
})
