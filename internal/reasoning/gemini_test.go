package reasoning

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-assistant/internal/failure"
)

var _ = Describe("Gemini", func() {
	var (
		model    *genai.GenerativeModel
		history  []*genai.Content
		sent     []genai.Part
		response *genai.GenerateContentResponse
		sendErr  error
		reasoner *Gemini
		req      *Request
		resp     *Response
		err      error
	)

	BeforeEach(func() {
		history, sent = nil, nil
		sendErr = nil
		response = &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []genai.Part{genai.Text("Hello there")}},
		}}}
		send := func(_ context.Context, m *genai.GenerativeModel, h []*genai.Content, parts []genai.Part) (*genai.GenerateContentResponse, error) {
			model, history, sent = m, h, parts
			return response, sendErr
		}
		newModel := func(string) *genai.GenerativeModel { return &genai.GenerativeModel{} }
		reasoner = NewGeminiWithDeps(nil, "gemini-test", 0, newModel, send, &sequentialIDs{})
		req = &Request{
			Messages: []Message{
				{Role: RoleSystem, Content: "extract receipts"},
				{Role: RoleUser, Content: "hi"},
			},
			Temperature: Float(0.1),
		}
	})

	JustBeforeEach(func(ctx SpecContext) {
		resp, err = reasoner.Complete(ctx, req)
	})

	When("the model answers in prose", func() {
		It("should return the text without tool calls", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Content).To(Equal("Hello there"))
			Expect(resp.ToolCalls).To(BeEmpty())
			Expect(resp.Model).To(Equal("gemini-test"))
		})

		It("should move the system message into the system instruction", func() {
			Expect(model.SystemInstruction.Parts).To(Equal([]genai.Part{genai.Text("extract receipts")}))
			Expect(history).To(BeEmpty())
			Expect(sent).To(Equal([]genai.Part{genai.Text("hi")}))
			Expect(*model.Temperature).To(BeNumerically("~", 0.1, 0.0001))
		})
	})

	When("the model calls a function", func() {
		BeforeEach(func() {
			req.Tools = []Tool{{
				Name:       "get_spending_for_item",
				Parameters: json.RawMessage(`{"type":"object","properties":{"item_name":{"type":"string"},"days":{"type":"integer"}},"required":["item_name"]}`),
			}}
			response.Candidates[0].Content.Parts = []genai.Part{
				genai.FunctionCall{Name: "get_spending_for_item", Args: map[string]any{"item_name": "milk"}},
			}
		})

		It("should assign ids to the calls", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.ToolCalls).To(HaveLen(1))
			Expect(resp.ToolCalls[0].ID).To(Equal("call_1"))
			Expect(resp.ToolCalls[0].Arguments).To(MatchJSON(`{"item_name":"milk"}`))
		})

		It("should declare the tools", func() {
			decl := model.Tools[0].FunctionDeclarations[0]
			Expect(decl.Name).To(Equal("get_spending_for_item"))
			Expect(decl.Parameters.Type).To(Equal(genai.TypeObject))
			Expect(decl.Parameters.Properties["days"].Type).To(Equal(genai.TypeInteger))
			Expect(decl.Parameters.Required).To(ConsistOf("item_name"))
		})
	})

	When("the exchange already holds a tool round", func() {
		BeforeEach(func() {
			req.Messages = append(req.Messages,
				Message{Role: RoleAssistant, ToolCalls: []ToolCall{
					{ID: "call_a", Name: "get_spending_for_item", Arguments: json.RawMessage(`{"item_name":"milk"}`)},
				}},
				Message{Role: RoleTool, ToolCallID: "call_a", Content: `{"total_spent":7}`},
			)
		})

		It("should send the function response as the last user turn", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(2))
			Expect(history[1].Role).To(Equal("model"))
			Expect(sent).To(Equal([]genai.Part{genai.FunctionResponse{
				Name:     "get_spending_for_item",
				Response: map[string]any{"total_spent": float64(7)},
			}}))
		})
	})

	When("the call fails", func() {
		BeforeEach(func() {
			sendErr = context.DeadlineExceeded
		})

		It("should return a timed-out ProviderError", func() {
			var pe *failure.ProviderError
			Expect(errors.As(err, &pe)).To(BeTrue())
			Expect(pe.Provider).To(Equal("gemini"))
			Expect(pe.Timeout()).To(BeTrue())
		})
	})

	When("there are no candidates", func() {
		BeforeEach(func() {
			response = &genai.GenerateContentResponse{}
		})

		It("should fail", func() {
			Expect(err).To(MatchError(ContainSubstring("no response from gemini")))
		})
	})
})

var _ = Describe("toGenaiSchema", func() {
	It("should convert nested arrays of objects", func() {
		s, err := toGenaiSchema(json.RawMessage(`{"type":"object","properties":{"items":{"type":"array","items":{"type":"object","properties":{"total_price":{"type":"number"}}}}}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Properties["items"].Items.Properties["total_price"].Type).To(Equal(genai.TypeNumber))
	})

	It("should reject unknown types", func() {
		_, err := toGenaiSchema(json.RawMessage(`{"type":"null"}`))
		Expect(err).To(MatchError(ContainSubstring(`unsupported schema type "null"`)))
	})
})
