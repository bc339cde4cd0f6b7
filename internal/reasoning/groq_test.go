package reasoning

import (
	"encoding/json"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-assistant/internal/failure"
	"github.com/zombor/receipt-assistant/internal/openaicompat"
)

var _ = Describe("Groq", func() {
	var (
		server   *ghttp.Server
		reasoner *Groq
		req      *Request
		resp     *Response
		err      error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		reasoner = NewGroqWithDeps(openaicompat.New(server.URL(), "key"), "llama-test", 0, &sequentialIDs{})
		req = &Request{
			Messages: []Message{
				{Role: RoleSystem, Content: "sys"},
				{Role: RoleUser, Content: "2 milks at $5"},
				{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_x", Name: "save_data_to_db", Arguments: json.RawMessage(`{"receipt_id":1}`)}}},
				{Role: RoleTool, ToolCallID: "call_x", Name: "save_data_to_db", Content: `{"success":false}`},
			},
			Tools:      []Tool{{Name: "save_data_to_db", Parameters: json.RawMessage(`{"type":"object"}`)}},
			ToolChoice: ToolChoiceAuto,
		}
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func(ctx SpecContext) {
		resp, err = reasoner.Complete(ctx, req)
	})

	When("the vendor returns tool calls", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/chat/completions"),
				ghttp.VerifyJSON(`{
					"model": "llama-test",
					"tool_choice": "auto",
					"messages": [
						{"role": "system", "content": "sys"},
						{"role": "user", "content": "2 milks at $5"},
						{"role": "assistant", "content": "", "tool_calls": [{"id": "call_x", "type": "function", "function": {"name": "save_data_to_db", "arguments": "{\"receipt_id\":1}"}}]},
						{"role": "tool", "content": "{\"success\":false}", "tool_call_id": "call_x", "name": "save_data_to_db"}
					],
					"tools": [{"type": "function", "function": {"name": "save_data_to_db", "parameters": {"type": "object"}}}]
				}`),
				ghttp.RespondWith(http.StatusOK, `{"model":"llama-test","choices":[{"finish_reason":"tool_calls","message":{"role":"assistant","content":null,
					"tool_calls":[
						{"id":"","type":"function","function":{"name":"save_data_to_db","arguments":"{\"receipt_id\":2}"}},
						{"id":"call_z","type":"function","function":{"name":"save_data_to_db","arguments":"not json"}}
					]}}],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`),
			))
		})

		It("should map calls, filling missing ids", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.FinishReason).To(Equal("tool_calls"))
			Expect(resp.ToolCalls).To(HaveLen(2))
			Expect(resp.ToolCalls[0].ID).To(Equal("call_1"))
			Expect(resp.ToolCalls[0].Arguments).To(MatchJSON(`{"receipt_id":2}`))
			Expect(resp.ToolCalls[1].ID).To(Equal("call_z"))
			Expect(resp.ToolCalls[1].Arguments).To(MatchJSON(`"not json"`))
			Expect(resp.Usage.TotalTokens).To(Equal(7))
		})
	})

	When("the vendor is rate limiting", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusTooManyRequests, `{"error":{"message":"rate limit"}}`))
		})

		It("should return a rate-limited ProviderError", func() {
			var pe *failure.ProviderError
			Expect(errors.As(err, &pe)).To(BeTrue())
			Expect(pe.Provider).To(Equal("groq"))
			Expect(pe.Capability).To(Equal(failure.CapabilityReasoning))
			Expect(pe.RateLimited()).To(BeTrue())
		})
	})
})
