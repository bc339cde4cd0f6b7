package speech

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-assistant/internal/failure"
)

var _ = Describe("ElevenLabs", func() {
	var (
		server *ghttp.Server
		synth  *ElevenLabs
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var err error
		synth, err = NewElevenLabsWithDeps(server.URL(), "xi-key", "voice-1", "", 0, &http.Client{})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("should require an api key", func() {
		_, err := NewElevenLabsWithDeps(server.URL(), "", "", "", 0, &http.Client{})
		Expect(err).To(MatchError("elevenlabs api key is required"))
	})

	Describe("Synthesize", func() {
		It("should post the text with default voice settings", func(ctx SpecContext) {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/v1/text-to-speech/voice-1"),
				ghttp.VerifyHeaderKV("xi-api-key", "xi-key"),
				ghttp.VerifyHeaderKV("Accept", "audio/mpeg"),
				ghttp.VerifyJSON(`{"text":"saved","model_id":"eleven_multilingual_v2","voice_settings":{"stability":0.5,"similarity_boost":0.5}}`),
				ghttp.RespondWith(http.StatusOK, "ID3mp3"),
			))

			audio, err := synth.Synthesize(ctx, "saved", "", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(audio.Format).To(Equal(FormatMP3))
			Expect(string(audio.Data)).To(Equal("ID3mp3"))
		})

		It("should use an explicit voice", func(ctx SpecContext) {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/v1/text-to-speech/other"),
				ghttp.RespondWith(http.StatusOK, "ID3"),
			))
			_, err := synth.Synthesize(ctx, "saved", "other", "eleven_turbo_v2")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should surface vendor errors as ProviderError", func(ctx SpecContext) {
			server.AppendHandlers(ghttp.RespondWith(http.StatusTooManyRequests, `{"detail":"quota"}`))
			_, err := synth.Synthesize(ctx, "saved", "", "")
			var pe *failure.ProviderError
			Expect(errors.As(err, &pe)).To(BeTrue())
			Expect(pe.RateLimited()).To(BeTrue())
			Expect(pe.Capability).To(Equal(failure.CapabilitySynthesis))
		})
	})

	Describe("ListVoices", func() {
		It("should map the voice list", func(ctx SpecContext) {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/v1/voices"),
				ghttp.RespondWith(http.StatusOK, `{"voices":[{"voice_id":"v1","name":"Rachel","labels":{"language":"en"}}]}`),
			))
			voices, err := synth.ListVoices(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(voices).To(ConsistOf(Voice{ID: "v1", Name: "Rachel", Language: "en"}))
		})
	})
})

type fakePolly struct {
	input     *polly.SynthesizeSpeechInput
	audio     []byte
	err       error
	voices    []pollytypes.Voice
	voicesErr error
}

func (f *fakePolly) SynthesizeSpeech(_ context.Context, params *polly.SynthesizeSpeechInput, _ ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &polly.SynthesizeSpeechOutput{AudioStream: io.NopCloser(bytes.NewReader(f.audio))}, nil
}

func (f *fakePolly) DescribeVoices(_ context.Context, _ *polly.DescribeVoicesInput, _ ...func(*polly.Options)) (*polly.DescribeVoicesOutput, error) {
	if f.voicesErr != nil {
		return nil, f.voicesErr
	}
	return &polly.DescribeVoicesOutput{Voices: f.voices}, nil
}

var _ = Describe("Polly", func() {
	var (
		client *fakePolly
		synth  *Polly
	)

	BeforeEach(func() {
		client = &fakePolly{audio: []byte("mp3")}
		synth = NewPollyWithClient(client, "", "", 0)
	})

	It("should request neural mp3 with the default voice", func(ctx SpecContext) {
		audio, err := synth.Synthesize(ctx, "hello", "", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(audio.Data).To(Equal([]byte("mp3")))
		Expect(client.input.VoiceId).To(Equal(pollytypes.VoiceId("Joanna")))
		Expect(client.input.Engine).To(Equal(pollytypes.EngineNeural))
		Expect(client.input.OutputFormat).To(Equal(pollytypes.OutputFormatMp3))
		Expect(aws.ToString(client.input.Text)).To(Equal("hello"))
	})

	It("should map throttling to a rate-limited ProviderError", func(ctx SpecContext) {
		client.err = &smithy.GenericAPIError{Code: "TooManyRequestsException", Message: "slow"}
		_, err := synth.Synthesize(ctx, "hello", "", "")
		var pe *failure.ProviderError
		Expect(errors.As(err, &pe)).To(BeTrue())
		Expect(pe.RateLimited()).To(BeTrue())
	})

	It("should list voices", func(ctx SpecContext) {
		client.voices = []pollytypes.Voice{{Id: pollytypes.VoiceIdMatthew, Name: aws.String("Matthew"), LanguageCode: pollytypes.LanguageCodeEnUs}}
		voices, err := synth.ListVoices(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(voices).To(ConsistOf(Voice{ID: "Matthew", Name: "Matthew", Language: "en-US"}))
	})
})
