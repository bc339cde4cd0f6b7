package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/zombor/receipt-assistant/internal/failure"
)

const pollyName = "polly"

type pollyClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
	DescribeVoices(ctx context.Context, params *polly.DescribeVoicesInput, optFns ...func(*polly.Options)) (*polly.DescribeVoicesOutput, error)
}

// Polly implements Synthesizer with Amazon Polly
type Polly struct {
	client  pollyClient
	voiceID string
	engine  pollytypes.Engine
	timeout time.Duration
}

// NewPolly loads the default AWS credential chain for region
func NewPolly(ctx context.Context, region, voiceID, engine string, timeout time.Duration) (*Polly, error) {
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewPollyWithClient(polly.NewFromConfig(awsCfg), voiceID, engine, timeout), nil
}

// NewPollyWithClient creates a Polly synthesizer on client for testing
func NewPollyWithClient(client pollyClient, voiceID, engine string, timeout time.Duration) *Polly {
	if voiceID == "" {
		voiceID = "Joanna"
	}
	e := pollytypes.EngineNeural
	if engine == string(pollytypes.EngineStandard) {
		e = pollytypes.EngineStandard
	}
	return &Polly{client: client, voiceID: voiceID, engine: e, timeout: timeout}
}

// Synthesize returns MP3 speech for text. model selects the Polly engine.
func (p *Polly) Synthesize(ctx context.Context, text, voiceID, model string) (*Audio, error) {
	if voiceID == "" {
		voiceID = p.voiceID
	}
	engine := p.engine
	if model != "" {
		engine = pollytypes.Engine(model)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	out, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         aws.String(text),
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(voiceID),
	})
	if err != nil {
		return nil, pollyError(err)
	}
	if out == nil || out.AudioStream == nil {
		return nil, failure.NewProviderError(pollyName, failure.CapabilitySynthesis, 0, errors.New("empty audio"))
	}
	defer out.AudioStream.Close()

	data, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, failure.NewProviderError(pollyName, failure.CapabilitySynthesis, 0, fmt.Errorf("reading audio stream: %w", err))
	}
	return &Audio{Data: data, Format: FormatMP3}, nil
}

// ListVoices returns the voices available for the configured engine
func (p *Polly) ListVoices(ctx context.Context) ([]Voice, error) {
	out, err := p.client.DescribeVoices(ctx, &polly.DescribeVoicesInput{Engine: p.engine})
	if err != nil {
		return nil, pollyError(err)
	}
	voices := make([]Voice, 0, len(out.Voices))
	for _, v := range out.Voices {
		voices = append(voices, Voice{
			ID:       string(v.Id),
			Name:     aws.ToString(v.Name),
			Language: string(v.LanguageCode),
		})
	}
	return voices, nil
}

// pollyError maps Polly error codes onto HTTP-like statuses.
func pollyError(err error) error {
	status := 0
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException", "ThrottlingException":
			status = http.StatusTooManyRequests
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException", "InvalidSampleRateException":
			status = http.StatusBadRequest
		default:
			status = http.StatusInternalServerError
		}
	}
	return failure.NewProviderError(pollyName, failure.CapabilitySynthesis, status, err)
}

// Close is a no-op; the AWS client holds no resources
func (p *Polly) Close() error {
	return nil
}
