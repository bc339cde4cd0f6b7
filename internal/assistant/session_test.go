package assistant

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-assistant/internal/vad"
)

var _ = Describe("AudioSession", func() {
	var (
		extractor   *mockExtractor
		transcriber *mockTranscriber
		session     *AudioSession
		clock       float64
		mu          sync.Mutex
		replies     []Reply
	)

	push := func(amplitude int16, frames int) {
		for i := 0; i < frames; i++ {
			session.Push(vad.Frame{Data: frame(amplitude), ElapsedMS: clock, Start: clock == 0})
			clock += 100
		}
	}

	received := func() []Reply {
		mu.Lock()
		defer mu.Unlock()
		return append([]Reply(nil), replies...)
	}

	BeforeEach(func() {
		extractor = &mockExtractor{result: savedResult()}
		transcriber = &mockTranscriber{text: "two milks for ten dollars"}
		clock = 0
		replies = nil

		a := New(extractor, transcriber, nil, nil, Config{})
		session = a.NewAudioSession(context.Background(), vad.Config{}, func(r Reply) {
			mu.Lock()
			defer mu.Unlock()
			replies = append(replies, r)
		})
	})

	AfterEach(func() {
		session.Close()
	})

	It("should answer an utterance once silence is sustained", func() {
		push(5000, 20)
		push(0, 13)

		Eventually(received).Should(HaveLen(1))
		Expect(received()[0].Text).To(HaveSuffix("Grand Total: $13.00"))
		Expect(transcriber.calls()).To(Equal(1))
		Expect(session.State()).To(Equal(vad.StateArmed))
	})

	It("should answer short utterances without transcribing", func() {
		push(5000, 2)
		push(0, 13)

		Eventually(received).Should(HaveLen(1))
		Expect(received()[0].Text).To(Equal(MsgTooShort))
		Expect(transcriber.calls()).To(BeZero())
	})

	It("should answer consecutive utterances in order", func() {
		push(5000, 2)
		push(0, 13)
		push(5000, 20)
		push(0, 13)

		Eventually(received).Should(HaveLen(2))
		Expect(received()[0].Text).To(Equal(MsgTooShort))
		Expect(received()[1].Text).To(HaveSuffix("Grand Total: $13.00"))
	})

	It("should not answer while the speaker is still talking", func() {
		push(5000, 20)
		push(0, 5)

		Consistently(received, "200ms").Should(BeEmpty())
		Expect(session.State()).To(Equal(vad.StateSilentPending))
	})

	It("should finish pending work on Close", func() {
		push(5000, 20)
		push(0, 13)
		session.Close()
		Expect(received()).To(HaveLen(1))
	})
})
