package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adda-Baaj/news-digest/internal/logger"
	"github.com/Adda-Baaj/news-digest/pkg/httpclient"
)

func TestHTTPPublisher_PostsEvent(t *testing.T) {
	var (
		gotMethod string
		gotAuth   string
		got       DigestEvent
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	pub, err := newHTTPPublisher(context.Background(), sanitizeSink(SinkConfig{
		ID:   "hook",
		Type: TypeHTTP,
		HTTP: &HTTPConfig{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer t"}},
	}), nil)
	require.NoError(t, err)

	evt := NewDigestEvent("run-7", "Daily News", 1, sampleDigest())
	require.NoError(t, pub.Publish(context.Background(), evt))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Bearer t", gotAuth)
	assert.Equal(t, "run-7", got.RunID)
	assert.Equal(t, 2, got.Total)
}

func TestHTTPPublisher_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	pub := newHTTPPublisherWithClient(SinkConfig{ID: "hook", HTTP: &HTTPConfig{URL: srv.URL}}, httpclient.NewRestyClient(0), nil)
	err := pub.Publish(context.Background(), NewDigestEvent("r", "s", 1, sampleDigest()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPPublisher_ErrorBodyStaysValidUTF8(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("ü", 300)))
	}))
	defer srv.Close()

	pub := newHTTPPublisherWithClient(SinkConfig{ID: "hook", HTTP: &HTTPConfig{URL: srv.URL}}, httpclient.NewRestyClient(0), nil)
	err := pub.Publish(context.Background(), NewDigestEvent("r", "s", 1, sampleDigest()))
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))
	assert.Contains(t, err.Error(), strings.Repeat("ü", httpErrorSnippet)+"...")
}

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSSender_FIFOAttributes(t *testing.T) {
	fake := &fakeSQS{}
	s := &awsSQSSender{queueURL: "https://sqs/q.fifo", fifo: true, client: fake, log: logger.NopLogger{}}

	require.NoError(t, s.Send(context.Background(), NewDigestEvent("run-9", "s", 1, sampleDigest())))

	require.NotNil(t, fake.input)
	assert.Equal(t, "run-9", aws.ToString(fake.input.MessageDeduplicationId))
	assert.Equal(t, "run-9", aws.ToString(fake.input.MessageAttributes["run_id"].StringValue))
	assert.Equal(t, "2", aws.ToString(fake.input.MessageAttributes["total"].StringValue))
	assert.Contains(t, aws.ToString(fake.input.MessageBody), `"run_id":"run-9"`)
}

func TestQueuePublisher_WrapsSenderError(t *testing.T) {
	s := &awsSQSSender{queueURL: "https://sqs/q", client: &fakeSQS{err: errors.New("throttled")}, log: logger.NopLogger{}}
	pub := &queuePublisher{id: "archive", provider: QueueProviderAWSSQS, sender: s}

	err := pub.Publish(context.Background(), NewDigestEvent("r", "s", 1, sampleDigest()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aws-sqs")
	assert.Contains(t, err.Error(), "throttled")
	assert.Nil(t, s.client.(*fakeSQS).input.MessageDeduplicationId)
}

type fakeSNS struct{ input *sns.PublishInput }

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	return &sns.PublishOutput{MessageId: aws.String("m-2")}, nil
}

func TestSNSSender_TruncatesSubject(t *testing.T) {
	fake := &fakeSNS{}
	s := &awsSNSSender{topicARN: "arn:aws:sns:eu-west-1:123:digests", client: fake, log: logger.NopLogger{}}

	evt := NewDigestEvent("run-1", strings.Repeat("x", 150), 1, sampleDigest())
	require.NoError(t, s.Send(context.Background(), evt))
	assert.Len(t, aws.ToString(fake.input.Subject), snsSubjectLimit)
}

func TestNewQueuePublisher_BuildsSQSOffline(t *testing.T) {
	pub, err := newQueuePublisher(context.Background(), SinkConfig{
		ID:   "archive",
		Type: TypeQueue,
		Queue: &QueueConfig{
			Provider: QueueProviderAWSSQS,
			SQS:      &SQSConfig{QueueURL: "https://sqs/q", Region: "eu-west-1", AccessKeyID: "a", SecretAccessKey: "b"},
		},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeQueue, pub.Type())
}

func TestTelegramPublisher(t *testing.T) {
	var (
		mu   sync.Mutex
		text string
		chat string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"digest","username":"digest_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			require.NoError(t, r.ParseForm())
			mu.Lock()
			text = r.PostForm.Get("text")
			chat = r.PostForm.Get("chat_id")
			mu.Unlock()
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":5,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	pub, err := newTelegramPublisher(context.Background(), SinkConfig{
		ID:       "chat",
		Type:     TypeTelegram,
		Telegram: &TelegramConfig{BotToken: "123:abc", ChatID: 42, APIEndpoint: srv.URL + "/bot%s/%s"},
	}, nil)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(context.Background(), NewDigestEvent("r", "Daily News", 1, sampleDigest())))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "42", chat)
	assert.Equal(t, "Daily News\n\nTECHNOLOGY\n• A\nu1\n• B\nu2", text)
}

func TestTelegramText_Truncates(t *testing.T) {
	evt := DigestEvent{Subject: strings.Repeat("é", telegramMessageLimit+10)}
	assert.Len(t, []rune(telegramText(evt)), telegramMessageLimit)
}
