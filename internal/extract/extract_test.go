package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"edureg/internal/student"
)

var today = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestClientExtract(t *testing.T) {
	var got extractRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"studentId":null,"name":" Ada Lovelace ","sex":"Female","course":"Math","date":"2024-02-28","time":""}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, false)
	d, err := c.Extract(context.Background(), "  Ada, female, math, enrolled Feb 28  ", today)
	require.NoError(t, err)

	assert.Equal(t, "Ada, female, math, enrolled Feb 28", got.Text)
	assert.Equal(t, "2024-03-01", got.Date)

	assert.Nil(t, d.StudentID)
	assert.Nil(t, d.Time)
	assert.Equal(t, "Ada Lovelace", *d.Name)
	assert.Equal(t, student.Female, *d.Sex)
	assert.Equal(t, "2024-02-28", *d.Date)
}

func TestClientFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"name":`))
		}},
		{"invalid sex", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"name":"Ada","sex":"Robot"}`))
		}},
		{"invalid date", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"date":"March 1st"}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			d, err := NewClient(srv.URL, time.Second, false).Extract(context.Background(), "some text", today)
			assert.Nil(t, d)
			assert.ErrorIs(t, err, ErrFailed)
			assert.Equal(t, Message, err.Error())
		})
	}
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second, false).Extract(context.Background(), "text", today)
	assert.ErrorIs(t, err, ErrFailed)
	assert.Error(t, NewClient(url, time.Second, false).Health(context.Background()))
}

func TestEmptyInputSkipsService(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, false).Extract(context.Background(), " \n\t", today)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.False(t, called)
}

func TestClientSkipAndHealth(t *testing.T) {
	c := NewClient("http://unused", 0, true)
	d, err := c.Extract(context.Background(), "anything", today)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", *d.Date)
	assert.NoError(t, c.Health(context.Background()))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
	}))
	defer srv.Close()
	assert.NoError(t, NewClient(srv.URL, time.Second, false).Health(context.Background()))
}

type fakeModels struct {
	model  string
	prompt string
	config *genai.GenerateContentConfig
	reply  string
	err    error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	for _, c := range contents {
		for _, p := range c.Parts {
			f.prompt += p.Text
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.reply}}},
		}},
	}, nil
}

func TestGeminiExtract(t *testing.T) {
	fake := &fakeModels{reply: `{"studentId":"0042","name":"Grace Hopper","sex":"Female","course":"Navy CS","date":null,"time":"09:15"}`}
	g := newGemini(fake, "")

	d, err := g.Extract(context.Background(), "Grace Hopper, id 42", today)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, fake.model)
	assert.Contains(t, fake.prompt, "Grace Hopper, id 42")
	assert.Contains(t, fake.prompt, "2024-03-01")
	assert.Equal(t, "application/json", fake.config.ResponseMIMEType)
	assert.Equal(t, []string{"studentId", "name", "sex", "course", "date", "time"}, fake.config.ResponseSchema.PropertyOrdering)
	assert.Equal(t, []string{"Male", "Female", "Other"}, fake.config.ResponseSchema.Properties["sex"].Enum)

	assert.Equal(t, "0042", *d.StudentID)
	assert.Equal(t, "09:15", *d.Time)
	assert.Nil(t, d.Date)
}

func TestGeminiFailures(t *testing.T) {
	for name, fake := range map[string]*fakeModels{
		"api error": {err: errors.New("quota")},
		"not json":  {reply: "Sorry, I cannot help"},
		"bad time":  {reply: `{"time":"quarter past nine"}`},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := newGemini(fake, "m").Extract(context.Background(), "text", today)
			assert.ErrorIs(t, err, ErrFailed)
		})
	}
}

func TestNewBackends(t *testing.T) {
	ctx := context.Background()

	e, err := New(ctx, Options{})
	require.NoError(t, err)
	_, err = e.Extract(ctx, "text", today)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.False(t, errors.Is(err, ErrFailed))

	e, err = New(ctx, Options{Backend: "HTTP", URL: "http://x"})
	require.NoError(t, err)
	assert.IsType(t, &Client{}, e)

	_, err = New(ctx, Options{Backend: "gemini"})
	assert.Error(t, err)

	_, err = New(ctx, Options{Backend: "carrier-pigeon"})
	assert.True(t, strings.Contains(err.Error(), "carrier-pigeon"))
}
