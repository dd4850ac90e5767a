package service

import (
	"context"
	"errors"
	"sync"

	"site-research-be/pkg/agent"
)

var errAgent = errors.New("agent exploded")

type fakeRunner struct {
	mu      sync.Mutex
	result  *agent.Result
	err     error
	queries []string
	threads []string
}

func (f *fakeRunner) Run(ctx context.Context, query, threadID string) (*agent.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.threads = append(f.threads, threadID)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.ThreadID = threadID
	return &res, nil
}

func (f *fakeRunner) Stream(ctx context.Context, query, threadID string, emit func(agent.SessionState) error) (*agent.Result, error) {
	s := agent.NewSessionState(threadID, query)
	if err := emit(*s); err != nil {
		return nil, err
	}
	return f.Run(ctx, query, threadID)
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    map[string]string
	read    []string
	sendErr error
}

func (m *fakeMessenger) SendText(ctx context.Context, to, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent == nil {
		m.sent = map[string]string{}
	}
	m.sent[to] = text
	return m.sendErr
}

func (m *fakeMessenger) MarkAsRead(ctx context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.read = append(m.read, messageID)
	return nil
}

type fakeIngester struct {
	mu      sync.Mutex
	urls    []string
	cleared int
	err     error
}

func (f *fakeIngester) Ingest(ctx context.Context, url string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	return 3, f.err
}

func (f *fakeIngester) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return f.err
}
