package model

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/hupe1980/agentloom/core"
)

var _ Model = (*MockModel)(nil)

func collect(t *testing.T, respCh <-chan Response, errCh <-chan error) []Response {
	t.Helper()

	var responses []Response
	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			responses = append(responses, resp)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			t.Fatalf("generate: %v", err)
		}
	}
	return responses
}

func userRequest(text string) Request {
	return Request{Contents: []core.Content{core.NewTextContent("user", text)}}
}

func TestMockModel_ScriptedTurnsInOrder(t *testing.T) {
	m := NewMockModel("m", "mock")
	m.QueueTextResponse("first")
	m.QueueTextResponse("second")

	respCh, errCh := m.Generate(context.Background(), userRequest("a"))
	resp := collect(t, respCh, errCh)
	if len(resp) != 1 || resp[0].Content.Text() != "first" {
		t.Fatalf("unexpected first turn: %+v", resp)
	}

	respCh, errCh = m.Generate(context.Background(), userRequest("b"))
	resp = collect(t, respCh, errCh)
	if len(resp) != 1 || resp[0].Content.Text() != "second" {
		t.Fatalf("unexpected second turn: %+v", resp)
	}
}

func TestMockModel_CannedResponseByPrompt(t *testing.T) {
	m := NewMockModel("m", "mock")
	m.AddResponse("ping", "pong")

	respCh, errCh := m.Generate(context.Background(), userRequest("ping"))
	resp := collect(t, respCh, errCh)
	if len(resp) != 1 || resp[0].Content.Text() != "pong" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestMockModel_ConcurrentScriptPops(t *testing.T) {
	m := NewMockModel("m", "mock")
	const n = 16
	for i := 0; i < n; i++ {
		m.QueueTextResponse(fmt.Sprintf("turn-%02d", i))
	}

	texts := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			respCh, errCh := m.Generate(context.Background(), userRequest("x"))
			resp := collect(t, respCh, errCh)
			if len(resp) == 1 {
				texts[i] = resp[0].Content.Text()
			}
		}()
	}
	wg.Wait()

	// Every scripted turn must be handed out exactly once.
	sort.Strings(texts)
	for i := 0; i < n; i++ {
		want := fmt.Sprintf("turn-%02d", i)
		if texts[i] != want {
			t.Fatalf("scripted turns lost or duplicated: %v", texts)
		}
	}
}

func TestMockModel_StreamEmitsPartialsThenFinal(t *testing.T) {
	m := NewMockModel("m", "mock")
	m.AddResponse("hi", "ok")

	req := userRequest("hi")
	req.Stream = true
	respCh, errCh := m.Generate(context.Background(), req)
	resp := collect(t, respCh, errCh)

	if len(resp) != 3 {
		t.Fatalf("expected 2 partials + final, got %d", len(resp))
	}
	final := resp[len(resp)-1]
	if final.Partial || final.Content.Text() != "ok" {
		t.Fatalf("unexpected final chunk: %+v", final)
	}
}
