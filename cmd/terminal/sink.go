package main

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/montarelab/rev-ai/internal/core"
)

// programSink forwards review progress into the bubbletea event loop.
type programSink struct {
	mu      sync.RWMutex
	program *tea.Program
}

func (s *programSink) attach(p *tea.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.program = p
}

func (s *programSink) OnEvent(ev core.ProgressEvent) {
	s.mu.RLock()
	p := s.program
	s.mu.RUnlock()
	if p != nil {
		p.Send(progressMsg(ev))
	}
}
