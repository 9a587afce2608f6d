package testsupport

import (
	"context"
	"sync"
	"testing"

	"sessionimport/internal/importer"
)

// Script describes how a fake pipeline behaves.
type Script struct {
	BuildErr error
	Needed   bool
	CheckErr error
	RunErr   error
	// CheckFunc overrides Needed/CheckErr; call counts from 1.
	CheckFunc func(call int) (bool, error)
	// RunFunc overrides RunErr; call counts from 1.
	RunFunc func(call int) error
}

// FakePipeline implements importer.Pipeline and importer.Transferer from a Script.
type FakePipeline struct {
	mu     sync.Mutex
	script Script
	checks int
	runs   int
}

// NewFakePipeline wraps script in a pipeline.
func NewFakePipeline(script Script) *FakePipeline {
	return &FakePipeline{script: script}
}

func (p *FakePipeline) Transferer() importer.Transferer { return p }

func (p *FakePipeline) CheckChecksums(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks++
	if p.script.CheckFunc != nil {
		return p.script.CheckFunc(p.checks)
	}
	return p.script.Needed, p.script.CheckErr
}

func (p *FakePipeline) Run(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs++
	if p.script.RunFunc != nil {
		return p.script.RunFunc(p.runs)
	}
	return p.script.RunErr
}

// Checks returns how many times CheckChecksums ran.
func (p *FakePipeline) Checks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checks
}

// Runs returns how many times Run ran.
func (p *FakePipeline) Runs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs
}

// ScriptedBuilders hands out fake pipelines keyed by kind and Params.SessionKey.
// Units without a script get Default.
type ScriptedBuilders struct {
	mu        sync.Mutex
	Default   Script
	scripts   map[importer.Kind]map[string]Script
	built     map[importer.Kind][]importer.Params
	pipelines map[importer.Kind]map[string]*FakePipeline
}

// NewScriptedBuilders returns builders whose unscripted units report no change.
func NewScriptedBuilders() *ScriptedBuilders {
	return &ScriptedBuilders{
		scripts:   make(map[importer.Kind]map[string]Script),
		built:     make(map[importer.Kind][]importer.Params),
		pipelines: make(map[importer.Kind]map[string]*FakePipeline),
	}
}

// Set scripts the unit of kind identified by key.
func (s *ScriptedBuilders) Set(kind importer.Kind, key string, script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scripts[kind] == nil {
		s.scripts[kind] = make(map[string]Script)
	}
	s.scripts[kind][key] = script
}

// Built returns the params every build call of kind received, in call order.
func (s *ScriptedBuilders) Built(kind importer.Kind) []importer.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]importer.Params(nil), s.built[kind]...)
}

// Pipeline returns the most recent fake built for kind and key.
func (s *ScriptedBuilders) Pipeline(kind importer.Kind, key string) *FakePipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipelines[kind][key]
}

func (s *ScriptedBuilders) builder(kind importer.Kind) importer.Builder {
	return func(params importer.Params) (importer.Pipeline, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.built[kind] = append(s.built[kind], params)
		key := params.SessionKey()
		script, ok := s.scripts[kind][key]
		if !ok {
			script = s.Default
		}
		if script.BuildErr != nil {
			return nil, script.BuildErr
		}
		pipeline := NewFakePipeline(script)
		if s.pipelines[kind] == nil {
			s.pipelines[kind] = make(map[string]*FakePipeline)
		}
		s.pipelines[kind][key] = pipeline
		return pipeline, nil
	}
}

// Registry registers the scripted builder for every kind.
func (s *ScriptedBuilders) Registry(t testing.TB) *importer.Registry {
	t.Helper()
	builders := make(map[importer.Kind]importer.Builder)
	for _, kind := range importer.Kinds() {
		builders[kind] = s.builder(kind)
	}
	reg, err := importer.NewRegistry(builders)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

// MustImporter builds an importer for a single fake pipeline.
func MustImporter(t testing.TB, kind importer.Kind, params importer.Params, pipeline importer.Pipeline) *importer.Importer {
	t.Helper()
	reg, err := importer.NewRegistry(map[importer.Kind]importer.Builder{
		kind: func(importer.Params) (importer.Pipeline, error) { return pipeline, nil },
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	imp, err := importer.New(reg, kind, params)
	if err != nil {
		t.Fatalf("importer.New: %v", err)
	}
	return imp
}
