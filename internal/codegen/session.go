// Package codegen collects the C++ fragments produced while translating a
// configuration and renders them into source files.
//
// A Session is the state of one generation run. It is passed explicitly to
// every widget translator; nothing about a run lives in package globals, so
// two runs (for example two concurrent HTTP requests) never observe each
// other's "already emitted" markers.
package codegen

import (
	"fmt"
	"sort"
)

// Symbol is a declared, addressable object such as a widget.
type Symbol struct {
	ID    string
	Kind  string
	Value interface{}
}

// ProgmemArray is a read-only byte blob placed in flash.
type ProgmemArray struct {
	ID   string
	Data []byte
}

// Action is a generated `void name()` function.
type Action struct {
	Func string
	Body []string
}

// Input is a file read at generation time. It feeds the input hash.
type Input struct {
	Name string
	Data []byte
}

// Session holds everything emitted during one generation run.
type Session struct {
	once       map[string]bool
	reserved   map[string]bool
	claimed    map[string]bool
	counters   map[string]int
	symbols    map[string]Symbol
	order      []string
	globals    []string
	globalSeen map[string]bool
	setup      []string
	actions    []Action
	progmem    []ProgmemArray
	uses       map[string]bool
	components map[string]bool
	inputs     []Input
}

// NewSession creates an empty generation session.
func NewSession() *Session {
	return &Session{
		once:       make(map[string]bool),
		reserved:   make(map[string]bool),
		claimed:    make(map[string]bool),
		counters:   make(map[string]int),
		symbols:    make(map[string]Symbol),
		globalSeen: make(map[string]bool),
		uses:       make(map[string]bool),
		components: make(map[string]bool),
	}
}

// Once returns true the first time key is seen in this session and false
// on every later call.
func (s *Session) Once(key string) bool {
	if s.once[key] {
		return false
	}
	s.once[key] = true
	return true
}

// Reserve claims an identifier. Reserving the same id twice fails.
func (s *Session) Reserve(id string) error {
	if s.reserved[id] {
		return fmt.Errorf("id %q is already in use", id)
	}
	s.reserved[id] = true
	return nil
}

// GenerateID returns and reserves prefix_N, skipping taken names.
func (s *Session) GenerateID(prefix string) string {
	for {
		id := fmt.Sprintf("%s_%d", prefix, s.counters[prefix])
		s.counters[prefix]++
		if !s.reserved[id] {
			s.reserved[id] = true
			return id
		}
	}
}

// Claim takes ownership of a non-widget C identifier such as a PROGMEM
// array name. Unlike Reserve it accepts an id that was only reserved ahead
// of time; it fails once the id is claimed or declared.
func (s *Session) Claim(id string) error {
	if _, exists := s.symbols[id]; exists || s.claimed[id] {
		return fmt.Errorf("id %q is already in use", id)
	}
	s.reserved[id] = true
	s.claimed[id] = true
	return nil
}

// Declare registers an addressable symbol. The id must already be reserved
// or free.
func (s *Session) Declare(sym Symbol) error {
	if _, exists := s.symbols[sym.ID]; exists {
		return fmt.Errorf("symbol %q declared twice", sym.ID)
	}
	if s.claimed[sym.ID] {
		return fmt.Errorf("id %q is already in use", sym.ID)
	}
	s.reserved[sym.ID] = true
	s.symbols[sym.ID] = sym
	s.order = append(s.order, sym.ID)
	return nil
}

// Lookup finds a declared symbol.
func (s *Session) Lookup(id string) (Symbol, bool) {
	sym, ok := s.symbols[id]
	return sym, ok
}

// Symbols returns declared symbols in declaration order.
func (s *Session) Symbols() []Symbol {
	out := make([]Symbol, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.symbols[id])
	}
	return out
}

// AddGlobal appends a file-scope declaration. Identical text is emitted once.
func (s *Session) AddGlobal(code string) {
	if s.globalSeen[code] {
		return
	}
	s.globalSeen[code] = true
	s.globals = append(s.globals, code)
}

// AddSetup appends statements to lvgl_widgets_setup().
func (s *Session) AddSetup(stmts ...string) {
	s.setup = append(s.setup, stmts...)
}

// AddAction registers a script function and returns its C name.
func (s *Session) AddAction(script string, body []string) string {
	fn := "lvgl_action_" + script
	s.actions = append(s.actions, Action{Func: fn, Body: body})
	return fn
}

// AddProgmem stores data as a flash array and returns its id.
func (s *Session) AddProgmem(id string, data []byte) string {
	s.progmem = append(s.progmem, ProgmemArray{ID: id, Data: data})
	return id
}

// AddUse requests an LV_USE_<name> feature flag.
func (s *Session) AddUse(names ...string) {
	for _, n := range names {
		s.uses[n] = true
	}
}

// Require marks an LVGL component as needed by the build.
func (s *Session) Require(component string) {
	s.components[component] = true
}

// AddInput records a file consumed at generation time.
func (s *Session) AddInput(name string, data []byte) {
	s.inputs = append(s.inputs, Input{Name: name, Data: data})
}

// Uses returns requested feature flags, sorted.
func (s *Session) Uses() []string {
	return sortedKeys(s.uses)
}

// Components returns required components, sorted.
func (s *Session) Components() []string {
	return sortedKeys(s.components)
}

// Inputs returns the files read during the run in read order.
func (s *Session) Inputs() []Input {
	return s.inputs
}

// Globals returns file-scope declarations in emission order.
func (s *Session) Globals() []string {
	return s.globals
}

// Setup returns setup statements in emission order.
func (s *Session) Setup() []string {
	return s.setup
}

// Actions returns generated action functions.
func (s *Session) Actions() []Action {
	return s.actions
}

// Progmem returns flash arrays in emission order.
func (s *Session) Progmem() []ProgmemArray {
	return s.progmem
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
