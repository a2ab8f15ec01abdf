// Package chatformat holds the fixed prompt conventions used to wrap an
// instruction before tokenization.
package chatformat

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownFormat is returned by Lookup for unregistered names.
var ErrUnknownFormat = errors.New("unknown chat format")

// Format wraps a user turn and the assistant reply that follows it.
type Format interface {
	Name() string
	Prompt(user string) string
	Completion(reply string) string
}

type tulu struct{}

func (tulu) Name() string { return "tulu" }
func (tulu) Prompt(user string) string { return "<|user|>\n" + user + "\n<|assistant|>\n" }
func (tulu) Completion(reply string) string { return reply }

type llamaChat struct{}

func (llamaChat) Name() string { return "llama-chat" }
func (llamaChat) Prompt(user string) string { return "[INST] " + user + " [/INST]" }
func (llamaChat) Completion(reply string) string { return " " + reply }

// None names the plain format used when chat formatting is disabled.
const None = "none"

// plain is used when chat formatting is disabled.
type plain struct{}

func (plain) Name() string { return None }
func (plain) Prompt(user string) string { return user + "\n\n" }
func (plain) Completion(reply string) string { return reply }

var registry = map[string]Format{
	"tulu":       tulu{},
	"llama-chat": llamaChat{},
}

// Lookup returns the format registered under name (case-insensitive).
func Lookup(name string) (Format, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownFormat, name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Resolve returns the plain format when chat formatting is off, else Lookup(name).
func Resolve(useChatFormat bool, name string) (Format, error) {
	if !useChatFormat {
		return plain{}, nil
	}
	return Lookup(name)
}

// Names lists registered formats in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
