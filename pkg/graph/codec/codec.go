package codec

import (
	"fmt"
	"slices"
	"sync"
)

// DecoderFunc converts the textual form of a field element into a typed value
type DecoderFunc func(text string) (any, error)

// EncoderFunc converts a typed value back into its textual form
type EncoderFunc func(value any) (string, error)

type Codec struct {
	Decode DecoderFunc
	Encode EncoderFunc
}

// Registry maps type tags to codecs and remembers every tag it has been asked to decode.
// Tags without a registered codec are converted with an identity codec that never fails.
type Registry struct {
	mu         sync.Mutex
	codecs     map[string]Codec
	aliases    map[string]string
	discovered map[string]struct{}
}

// Default is the process wide registry used when nothing else is configured
var Default = NewRegistry()

func NewRegistry() *Registry {
	r := &Registry{
		codecs:     map[string]Codec{},
		aliases:    map[string]string{},
		discovered: map[string]struct{}{},
	}

	registerBuiltins(r)

	return r
}

// Register installs (or replaces) the codec for a type tag
func (r *Registry) Register(typeTag string, c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.codecs[typeTag] = c
}

// Alias makes alias decode and encode exactly like typeTag
func (r *Registry) Alias(alias, typeTag string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.aliases[alias] = typeTag
}

func (r *Registry) lookup(typeTag string) (Codec, bool) {
	if target, ok := r.aliases[typeTag]; ok {
		typeTag = target
	}
	c, ok := r.codecs[typeTag]
	return c, ok
}

func (r *Registry) Decode(typeTag, text string) (any, error) {
	r.mu.Lock()
	r.discovered[typeTag] = struct{}{}
	c, ok := r.lookup(typeTag)
	r.mu.Unlock()

	if !ok {
		return text, nil
	}

	return c.Decode(text)
}

func (r *Registry) Encode(typeTag string, value any) (string, error) {
	r.mu.Lock()
	c, ok := r.lookup(typeTag)
	r.mu.Unlock()

	if !ok {
		return identityEncode(value)
	}

	return c.Encode(value)
}

// Canonical resolves an alias to the tag it stands for
func (r *Registry) Canonical(typeTag string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if target, ok := r.aliases[typeTag]; ok {
		return target
	}
	return typeTag
}

// Known reports whether a codec other than the identity fallback handles typeTag
func (r *Registry) Known(typeTag string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.lookup(typeTag)
	return ok
}

// DiscoveredTypes returns every tag passed to Decode so far, sorted
func (r *Registry) DiscoveredTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tags := make([]string, 0, len(r.discovered))
	for t := range r.discovered {
		tags = append(tags, t)
	}
	slices.Sort(tags)

	return tags
}

func Decode(typeTag, text string) (any, error) {
	return Default.Decode(typeTag, text)
}

func Encode(typeTag string, value any) (string, error) {
	return Default.Encode(typeTag, value)
}

func DiscoveredTypes() []string {
	return Default.DiscoveredTypes()
}

func identityEncode(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprint(v), nil
	}
}
