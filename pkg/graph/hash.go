package graph

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/diwise/levelstore/pkg/document"
	"golang.org/x/crypto/blake2b"
)

// Digest is a 256 bit blake2b sum
type Digest [blake2b.Size256]byte

func (d Digest) String() string {
	return "blake2b-" + hex.EncodeToString(d[:])
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

func newHasher() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	return h
}

func sum(h hash.Hash) Digest {
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func writeCount(h hash.Hash, n int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	h.Write(b[:])
}

// writeString writes a length prefixed string so that adjacent fields can not run into each other
func writeString(h hash.Hash, s string) {
	writeCount(h, len(s))
	h.Write([]byte(s))
}

const nullMarker string = "\x00null"

// ContentHash digests the type and the encoded value attributes of o. Identifiers
// and pointers do not contribute, so two objects with equal content hash equally.
func (o *Object) ContentHash() Digest {
	h := newHasher()
	writeString(h, o.typeTag)

	registry := o.codecs()

	for _, a := range o.attrs {
		if a.kind != ValueAttribute {
			continue
		}

		texts, err := a.encodeItems(registry)
		if err != nil {
			panic(fmt.Sprintf("unable to hash %s: %s", o, err.Error()))
		}

		writeString(h, a.name)
		writeCount(h, len(texts))

		for _, text := range texts {
			writeString(h, text)
		}
	}

	return sum(h)
}

// RecursiveHash combines the content hash of o with the recursive hashes of every
// object it points to. Objects already in visited contribute only their content
// hash, which keeps cycles finite. A nil visited set starts a new traversal.
//
// Before o has been linked its pointers contribute their raw identifiers.
func (o *Object) RecursiveHash(visited map[string]bool) Digest {
	if visited == nil {
		visited = map[string]bool{}
	}
	visited[o.ID()] = true

	h := newHasher()

	own := o.ContentHash()
	h.Write(own[:])

	for _, a := range o.attrs {
		if a.kind != PointerAttribute {
			continue
		}

		writeString(h, a.name)
		writeCount(h, a.Len())

		if !a.resolved {
			for _, id := range a.refs {
				if id == document.NullID {
					writeString(h, nullMarker)
				} else {
					writeString(h, "ref:"+id)
				}
			}
			continue
		}

		for _, t := range a.targets {
			var d Digest

			switch {
			case t == nil:
				writeString(h, nullMarker)
				continue
			case visited[t.ID()]:
				d = t.ContentHash()
			default:
				d = t.RecursiveHash(visited)
			}

			h.Write(d[:])
		}
	}

	return sum(h)
}
