// Package refs resolves Git references: loose refs stored one per
// blob key, the packed-refs text file, and symbolic ref chains between
// them.
package refs

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ahmetskilinc/gitbruv/blob"
	"github.com/ahmetskilinc/gitbruv/object"
)

// ErrNotExist is returned when a ref does not resolve to anything,
// loose or packed.
var ErrNotExist = errors.New("refs: ref does not exist")

// ErrMaxDepth is returned when a symbolic ref chain exceeds maxDepth
// hops without resolving to an object id, guarding against cycles.
var ErrMaxDepth = errors.New("refs: symbolic ref chain too deep")

// maxDepth bounds symbolic ref resolution, mirroring the depth guard
// the resolver this package is adapted from uses.
const maxDepth = 10

const packedRefsName = "packed-refs"

// ErrInvalidRef is returned when a refname argument is not well-formed
// according to ValidName.
var ErrInvalidRef = errors.New("refs: invalid refname")

func looseKey(prefix, name string) string {
	return fmt.Sprintf("%s/%s", prefix, name)
}

// ValidName reports whether name is a well-formed refname under the
// git-check-ref-format(1) rules. Callers should validate any
// caller-supplied refname with this before passing it to Resolve,
// WriteLoose, or List.
func ValidName(name string) bool {
	return strings.HasPrefix(name, "refs/") &&
		!strings.Contains(name, "/.") &&
		!strings.Contains(name, "..") &&
		strings.IndexFunc(name, func(r rune) bool {
			return r < 0x20 ||
				r == 0x7F ||
				r == ' ' ||
				r == '~' ||
				r == '^' ||
				r == ':' ||
				r == '?' ||
				r == '['
		}) == -1 &&
		!strings.HasSuffix(name, "/") &&
		!strings.Contains(name, "//") &&
		!strings.HasSuffix(name, ".") &&
		!strings.HasSuffix(name, ".lock") &&
		!strings.Contains(name, "@{") &&
		!strings.Contains(name, `\`)
}

// findList is the search order Find uses to disambiguate an
// abbreviated refname, mirroring gitrevisions(7).
var findList = []string{
	"refs/%s",
	"refs/tags/%s",
	"refs/heads/%s",
	"refs/remotes/%s",
}

// Find disambiguates an abbreviated refname (e.g. "main") by trying
// each of the standard ref namespaces in turn and resolving the first
// one that exists.
func Find(adapter blob.Adapter, prefix, name string) (object.ID, error) {
	if ValidName(name) {
		return Resolve(adapter, prefix, name)
	}
	for _, format := range findList {
		id, err := Resolve(adapter, prefix, fmt.Sprintf(format, name))
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrNotExist) {
			return object.ZeroID, err
		}
	}
	return object.ZeroID, ErrNotExist
}

// ReadLoose reads a single loose ref. It returns ok == false if no
// loose ref exists at name. content is the trimmed file content: either
// a 40-hex object id or a "ref: <target>" symbolic pointer.
func ReadLoose(adapter blob.Adapter, prefix, name string) (content string, ok bool, err error) {
	data, ok, err := adapter.Get(looseKey(prefix, name))
	if err != nil || !ok {
		return "", ok, err
	}
	return strings.TrimSpace(string(data)), true, nil
}

// WriteLoose writes a loose ref pointing directly at id.
func WriteLoose(adapter blob.Adapter, prefix, name string, id object.ID) error {
	return adapter.Put(looseKey(prefix, name), []byte(id.String()+"\n"))
}

// ReadPackedRefs parses the packed-refs file, ignoring comment lines
// ("#") and peeled-tag annotation lines ("^"). It returns an empty,
// non-nil map and ok == false if no packed-refs file exists.
func ReadPackedRefs(adapter blob.Adapter, prefix string) (refs map[string]string, ok bool, err error) {
	data, ok, err := adapter.Get(fmt.Sprintf("%s/%s", prefix, packedRefsName))
	refs = make(map[string]string)
	if err != nil || !ok {
		return refs, ok, err
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		refs[parts[1]] = parts[0]
	}
	return refs, true, scanner.Err()
}

func isHexOID(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// Resolve follows name through loose refs and symbolic chains, falling
// back to packed-refs, until it reaches an object id. It returns
// ErrMaxDepth if the chain exceeds 10 hops, and ErrNotExist if name
// does not resolve anywhere.
func Resolve(adapter blob.Adapter, prefix, name string) (object.ID, error) {
	return resolve(adapter, prefix, name, 0)
}

func resolve(adapter blob.Adapter, prefix, name string, depth int) (object.ID, error) {
	if depth > maxDepth {
		return object.ZeroID, ErrMaxDepth
	}

	// A transport hiccup or a corrupt loose ref body is treated the
	// same as the ref not existing here: only WriteLoose failures are
	// real errors; a read falls through to the next source instead of
	// propagating one.
	content, ok, err := ReadLoose(adapter, prefix, name)
	if err != nil {
		ok = false
	}
	if ok {
		if target, isSymbolic := strings.CutPrefix(content, "ref: "); isSymbolic {
			return resolve(adapter, prefix, strings.TrimSpace(target), depth+1)
		}
		if isHexOID(content) {
			return object.DecodeID(content)
		}
	}

	packed, ok, err := ReadPackedRefs(adapter, prefix)
	if err != nil {
		ok = false
	}
	if ok {
		if oid, found := packed[name]; found && isHexOID(oid) {
			return object.DecodeID(oid)
		}
	}

	return object.ZeroID, ErrNotExist
}

// List returns every ref name under prefixFilter (e.g. "refs/heads/")
// along with its resolved object id string (which may itself be the
// target of a further symbolic chain that the caller should follow
// with Resolve if needed). When a ref exists both loose and packed,
// the loose value wins: a packed-refs file is only a snapshot taken at
// some point in the past, and a loose ref always reflects the more
// recent update.
func List(adapter blob.Adapter, prefix, prefixFilter string) map[string]string {
	out := make(map[string]string)

	// As in resolve, a failing source just contributes nothing: a
	// listing never errors, it only ever reports what it could read.
	packed, ok, err := ReadPackedRefs(adapter, prefix)
	if err != nil {
		ok = false
	}
	if ok {
		for name, oid := range packed {
			if strings.HasPrefix(name, prefixFilter) {
				out[name] = oid
			}
		}
	}

	keys, err := adapter.List(looseKey(prefix, prefixFilter))
	if err != nil {
		keys = nil
	}
	looseDir := looseKey(prefix, "")
	for _, key := range keys {
		name := strings.TrimPrefix(key, looseDir)
		data, ok, err := adapter.Get(key)
		if err != nil || !ok {
			continue
		}
		out[name] = strings.TrimSpace(string(data))
	}

	return out
}

// Names returns the keys of a ref map in sorted order, for callers
// that need deterministic iteration (e.g. tests).
func Names(refs map[string]string) []string {
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
