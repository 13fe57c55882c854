// Package imageref parses and rewrites Docker image references for the
// swarm service update path (spec.md §4.1 UpdateServiceImage): preserve
// registry and path, strip any digest, replace only the tag.
package imageref

import "strings"

// Ref is a parsed image reference split into its three addressable parts.
type Ref struct {
	Registry string // e.g. "docker.io", "ghcr.io"; never empty
	Path     string // e.g. "library/nginx", "user/repo"
	Tag      string // e.g. "1.24", "latest"; empty if the ref carried a digest only
	Digest   string // e.g. "sha256:abcd..."; empty if none was present
}

// Parse splits an image reference into registry host, path, tag, and
// digest. Digest is stripped from ref before tag/path are determined, per
// spec.md's "strips any @sha256: digest" requirement.
func Parse(imageRef string) Ref {
	ref := imageRef
	var digest string
	if i := strings.Index(ref, "@"); i >= 0 {
		digest = strings.TrimPrefix(ref[i+1:], "sha256:")
		if digest != "" {
			digest = "sha256:" + digest
		}
		ref = ref[:i]
	}

	registry, rest := splitRegistry(ref)

	path := rest
	tag := ""
	if i := strings.LastIndex(rest, ":"); i >= 0 && !strings.Contains(rest[i:], "/") {
		path = rest[:i]
		tag = rest[i+1:]
	}

	return Ref{Registry: registry, Path: path, Tag: tag, Digest: digest}
}

// splitRegistry separates a registry host (if present) from the rest of a
// digest-stripped reference. Mirrors RegistryHost's "dot or colon in the
// first path segment means it's a hostname" rule, but returns the
// remaining path alongside the host rather than just the host.
func splitRegistry(ref string) (registry, rest string) {
	firstSlash := strings.Index(ref, "/")
	if firstSlash < 0 {
		return "docker.io", ref
	}

	firstSegment := ref[:firstSlash]
	if strings.ContainsAny(firstSegment, ".:") || firstSegment == "localhost" {
		return normalizeRegistryHost(firstSegment), ref[firstSlash+1:]
	}

	return "docker.io", ref
}

func normalizeRegistryHost(host string) string {
	switch host {
	case "registry-1.docker.io", "index.docker.io":
		return "docker.io"
	}
	return host
}

// String reassembles a Ref into an image reference string. Registry is
// omitted when it's the implicit "docker.io", matching how images are
// conventionally written back into compose files and service specs.
func (r Ref) String() string {
	var sb strings.Builder
	if r.Registry != "docker.io" {
		sb.WriteString(r.Registry)
		sb.WriteByte('/')
	}
	sb.WriteString(r.Path)
	if r.Tag != "" {
		sb.WriteByte(':')
		sb.WriteString(r.Tag)
	}
	if r.Digest != "" {
		sb.WriteByte('@')
		sb.WriteString(r.Digest)
	}
	return sb.String()
}

// WithTag returns imageRef rewritten to use newTag in place of its existing
// tag, preserving registry and path and dropping any digest — the exact
// transform UpdateServiceImage needs before calling the Swarm API.
func WithTag(imageRef, newTag string) string {
	r := Parse(imageRef)
	r.Tag = newTag
	r.Digest = ""
	return r.String()
}
