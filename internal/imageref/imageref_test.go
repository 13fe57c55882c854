package imageref

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		ref  string
		want Ref
	}{
		{"nginx:1.24", Ref{Registry: "docker.io", Path: "nginx", Tag: "1.24"}},
		{"library/nginx:latest", Ref{Registry: "docker.io", Path: "library/nginx", Tag: "latest"}},
		{"ghcr.io/user/repo:tag", Ref{Registry: "ghcr.io", Path: "user/repo", Tag: "tag"}},
		{"registry-1.docker.io/lib/nginx", Ref{Registry: "docker.io", Path: "lib/nginx"}},
		{
			"myapp@sha256:abc123",
			Ref{Registry: "docker.io", Path: "myapp", Digest: "sha256:abc123"},
		},
		{
			"ghcr.io/user/repo:v1@sha256:deadbeef",
			Ref{Registry: "ghcr.io", Path: "user/repo", Tag: "v1", Digest: "sha256:deadbeef"},
		},
		{"localhost:5000/myimage:dev", Ref{Registry: "localhost:5000", Path: "myimage", Tag: "dev"}},
	}
	for _, c := range cases {
		got := Parse(c.ref)
		if got != c.want {
			t.Errorf("Parse(%q) = %+v, want %+v", c.ref, got, c.want)
		}
	}
}

func TestWithTagPreservesRegistryAndPathStripsDigest(t *testing.T) {
	cases := []struct {
		ref, newTag, want string
	}{
		{"ghcr.io/user/repo:v1@sha256:deadbeef", "v2", "ghcr.io/user/repo:v2"},
		{"nginx:1.24", "1.25", "nginx:1.25"},
		{"library/nginx:latest", "1.27", "library/nginx:1.27"},
		{"localhost:5000/myimage:dev@sha256:aaaa", "prod", "localhost:5000/myimage:prod"},
	}
	for _, c := range cases {
		if got := WithTag(c.ref, c.newTag); got != c.want {
			t.Errorf("WithTag(%q, %q) = %q, want %q", c.ref, c.newTag, got, c.want)
		}
	}
}
