package mediaurl

import "testing"

func TestUploadAndParseKey(t *testing.T) {
	const base = "http://localhost:8080/"

	raw := Upload(base, "posts/abc.png")
	if raw != "http://localhost:8080/uploads/posts/abc.png" {
		t.Fatalf("Upload() = %q", raw)
	}

	key, ok := ParseKey(base, raw)
	if !ok || key != "posts/abc.png" {
		t.Fatalf("ParseKey() = %q, %v, want posts/abc.png, true", key, ok)
	}
}

func TestParseKeyRejectsForeignURLs(t *testing.T) {
	const base = "http://localhost:8080"

	for _, raw := range []string{
		"",
		"https://lh3.googleusercontent.com/uploads/avatars/x.png",
		"http://localhost:8080/media/x.png",
		"http://localhost:8080/uploads/x.png",
		"http://localhost:8080/uploads/a/b/c.png",
	} {
		if key, ok := ParseKey(base, raw); ok {
			t.Fatalf("ParseKey(%q) = %q, true, want false", raw, key)
		}
	}
}
