package blobstore

import "testing"

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://statements/capital/abc.pdf", "statements", "capital/abc.pdf", false},
		{"gs://statements/abc.pdf", "statements", "abc.pdf", false},
		{"gs://statements", "", "", true},
		{"gs://statements/", "", "", true},
		{"s3://statements/abc.pdf", "", "", true},
		{"capital/abc.pdf", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			b, o, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if b != tt.wantBucket || o != tt.wantObject {
				t.Errorf("ParseURI(%q) = %q, %q; want %q, %q", tt.uri, b, o, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestFilenameFromURI(t *testing.T) {
	tests := map[string]string{
		"gs://bucket/folder/file.pdf": "file.pdf",
		"gs://bucket/file.pdf":        "file.pdf",
		"gs://bucket":                 "bucket",
	}
	for uri, want := range tests {
		if got := FilenameFromURI(uri); got != want {
			t.Errorf("FilenameFromURI(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestGCS_LocateAndURI(t *testing.T) {
	g := &GCS{bucket: "statements"}

	b, o, err := g.locate("capital/abc")
	if err != nil || b != "statements" || o != "capital/abc" {
		t.Errorf("locate(object) = %q, %q, %v", b, o, err)
	}
	b, o, err = g.locate("gs://other/x.pdf")
	if err != nil || b != "other" || o != "x.pdf" {
		t.Errorf("locate(uri) = %q, %q, %v", b, o, err)
	}
	if _, _, err := g.locate(""); err == nil {
		t.Error("locate(\"\") should fail")
	}
	if got := g.URI("capital/abc"); got != "gs://statements/capital/abc" {
		t.Errorf("URI() = %q", got)
	}
}
