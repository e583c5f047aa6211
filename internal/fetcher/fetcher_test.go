package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>  Example Blog </title>
    <link>https://example.com</link>
    <item>
      <title>First post</title>
      <guid>post-1</guid>
    </item>
    <item>
      <title>Second post</title>
      <guid>post-2</guid>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Atom</title>
  <entry><title>Entry</title><id>atom-1</id></entry>
</feed>`

type mockTransport struct {
	body       string
	statusCode int
	err        error
}

func (m *mockTransport) Do(_ *http.Request) (*http.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func TestFetch(t *testing.T) {
	tests := []struct {
		name      string
		transport *mockTransport
		wantItems int
		wantErr   bool
	}{
		{
			name:      "rss",
			transport: &mockTransport{body: sampleRSS, statusCode: 200},
			wantItems: 2,
		},
		{
			name:      "atom",
			transport: &mockTransport{body: sampleAtom, statusCode: 200},
			wantItems: 1,
		},
		{
			name:      "http error status",
			transport: &mockTransport{body: "not found", statusCode: 404},
			wantErr:   true,
		},
		{
			name:      "network error",
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
			wantErr:   true,
		},
		{
			name:      "invalid xml",
			transport: &mockTransport{body: "not xml at all", statusCode: 200},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed, err := New(tt.transport).Fetch(context.Background(), "https://example.com/rss")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantItems, len(feed.Items)); diff != "" {
				t.Errorf("item count mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name      string
		transport *mockTransport
		want      string
		wantOK    bool
	}{
		{
			name:      "trimmed rss title",
			transport: &mockTransport{body: sampleRSS, statusCode: 200},
			want:      "Example Blog",
			wantOK:    true,
		},
		{
			name:      "atom title",
			transport: &mockTransport{body: sampleAtom, statusCode: 200},
			want:      "Example Atom",
			wantOK:    true,
		},
		{
			name:      "empty title",
			transport: &mockTransport{body: `<?xml version="1.0"?><rss version="2.0"><channel><title></title></channel></rss>`, statusCode: 200},
		},
		{
			name:      "fetch failure",
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := New(tt.transport).Title(context.Background(), "https://example.com/rss")
			if diff := cmp.Diff(tt.wantOK, ok); diff != "" {
				t.Errorf("ok mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("title mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
