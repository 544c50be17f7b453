package crawler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalURL(t *testing.T) {
	t.Parallel()

	got, err := CanonicalURL("HTTPS://Jobs.Example.com/job/123?type=promoted#top")
	require.NoError(t, err)
	require.Equal(t, "https://jobs.example.com/job/123", got)
}

func TestJobIDFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "https://jobs.example.com/job/123", want: "123"},
		{raw: "https://jobs.example.com/job/123/", want: "123"},
		{raw: "https://jobs.example.com/", wantErr: true},
		{raw: "https://jobs.example.com", wantErr: true},
	}
	for _, tt := range tests {
		got, err := JobIDFromURL(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidJobURL) {
				t.Fatalf("JobIDFromURL(%q) error = %v, want ErrInvalidJobURL", tt.raw, err)
			}
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestSearchAndPageURL(t *testing.T) {
	t.Parallel()

	got, err := SearchURL("https://jobs.example.com/jobs", "keywords", "page", "data engineer", 3)
	require.NoError(t, err)
	require.Equal(t, "https://jobs.example.com/jobs?keywords=data+engineer&page=3", got)

	got, err = SearchURL("https://jobs.example.com/jobs?page=9", "keywords", "page", "go", 1)
	require.NoError(t, err)
	require.Equal(t, "https://jobs.example.com/jobs?keywords=go", got)

	got, err = PageURL("https://jobs.example.com/jobs?keywords=go", "page", 2)
	require.NoError(t, err)
	require.Equal(t, "https://jobs.example.com/jobs?keywords=go&page=2", got)
}
