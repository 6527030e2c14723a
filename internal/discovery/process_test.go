package discovery

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
)

func TestNormalizeDomain(t *testing.T) {
	cases := map[string]string{
		"https://www.Acme.com/pricing": "acme.com",
		"http://acme.com":              "acme.com",
		"WWW.ACME.COM":                 "acme.com",
		"acme.com:8080":                "acme.com",
		"acme.com/path?q=1":            "acme.com",
		"acme.com.":                    "acme.com",
		"  acme.io  ":                  "acme.io",
		"":                             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeDomain(in), "input %q", in)
	}
}

func TestProcess_MergesDuplicatesUnioningSources(t *testing.T) {
	raw := []model.RawCandidate{
		{Domain: "https://www.rival.com", Source: "ai_search", Context: "mentioned as alternative"},
		{Domain: "rival.com", Source: "seodata", Rank: 3},
		{Domain: "rival.com/pricing", Source: "ai_search"},
	}

	out := Process(raw, "target.com", &config.DiscoveryConfig{})
	require.Len(t, out, 1)
	assert.Equal(t, "rival.com", out[0].Domain)
	assert.ElementsMatch(t, []string{"ai_search", "seodata"}, out[0].Sources)
	assert.Equal(t, "mentioned as alternative", out[0].Context)
	assert.Equal(t, 3, out[0].BestRank)
}

func TestProcess_DropsSelfAndExcluded(t *testing.T) {
	raw := []model.RawCandidate{
		{Domain: "target.com", Source: "seodata"},
		{Domain: "blog.medium.com", Source: "ai_search"},
		{Domain: "wikipedia.org", Source: "ai_search"},
		{Domain: "rival.com", Source: "ai_search"},
	}

	out := Process(raw, "https://www.target.com", &config.DiscoveryConfig{})
	require.Len(t, out, 1)
	assert.Equal(t, "rival.com", out[0].Domain)
}

func TestProcess_WhitelistOverridesExclusion(t *testing.T) {
	raw := []model.RawCandidate{
		{Domain: "g2.com", Source: "ai_search"},
	}

	out := Process(raw, "target.com", &config.DiscoveryConfig{
		WhitelistDomains: []string{"g2.com"},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "g2.com", out[0].Domain)
}

func TestProcess_NameOnlyCandidatesSurvive(t *testing.T) {
	raw := []model.RawCandidate{
		{CompanyName: "Stealth Rival", Source: "ai_search"},
		{CompanyName: "stealth rival", Source: "altfeed"},
	}

	out := Process(raw, "target.com", &config.DiscoveryConfig{})
	require.Len(t, out, 1)
	assert.Empty(t, out[0].Domain)
	assert.Equal(t, "Stealth Rival", out[0].CompanyName)
	assert.ElementsMatch(t, []string{"ai_search", "altfeed"}, out[0].Sources)
}

func TestProcess_CapsByHeuristic(t *testing.T) {
	var raw []model.RawCandidate
	for i := 0; i < 20; i++ {
		raw = append(raw, model.RawCandidate{
			Domain: fmt.Sprintf("rival%d.com", i),
			Source: "ai_search",
		})
	}
	// Multi-source candidate must survive the cap.
	raw = append(raw,
		model.RawCandidate{Domain: "strong.com", Source: "ai_search", Rank: 1},
		model.RawCandidate{Domain: "strong.com", Source: "seodata"},
	)

	out := Process(raw, "target.com", &config.DiscoveryConfig{MaxCandidates: 5})
	require.Len(t, out, 5)
	assert.Equal(t, "strong.com", out[0].Domain)
}

func TestCitationFallback_DeduplicatesDomains(t *testing.T) {
	out, err := CitationFallback{}.Extract(context.Background(), "", []string{
		"https://www.rival.com/blog/post",
		"https://rival.com/about",
		"https://other.io",
		"not a url",
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "rival.com", out[0].Domain)
	assert.Equal(t, "other.io", out[1].Domain)
}
