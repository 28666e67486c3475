package cloud

import (
	"context"
	"testing"

	"github.com/hemantobora/proxygen/internal/models"
)

func TestLiveInstanceManaged(t *testing.T) {
	cases := []struct {
		name string
		inst LiveInstance
		want bool
	}{
		{"prefix match", LiveInstance{Name: "proxygen-fsn1-abc"}, true},
		{"tag match", LiveInstance{Name: "web-1", Tags: map[string]string{"ManagedBy": "proxygen"}}, true},
		{"neither", LiveInstance{Name: "web-1"}, false},
		{"wrong tag value", LiveInstance{Name: "web-1", Tags: map[string]string{"ManagedBy": "terraform"}}, false},
	}
	for _, tc := range cases {
		if got := tc.inst.Managed(); got != tc.want {
			t.Errorf("%s: expected %v; got %v", tc.name, tc.want, got)
		}
	}
}

func TestForProviderReturnsMatchingQuerier(t *testing.T) {
	ctx := context.Background()
	for _, provider := range []models.Provider{
		models.ProviderAzure,
		models.ProviderDigitalOcean,
		models.ProviderHetzner,
	} {
		q, err := ForProvider(ctx, provider)
		if err != nil {
			t.Fatalf("for %s: %v", provider, err)
		}
		if q.Provider() != provider {
			t.Errorf("expected %s querier; got %s", provider, q.Provider())
		}
	}

	if _, err := ForProvider(ctx, models.Provider("gcp")); err == nil {
		t.Errorf("expected error for unsupported provider")
	}
}

func TestFirstIP(t *testing.T) {
	cases := map[string]string{
		"20.1.2.3":           "20.1.2.3",
		"20.1.2.3,10.0.0.4":  "20.1.2.3",
		" 20.1.2.3 , 10.0.1": "20.1.2.3",
		"":                   "",
	}
	for in, want := range cases {
		if got := firstIP(in); got != want {
			t.Errorf("firstIP(%q): expected %q; got %q", in, want, got)
		}
	}
}
