package valkey

import "testing"

func TestKeyPrefix(t *testing.T) {
	c := &Cache{prefix: KeyPrefix}
	if got := c.key("heatmap:generation"); got != "signalmap:heatmap:generation" {
		t.Errorf("unexpected key %q", got)
	}

	bare := &Cache{}
	if got := bare.key("heatmap:generation"); got != "heatmap:generation" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestNewCacheTrimsTrailingSeparator(t *testing.T) {
	c := newCache(nil, "signalmap:")
	if got := c.key("heatmap:generation"); got != "signalmap:heatmap:generation" {
		t.Errorf("unexpected key %q", got)
	}
}
