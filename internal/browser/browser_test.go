// File: internal/browser/browser_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/purib/ipopilot/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestIsXPath(t *testing.T) {
	assert.False(t, isXPath("#username"))
	assert.False(t, isXPath(".select2-search__field"))
	assert.True(t, isXPath("//a[contains(.,'Dashboard')]"))
	assert.True(t, isXPath("(//button)[1]"))
}

func TestExecOptionsHonorsConfig(t *testing.T) {
	cfg := config.BrowserConfig{
		Headless:  true,
		NoSandbox: true,
		ExtraArgs: []string{"no-zygote", "--window-size=1280,800"},
	}
	opts := execOptions(cfg)
	assert.NotEmpty(t, opts)
	// The defaults plus the appended sandbox, headless and extra-arg options.
	assert.GreaterOrEqual(t, len(opts), len(chromedp.DefaultExecAllocatorOptions)+5)
}

func TestCombineContextCancellation(t *testing.T) {
	t.Run("secondary cancel propagates", func(t *testing.T) {
		primary := context.Background()
		secondary, cancelSecondary := context.WithCancel(context.Background())

		combined, cancel := combineContext(primary, secondary)
		defer cancel()

		cancelSecondary()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context did not observe secondary cancellation")
		}
	})

	t.Run("primary cancel propagates", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		secondary := context.Background()

		combined, cancel := combineContext(primary, secondary)
		defer cancel()

		cancelPrimary()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context did not observe primary cancellation")
		}
	})
}

func TestJSONEncode(t *testing.T) {
	assert.Equal(t, `"plain"`, jsonEncode("plain"))
	assert.Equal(t, `"with \"quotes\""`, jsonEncode(`with "quotes"`))
	assert.Equal(t, `"line\nbreak"`, jsonEncode("line\nbreak"))
}
