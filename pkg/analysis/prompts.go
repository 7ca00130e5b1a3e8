package analysis

import (
	"fmt"

	"github.com/gomcpgo/photo_adjust_ai/pkg/histogram"
)

const describePrompt = "Describe this image in a few sentences."

const recommendTemplate = `You are a photo editing assistant. Here is a description of a photo:

%s

This is its luminance histogram, %d buckets from dark to bright, each normalized to the largest bucket:

%s

Identify any problems with brightness, contrast, highlights or shadows, and recommend adjustments.
Write each adjustment on its own line in exactly this format, with an explicit sign and an integer value between -100 and 100:

[brightness] +10
[contrast] -5
[highlights] -15
[shadows] +20

Only include properties that need to change.`

func buildRecommendPrompt(description string, compressed histogram.Histogram) string {
	return fmt.Sprintf(recommendTemplate, description, len(compressed), histogram.Format(compressed))
}
