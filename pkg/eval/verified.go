package eval

import (
	_ "embed"
	"log/slog"

	"github.com/mikeboe/deep-leads/pkg/leads"
)

//go:embed data/human_verified.json
var humanVerified []byte

// HumanVerifiedSamples returns the built-in benchmark: searches whose expected
// leads were checked by hand against the institutions' directories.
func HumanVerifiedSamples(logger *slog.Logger) ([]leads.Sample, error) {
	return ParseSamples(humanVerified, logger)
}
