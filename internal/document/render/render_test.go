package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "lexflow/pkg/domain-errors"
)

func TestTextRender(t *testing.T) {
	ctx := context.Background()
	in := Input{
		Title:     "Lease",
		Content:   "Tenant: {{ tenant }}, rent {{rent}} per {{ period }}",
		Variables: map[string]string{"tenant": "Ana", "rent": "900"},
	}

	t.Run("substitutes known variables and keeps unknown ones", func(t *testing.T) {
		out, err := Text{}.Render(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, "Lease\n\nTenant: Ana, rent 900 per {{ period }}", string(out.Data))
		assert.Contains(t, out.ContentType, "text/plain")
	})

	t.Run("strict mode reports missing variables", func(t *testing.T) {
		_, err := Text{Strict: true}.Render(ctx, in)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Contains(t, err.Error(), "period")
	})

	t.Run("appends signatures in signing order", func(t *testing.T) {
		now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		signed := in
		signed.Signatures = []SignatureLine{
			{SignerName: "Second", SignedAt: now.Add(time.Hour), IPAddress: "10.0.0.2"},
			{SignerName: "First", SignedAt: now, IPAddress: "10.0.0.1"},
		}
		out, err := Text{}.Render(ctx, signed)
		require.NoError(t, err)
		s := string(out.Data)
		assert.Contains(t, s, "-- Signatures --")
		assert.Less(t, strings.Index(s, "First signed"), strings.Index(s, "Second signed"))
	})
}

